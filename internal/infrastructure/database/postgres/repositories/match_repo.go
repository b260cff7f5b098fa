package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/database/postgres"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

// MatchRepository is the PostgreSQL implementation of job.MatchStore.  Match
// rows are a denormalized read model derived from a job's deep analysis; the
// job row stays the source of truth.
type MatchRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewMatchRepository constructs a ready-to-use MatchRepository.
func NewMatchRepository(pool *pgxpool.Pool, logger logging.Logger) *MatchRepository {
	return &MatchRepository{pool: pool, logger: logger}
}

var _ job.MatchStore = (*MatchRepository)(nil)

// ReplaceForJob atomically replaces the match rows derived for a job.
func (r *MatchRepository) ReplaceForJob(ctx context.Context, jobID string, matches []job.MatchRecord) error {
	r.logger.Debug("MatchRepository.ReplaceForJob",
		logging.String("job_id", jobID), logging.Int("matches", len(matches)))

	return postgres.WithTransaction(ctx, r.pool, func(tx pgx.Tx, ctx context.Context) error {
		if _, err := tx.Exec(ctx, `DELETE FROM citation_matches WHERE job_id = $1`, jobID); err != nil {
			r.logger.Error("MatchRepository.ReplaceForJob: delete", logging.Err(err), logging.String("job_id", jobID))
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to clear citation matches")
		}

		if len(matches) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, m := range matches {
			batch.Queue(`
				INSERT INTO citation_matches (
					job_id, search_context_id, reference_number,
					element_text, citation_text, paragraph_text, score, location
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				jobID, m.SearchContextID, m.ReferenceNumber,
				m.ElementText, m.CitationText, m.ParagraphText, m.Score, m.Location,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			r.logger.Error("MatchRepository.ReplaceForJob: insert", logging.Err(err), logging.String("job_id", jobID))
			return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert citation matches")
		}
		return nil
	})
}

// ListByJob returns the stored match rows for a job ordered by descending
// score within each claim element.
func (r *MatchRepository) ListByJob(ctx context.Context, jobID string) ([]job.MatchRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT job_id, search_context_id, reference_number,
		       element_text, citation_text, paragraph_text, score, location
		FROM citation_matches
		WHERE job_id = $1
		ORDER BY element_text, score DESC`, jobID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to query citation matches")
	}
	defer rows.Close()

	var matches []job.MatchRecord
	for rows.Next() {
		var m job.MatchRecord
		if err := rows.Scan(&m.JobID, &m.SearchContextID, &m.ReferenceNumber,
			&m.ElementText, &m.CitationText, &m.ParagraphText, &m.Score, &m.Location); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan citation match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate citation matches")
	}
	return matches, nil
}
