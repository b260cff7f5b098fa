// Package repositories provides the PostgreSQL-backed implementations of the
// persistence ports consumed by the citation pipeline: job.Repository,
// job.MatchStore, and claim.Source.
package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clausehound/citex/internal/domain/job"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

const jobColumns = `id, search_context_id, reference_number, status,
	external_job_id, last_checked_at, raw_result_data, deep_analysis_json,
	examiner_analysis_json, claim1_hash, parser_version_used, supersedes,
	error_code, error_message, started_at, completed_at, created_at, updated_at`

// JobRepository is the PostgreSQL implementation of job.Repository.
type JobRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewJobRepository constructs a ready-to-use JobRepository.
func NewJobRepository(pool *pgxpool.Pool, logger logging.Logger) *JobRepository {
	return &JobRepository{pool: pool, logger: logger}
}

var _ job.Repository = (*JobRepository)(nil)

// Create persists a new job row.
func (r *JobRepository) Create(ctx context.Context, j *job.CitationJob) error {
	r.logger.Debug("JobRepository.Create", logging.String("job_id", j.ID))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO citation_jobs (
			id, search_context_id, reference_number, status,
			external_job_id, last_checked_at, raw_result_data, deep_analysis_json,
			examiner_analysis_json, claim1_hash, parser_version_used, supersedes,
			error_code, error_message, started_at, completed_at, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,
			$5,$6,$7,$8,
			$9,$10,$11,$12,
			$13,$14,$15,$16,$17,$18
		)`,
		j.ID, j.SearchContextID, j.ReferenceNumber, j.Status.String(),
		nullIfEmpty(j.ExternalJobID), j.LastCheckedAt, j.RawResultData, j.DeepAnalysisJSON,
		j.ExaminerAnalysisJSON, j.Claim1Hash, j.ParserVersionUsed, nullIfEmpty(j.Supersedes),
		j.ErrorCode, j.ErrorMessage, j.StartedAt, j.CompletedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("JobRepository.Create: insert", logging.Err(err), logging.String("job_id", j.ID))
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to insert citation job")
	}
	return nil
}

// Save persists the full current state of j.
func (r *JobRepository) Save(ctx context.Context, j *job.CitationJob) error {
	r.logger.Debug("JobRepository.Save", logging.String("job_id", j.ID))

	tag, err := r.pool.Exec(ctx, `
		UPDATE citation_jobs SET
			status = $2,
			external_job_id = $3,
			last_checked_at = $4,
			raw_result_data = $5,
			deep_analysis_json = $6,
			examiner_analysis_json = $7,
			claim1_hash = $8,
			parser_version_used = $9,
			error_code = $10,
			error_message = $11,
			started_at = $12,
			completed_at = $13,
			updated_at = $14
		WHERE id = $1`,
		j.ID, j.Status.String(),
		nullIfEmpty(j.ExternalJobID), j.LastCheckedAt, j.RawResultData, j.DeepAnalysisJSON,
		j.ExaminerAnalysisJSON, j.Claim1Hash, j.ParserVersionUsed,
		j.ErrorCode, j.ErrorMessage, j.StartedAt, j.CompletedAt, j.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("JobRepository.Save: update", logging.Err(err), logging.String("job_id", j.ID))
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to update citation job")
	}
	if tag.RowsAffected() == 0 {
		return errors.Newf(errors.CodeJobNotFound, "citation job %s not found", j.ID)
	}
	return nil
}

// Update applies a partial update and returns the stored row.
func (r *JobRepository) Update(ctx context.Context, id string, fields job.UpdateFields) (*job.CitationJob, error) {
	set, args := buildJobUpdate(fields)
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	args = append([]interface{}{id}, args...)
	query := fmt.Sprintf(`UPDATE citation_jobs SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(set, ", "), jobColumns)

	j, err := r.scanJob(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.IsCode(err, errors.CodeJobNotFound) {
			return nil, errors.Newf(errors.CodeJobNotFound, "citation job %s not found", id)
		}
		r.logger.Error("JobRepository.Update", logging.Err(err), logging.String("job_id", id))
		return nil, err
	}
	return j, nil
}

// buildJobUpdate translates UpdateFields into SET clauses.  Placeholders
// start at $2; $1 is reserved for the job ID.
func buildJobUpdate(fields job.UpdateFields) ([]string, []interface{}) {
	var (
		set  []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)+1))
	}

	if fields.Status != nil {
		add("status", fields.Status.String())
	}
	if fields.ExternalJobID != nil {
		add("external_job_id", nullIfEmpty(*fields.ExternalJobID))
	}
	if fields.RawResultData != nil {
		add("raw_result_data", *fields.RawResultData)
	}
	if fields.DeepAnalysisJSON != nil {
		add("deep_analysis_json", *fields.DeepAnalysisJSON)
	}
	if fields.ExaminerAnalysisJSON != nil {
		add("examiner_analysis_json", *fields.ExaminerAnalysisJSON)
	}
	if fields.ErrorCode != nil {
		add("error_code", *fields.ErrorCode)
	}
	if fields.ErrorMessage != nil {
		add("error_message", *fields.ErrorMessage)
	}

	now := time.Now().UTC()
	if fields.LastCheckedAt != nil && *fields.LastCheckedAt {
		add("last_checked_at", now)
	}
	if fields.StartedNow {
		add("started_at", now)
	}
	if fields.CompletedNow {
		add("completed_at", now)
	}
	if len(set) > 0 {
		add("updated_at", now)
	}
	return set, args
}

// FindByID returns the job or a CodeJobNotFound error.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*job.CitationJob, error) {
	return r.scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM citation_jobs WHERE id = $1`, id))
}

// FindByExternalID returns the job owning the given external identifier.
func (r *JobRepository) FindByExternalID(ctx context.Context, externalID string) (*job.CitationJob, error) {
	return r.scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM citation_jobs WHERE external_job_id = $1`, externalID))
}

// ListBySearchContext returns all jobs for a search context, newest first.
func (r *JobRepository) ListBySearchContext(ctx context.Context, searchContextID string) ([]*job.CitationJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM citation_jobs
		 WHERE search_context_id = $1
		 ORDER BY created_at DESC`, searchContextID)
	if err != nil {
		r.logger.Error("JobRepository.ListBySearchContext", logging.Err(err),
			logging.String("search_context_id", searchContextID))
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to list citation jobs")
	}
	defer rows.Close()

	var jobs []*job.CitationJob
	for rows.Next() {
		j, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to iterate citation jobs")
	}
	return jobs, nil
}

func (r *JobRepository) scanJob(row pgx.Row) (*job.CitationJob, error) {
	var (
		j             job.CitationJob
		status        string
		externalJobID *string
		supersedes    *string
	)
	err := row.Scan(
		&j.ID, &j.SearchContextID, &j.ReferenceNumber, &status,
		&externalJobID, &j.LastCheckedAt, &j.RawResultData, &j.DeepAnalysisJSON,
		&j.ExaminerAnalysisJSON, &j.Claim1Hash, &j.ParserVersionUsed, &supersedes,
		&j.ErrorCode, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New(errors.CodeJobNotFound, "citation job not found")
		}
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to scan citation job")
	}

	j.Status = job.Status(status)
	if externalJobID != nil {
		j.ExternalJobID = *externalJobID
	}
	if supersedes != nil {
		j.Supersedes = *supersedes
	}
	return &j, nil
}

// nullIfEmpty stores empty strings as NULL so the partial unique index on
// external_job_id and the supersedes foreign key behave.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
