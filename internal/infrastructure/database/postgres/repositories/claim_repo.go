package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clausehound/citex/internal/domain/claim"
	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
	"github.com/clausehound/citex/pkg/errors"
)

// ClaimRepository is the PostgreSQL implementation of claim.Source.  Claim
// text lives on the search context row; parsed element decompositions are
// cached per context and replaced wholesale on re-parse.
type ClaimRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewClaimRepository constructs a ready-to-use ClaimRepository.
func NewClaimRepository(pool *pgxpool.Pool, logger logging.Logger) *ClaimRepository {
	return &ClaimRepository{pool: pool, logger: logger}
}

var _ claim.Source = (*ClaimRepository)(nil)

// GetClaimText returns the current claim 1 text for the search context.
func (r *ClaimRepository) GetClaimText(ctx context.Context, searchContextID string) (string, error) {
	var text string
	err := r.pool.QueryRow(ctx,
		`SELECT claim1_text FROM search_contexts WHERE id = $1`, searchContextID).Scan(&text)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", errors.Newf(errors.CodeClaimNotFound, "search context %s not found", searchContextID)
		}
		r.logger.Error("ClaimRepository.GetClaimText", logging.Err(err),
			logging.String("search_context_id", searchContextID))
		return "", errors.Wrap(err, errors.CodeDatabaseError, "failed to load claim text")
	}
	if text == "" {
		return "", errors.Newf(errors.CodeClaimEmpty, "search context %s has no claim text", searchContextID)
	}
	return text, nil
}

// GetClaimElements returns the stored decomposition, or nil when no
// decomposition has been persisted yet.
func (r *ClaimRepository) GetClaimElements(ctx context.Context, searchContextID string) (*claim.ParsedElements, error) {
	var (
		elements      []string
		parserVersion int
	)
	err := r.pool.QueryRow(ctx, `
		SELECT elements, parser_version
		FROM claim_elements
		WHERE search_context_id = $1`, searchContextID).Scan(&elements, &parserVersion)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("ClaimRepository.GetClaimElements", logging.Err(err),
			logging.String("search_context_id", searchContextID))
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "failed to load claim elements")
	}

	return &claim.ParsedElements{
		SearchContextID: searchContextID,
		Elements:        elements,
		ParserVersion:   parserVersion,
	}, nil
}

// SaveParsedElements persists a decomposition, replacing any prior one for
// the same search context.
func (r *ClaimRepository) SaveParsedElements(ctx context.Context, parsed *claim.ParsedElements) error {
	if parsed == nil || parsed.SearchContextID == "" {
		return errors.InvalidParam("parsed elements require a search context ID")
	}
	r.logger.Debug("ClaimRepository.SaveParsedElements",
		logging.String("search_context_id", parsed.SearchContextID),
		logging.Int("elements", len(parsed.Elements)),
		logging.Int("parser_version", parsed.ParserVersion))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO claim_elements (search_context_id, elements, parser_version, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (search_context_id) DO UPDATE SET
			elements = EXCLUDED.elements,
			parser_version = EXCLUDED.parser_version,
			updated_at = NOW()`,
		parsed.SearchContextID, parsed.Elements, parsed.ParserVersion,
	)
	if err != nil {
		r.logger.Error("ClaimRepository.SaveParsedElements", logging.Err(err),
			logging.String("search_context_id", parsed.SearchContextID))
		return errors.Wrap(err, errors.CodeDatabaseError, "failed to save claim elements")
	}
	return nil
}
