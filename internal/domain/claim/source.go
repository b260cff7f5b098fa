package claim

import "context"

// ParsedElements is the persisted decomposition of a claim, keyed by the
// parser version that produced it.
type ParsedElements struct {
	SearchContextID string   `json:"searchContextId"`
	Elements        []string `json:"elements"`
	ParserVersion   int      `json:"parserVersion"`
}

// Source reads and writes claim data for a search context.  The current
// claim text is the authority for staleness checks; parsed elements are a
// cache of the decomposition and may lag behind the current parser version.
type Source interface {
	// GetClaimText returns the current claim 1 text for the search context.
	GetClaimText(ctx context.Context, searchContextID string) (string, error)

	// GetClaimElements returns the stored decomposition, or nil when no
	// decomposition has been persisted yet.
	GetClaimElements(ctx context.Context, searchContextID string) (*ParsedElements, error)

	// SaveParsedElements persists a decomposition, replacing any prior one
	// for the same search context.
	SaveParsedElements(ctx context.Context, parsed *ParsedElements) error
}
