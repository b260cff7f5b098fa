package citation

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/clausehound/citex/internal/infrastructure/monitoring/logging"
)

// Character budgets for match text sent to the LLM.
const (
	maxCitationChars  = 600
	maxParagraphChars = 1200
)

// Match is one prior-art match as reported by the search service. Fields the
// LLM prompt never uses (internal IDs, timestamps) are dropped during
// consolidation.
type Match struct {
	ID              string  `json:"id,omitempty"`
	ReferenceNumber string  `json:"referenceNumber,omitempty"`
	ElementText     string  `json:"elementText,omitempty"`
	Citation        string  `json:"citation,omitempty"`
	Paragraph       string  `json:"paragraph,omitempty"`
	Score           float64 `json:"score"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
}

// ElementGroup holds the surviving matches for one claim element.
type ElementGroup struct {
	ElementText string  `json:"elementText"`
	Matches     []Match `json:"matches"`
}

// Consolidator filters raw match data down to an LLM-sized payload.
type Consolidator struct {
	topK   int
	logger logging.Logger
}

// NewConsolidator builds a Consolidator keeping topK matches per element.
func NewConsolidator(topK int, logger logging.Logger) *Consolidator {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Consolidator{topK: topK, logger: logger.Named("consolidator")}
}

// Filter groups raw matches by claim element, keeps the topK per element by
// score, and truncates match text to the character budgets. It never fails:
// a payload it cannot interpret is returned unchanged with a logged warning,
// trading optimality for availability. Filtering already-filtered data is a
// no-op.
func (c *Consolidator) Filter(raw json.RawMessage) json.RawMessage {
	groups, ok := parseGroups(raw)
	if !ok {
		c.logger.Warn("unrecognized match payload shape, passing through unfiltered",
			logging.Int("payload_bytes", len(raw)))
		return raw
	}

	for gi := range groups {
		matches := groups[gi].Matches
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
		if len(matches) > c.topK {
			matches = matches[:c.topK]
		}
		for mi := range matches {
			matches[mi] = trimMatch(matches[mi])
		}
		groups[gi].Matches = matches
	}

	out, err := json.Marshal(groups)
	if err != nil {
		c.logger.Warn("failed to re-serialize filtered matches, passing through unfiltered",
			logging.Err(err))
		return raw
	}
	return out
}

// parseGroups accepts the two payload shapes the search service produces: an
// array already grouped by element, or a flat match array. Flat matches are
// grouped by element text in first-seen order.
func parseGroups(raw json.RawMessage) ([]ElementGroup, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, false
	}

	var grouped []ElementGroup
	if err := json.Unmarshal(raw, &grouped); err == nil && isGrouped(grouped) {
		return grouped, true
	}

	var flat []Match
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, false
	}

	index := make(map[string]int)
	var groups []ElementGroup
	for _, m := range flat {
		key := m.ElementText
		gi, seen := index[key]
		if !seen {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, ElementGroup{ElementText: key})
		}
		groups[gi].Matches = append(groups[gi].Matches, m)
	}
	if len(groups) == 0 {
		return nil, false
	}
	return groups, true
}

// isGrouped rejects the degenerate decode where a flat match array unmarshals
// into groups with empty match lists.
func isGrouped(groups []ElementGroup) bool {
	if len(groups) == 0 {
		return false
	}
	for _, g := range groups {
		if len(g.Matches) > 0 {
			return true
		}
	}
	return false
}

func trimMatch(m Match) Match {
	m.ID = ""
	m.CreatedAt = ""
	m.UpdatedAt = ""
	m.Citation = truncate(m.Citation, maxCitationChars)
	m.Paragraph = truncate(m.Paragraph, maxParagraphChars)
	return m
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
