package claim

import (
	"strings"

	"github.com/clausehound/citex/pkg/errors"
)

// CurrentParserVersion identifies the claim-element parser below.  Bump it
// whenever the decomposition rules change; jobs recorded under an older
// version are considered stale even when the claim text itself is unchanged.
const CurrentParserVersion = 2

// minElementLength filters out fragments too short to be meaningful search
// inputs (stray "and", "wherein" connectives left by splitting).
const minElementLength = 12

// ParseElements decomposes a patent claim into its atomic limitation phrases,
// in claim order.  The decomposition is deliberately structural rather than
// linguistic: the preamble is separated at the first "comprising"/"consisting
// of" transition, and the body is split on semicolons and "wherein" clauses.
func ParseElements(claimText string) ([]string, error) {
	text := strings.TrimSpace(claimText)
	if text == "" {
		return nil, errors.New(errors.CodeClaimEmpty, "claim text is empty")
	}

	// Strip a leading claim number ("1." or "1)").
	text = stripClaimNumber(text)

	body := text
	if idx := transitionIndex(text); idx >= 0 {
		body = text[idx:]
	}

	segments := splitBody(body)

	elements := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = cleanElement(seg)
		if len(seg) >= minElementLength {
			elements = append(elements, seg)
		}
	}

	if len(elements) == 0 {
		// A claim with no splittable body is one element: the whole body.
		cleaned := cleanElement(body)
		if len(cleaned) < minElementLength {
			return nil, errors.New(errors.CodeClaimParseFailed,
				"claim text yields no usable elements")
		}
		elements = append(elements, cleaned)
	}

	return elements, nil
}

// stripClaimNumber removes a leading "<digits>." or "<digits>)" marker.
func stripClaimNumber(text string) string {
	i := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i > 0 && i < len(text) && (text[i] == '.' || text[i] == ')') {
		return strings.TrimSpace(text[i+1:])
	}
	return text
}

// transitionIndex locates the first claim transition phrase, returning the
// index just past it, or -1 when absent.
func transitionIndex(text string) int {
	lower := strings.ToLower(text)
	for _, marker := range []string{"comprising:", "comprising", "consisting essentially of", "consisting of"} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			return idx + len(marker)
		}
	}
	return -1
}

// clauseBoundaries rewrites "wherein"/"whereby" clause starts as segment
// boundaries so a single semicolon split yields the elements.
var clauseBoundaries = strings.NewReplacer(
	", wherein ", "; wherein ",
	" wherein ", "; wherein ",
	", whereby ", "; whereby ",
	" whereby ", "; whereby ",
)

// splitBody splits a claim body into candidate elements on semicolons and
// "wherein"/"whereby" clause boundaries.
func splitBody(body string) []string {
	return strings.Split(clauseBoundaries.Replace(body), ";")
}

// cleanElement trims connective residue and normalizes whitespace.
func cleanElement(seg string) string {
	seg = strings.Join(strings.Fields(seg), " ")
	seg = strings.Trim(seg, " ,.:")
	for _, prefix := range []string{"and ", "And "} {
		seg = strings.TrimPrefix(seg, prefix)
	}
	return strings.TrimSpace(seg)
}
