// Package claim provides the claim-text snapshot model used for staleness
// detection, the versioned claim-element parser that turns claim 1 into
// search inputs, and the port through which claim data is read and written.
package claim

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the canonical content hash of claim text: hex-encoded SHA-256
// of the whitespace-normalized text.  Jobs record this hash at creation time;
// a differing hash later means the job's results were computed against
// superseded claim language.
func Hash(claimText string) string {
	normalized := strings.Join(strings.Fields(claimText), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// IsStale reports whether a job computed against (jobHash, jobParserVersion)
// is stale relative to the current claim hash and parser version.  Pure
// function of its four inputs.
func IsStale(currentHash, jobHash string, currentParserVersion, jobParserVersion int) bool {
	if currentHash != jobHash {
		return true
	}
	return jobParserVersion < currentParserVersion
}

// Snapshot captures the claim text and its element decomposition at the time
// a job was created, identified by the content hash of the text.
type Snapshot struct {
	SearchContextID string   `json:"searchContextId"`
	ClaimText       string   `json:"claimText"`
	Claim1Hash      string   `json:"claim1Hash"`
	Elements        []string `json:"elements"`
	ParserVersion   int      `json:"parserVersion"`
}

// NewSnapshot builds a Snapshot from claim text, parsing elements with the
// current parser.
func NewSnapshot(searchContextID, claimText string) (*Snapshot, error) {
	elements, err := ParseElements(claimText)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		SearchContextID: searchContextID,
		ClaimText:       claimText,
		Claim1Hash:      Hash(claimText),
		Elements:        elements,
		ParserVersion:   CurrentParserVersion,
	}, nil
}
