package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clausehound/citex/pkg/errors"
)

type decodeTarget struct {
	Summary string `json:"summary"`
	Count   int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	var out decodeTarget
	require.NoError(t, DecodeJSON(`{"summary":"ok","count":2}`, &out))
	assert.Equal(t, "ok", out.Summary)
	assert.Equal(t, 2, out.Count)
}

func TestDecodeJSONStripsMarkdownFence(t *testing.T) {
	var out decodeTarget
	require.NoError(t, DecodeJSON("```json\n{\"summary\":\"fenced\"}\n```", &out))
	assert.Equal(t, "fenced", out.Summary)
}

func TestDecodeJSONSalvagesMissingBrace(t *testing.T) {
	var out decodeTarget
	require.NoError(t, DecodeJSON(`{"summary":"cut off","count":7`, &out))
	assert.Equal(t, "cut off", out.Summary)
	assert.Equal(t, 7, out.Count)
}

func TestDecodeJSONUnsalvageable(t *testing.T) {
	var out decodeTarget
	err := DecodeJSON(`{"summary":"cut off","cou`, &out)
	assert.True(t, errors.IsCode(err, errors.CodeLLMTruncated))
}

func TestDecodeJSONNotJSON(t *testing.T) {
	var out decodeTarget
	err := DecodeJSON("I cannot produce JSON today.", &out)
	assert.True(t, errors.IsCode(err, errors.CodeLLMInvalidResponse))
}

func TestDecodeJSONEmpty(t *testing.T) {
	var out decodeTarget
	err := DecodeJSON("   ", &out)
	assert.True(t, errors.IsCode(err, errors.CodeLLMInvalidResponse))
}
