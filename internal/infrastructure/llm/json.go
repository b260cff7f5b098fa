package llm

import (
	"encoding/json"
	"strings"

	"github.com/clausehound/citex/pkg/errors"
)

// DecodeJSON parses a model response into out. Models occasionally wrap JSON
// in a markdown fence or run past the token budget mid-object; the decoder
// strips fences, then gives truncated output one salvage attempt by
// appending a closing brace before giving up.
func DecodeJSON(content string, out interface{}) error {
	text := stripFence(strings.TrimSpace(content))
	if text == "" {
		return errors.New(errors.CodeLLMInvalidResponse, "model response is empty")
	}

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	if strings.HasPrefix(text, "{") && !strings.HasSuffix(text, "}") {
		if err := json.Unmarshal([]byte(text+"}"), out); err == nil {
			return nil
		}
		return errors.New(errors.CodeLLMTruncated, "model response is truncated and could not be salvaged")
	}

	return errors.New(errors.CodeLLMInvalidResponse, "model response is not valid JSON")
}

// stripFence removes a surrounding ```json ... ``` markdown fence.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
