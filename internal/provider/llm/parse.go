package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseStringArray extracts the first-to-last bracketed JSON array of strings
// from free-form model output. Blank entries are dropped and the remaining
// entries are trimmed.
func ParseStringArray(response string) ([]string, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("no valid JSON array found in response (got %d chars): %q", len(response), preview(response))
	}

	var raw []string
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseJSONObject extracts the first-to-last braced JSON object from model
// output and unmarshals it into v.
func ParseJSONObject(response string, v any) error {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return fmt.Errorf("no valid JSON object found in response (got %d chars): %q", len(response), preview(response))
	}

	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), v); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	return nil
}

// limit truncates a question list to max entries. A max of zero or less
// keeps everything.
func limit(items []string, max int) []string {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "... (truncated)"
	}
	return s
}
