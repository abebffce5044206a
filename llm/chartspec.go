package llm

import (
	"encoding/json"
	"strings"
)

const chartFence = "```vega-lite"

// ExtractChartSpec pulls the first fenced vega-lite block out of a model
// reply. It returns the parsed spec, the reply text with the block removed,
// and whether a valid spec was found. Replies without a block (or with a
// malformed one) come back unchanged.
func ExtractChartSpec(text string) (spec json.RawMessage, remainder string, ok bool) {
	start := strings.Index(text, chartFence)
	if start < 0 {
		return nil, text, false
	}
	rest := text[start+len(chartFence):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return nil, text, false
	}

	body := strings.TrimSpace(rest[:end])
	var parsed map[string]any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, text, false
	}

	remainder = strings.TrimSpace(text[:start] + rest[end+3:])
	return json.RawMessage(body), remainder, true
}
