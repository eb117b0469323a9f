package interpret

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseBillJSON parses the JSON object in a model response
func parseBillJSON(text string) (*Fields, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var fields Fields
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields.Provider = strings.TrimSpace(fields.Provider)
	fields.Date = strings.TrimSpace(fields.Date)
	fields.Description = strings.TrimSpace(fields.Description)
	fields.Category = strings.ToLower(strings.TrimSpace(fields.Category))
	if fields.Category == "" {
		fields.Category = "medical"
	}

	// The date is passed through as written; the ledger decides what to do
	// with one it cannot parse.
	return &fields, nil
}
