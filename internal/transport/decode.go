// In file: internal/transport/decode.go
package transport

import (
	"encoding/json"
	"regexp"
	"strings"
)

// labelPattern matches "Label: value" lines as emitted by text-only hosted tools.
var labelPattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _-]{0,39}):\s*(.*)$`)

// DecodeText is the best-effort decoder for hosted tool output. It tries, in
// order: a JSON document, then blocks of labeled lines separated by blank lines.
// Anything else is wrapped as {"raw": text} with structured=false. It never fails.
func DecodeText(text string) (payload any, structured bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return map[string]any{"raw": text}, false
	}

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v, true
		}
	}

	if records, ok := decodeLabeled(trimmed); ok {
		if len(records) == 1 {
			return records[0], true
		}
		return map[string]any{"results": records}, true
	}

	return map[string]any{"raw": text}, false
}

// decodeLabeled parses blank-line separated blocks where every non-empty line is
// "Label: value". Labels are lower-cased with spaces and hyphens folded to "_".
// Every block needs at least two labeled lines, and a value may not start with
// "//", so a lone "Note: x" sentence or a bare URL stays raw.
func decodeLabeled(text string) ([]map[string]any, bool) {
	var records []map[string]any
	current := map[string]any{}
	blockLines := 0

	flush := func() {
		if len(current) > 0 {
			records = append(records, current)
			current = map[string]any{}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if blockLines == 1 {
				return nil, false
			}
			blockLines = 0
			flush()
			continue
		}
		m := labelPattern.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		value := strings.TrimSpace(m[2])
		if strings.HasPrefix(value, "//") {
			return nil, false
		}
		blockLines++
		key := strings.ToLower(strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(m[1])))
		if _, dup := current[key]; dup {
			// A repeated label starts a new record even without a blank line.
			flush()
		}
		current[key] = value
	}
	if blockLines == 1 {
		return nil, false
	}
	flush()
	return records, len(records) > 0
}
