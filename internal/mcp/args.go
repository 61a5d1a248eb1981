package mcp

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Args are the decoded tool_args of a tool call.
type Args map[string]any

// Get returns the argument as a trimmed string. Numbers are formatted
// without exponent so numeric IDs survive a JSON round trip.
func (a Args) Get(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Float returns the argument as a float64, or def when it is absent or not
// numeric.
func (a Args) Float(key string, def float64) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Has reports whether key is present and non-null.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// Require fails with a validation error naming every key whose value is
// absent or blank.
func (a Args) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if a.Get(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Errorf(KindValidation, "missing required arguments: %s", strings.Join(missing, ", "))
	}
	return nil
}
