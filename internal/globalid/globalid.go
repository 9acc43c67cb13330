// Package globalid normalizes GIS feature identifiers.
//
// The GIS backend hands out GlobalIDs wrapped in curly braces, while other
// sources strip them or change case. Comparisons go through Normalize.
package globalid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Normalize strips every brace and upper-cases the result.
func Normalize(id string) string {
	id = strings.ReplaceAll(id, "{", "")
	id = strings.ReplaceAll(id, "}", "")
	return strings.ToUpper(id)
}

// WithBraces wraps id in braces unless it is already wrapped.
func WithBraces(id string) string {
	if strings.HasPrefix(id, "{") && strings.HasSuffix(id, "}") {
		return id
	}
	return "{" + id + "}"
}

// Canonical is the stored form: normalized and braced.
func Canonical(id string) string {
	if id == "" {
		return ""
	}
	return WithBraces(Normalize(id))
}

// Equal compares two identifiers ignoring braces and case.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Valid reports whether id is a well-formed UUID once braces are removed.
func Valid(id string) bool {
	_, err := uuid.Parse(Normalize(id))
	return err == nil
}

// FromProperties extracts the identifier of a feature record.
// GlobalID wins over globalid; numeric values are formatted.
func FromProperties(props map[string]any) (string, bool) {
	for _, key := range []string{"GlobalID", "globalid"} {
		v, ok := props[key]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val, true
			}
		case float64:
			return fmt.Sprintf("%.0f", val), true
		case int, int64:
			return fmt.Sprintf("%d", val), true
		}
	}
	return "", false
}

// Matches reports whether the feature record carries the selected id.
func Matches(props map[string]any, selected string) bool {
	id, ok := FromProperties(props)
	return ok && Equal(id, selected)
}
