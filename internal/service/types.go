// Package service contains business logic for the plat-eco platform.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joeblew999/plat-eco/internal/globalid"
	"github.com/joeblew999/plat-eco/internal/soato"
)

var (
	ErrUnknownKey   = errors.New("unknown selection key")
	ErrInvalidValue = errors.New("invalid selection value")
	ErrNotFound     = errors.New("not found")
)

// Key names a shared selection entry. The names match the keys the portal
// widgets exchange.
type Key string

const (
	KeySoato      Key = "selectedSoato"
	KeyYear       Key = "selectedYear"
	KeyStatus     Key = "status"
	KeySelectedID Key = "selectedId"
	KeyLocale     Key = "customLocal"
	KeyThemeColor Key = "selectedThemeColor"
)

// Keys lists every selection key in display order.
var Keys = []Key{KeySoato, KeyYear, KeyStatus, KeySelectedID, KeyLocale, KeyThemeColor}

// ParseKey validates a key name.
func ParseKey(s string) (Key, error) {
	for _, k := range Keys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// Selection is a snapshot of the shared selection state.
type Selection struct {
	Soato      string `json:"selectedSoato" doc:"SOATO code or all" example:"1726262"`
	Year       string `json:"selectedYear,omitempty" doc:"Four digit year" example:"2024"`
	Status     string `json:"status,omitempty" doc:"Status filter (Uzbek value)" example:"jarayonda"`
	SelectedID string `json:"selectedId,omitempty" doc:"Selected feature GlobalID, braced" example:"{6F1E2C3A-0000-4000-8000-000000000001}"`
	Locale     string `json:"customLocal" doc:"UI locale" enum:"uz-Latn,uz-Cyrl,ru" example:"ru"`
	ThemeColor string `json:"selectedThemeColor,omitempty" doc:"UI theme color" example:"#1e3a8a"`
	Revision   uint64 `json:"revision" doc:"Monotonic write counter"`
}

// Value returns the value stored under key.
func (s Selection) Value(key Key) string {
	switch key {
	case KeySoato:
		return s.Soato
	case KeyYear:
		return s.Year
	case KeyStatus:
		return s.Status
	case KeySelectedID:
		return s.SelectedID
	case KeyLocale:
		return s.Locale
	case KeyThemeColor:
		return s.ThemeColor
	}
	return ""
}

// Code returns the selected SOATO code.
func (s Selection) Code() soato.Code {
	return soato.Parse(s.Soato)
}

// selectionFrom builds a snapshot from raw stored values, applying defaults.
func selectionFrom(values map[Key]string, rev uint64) Selection {
	sel := Selection{
		Soato:      values[KeySoato],
		Year:       values[KeyYear],
		Status:     values[KeyStatus],
		SelectedID: values[KeySelectedID],
		Locale:     values[KeyLocale],
		ThemeColor: values[KeyThemeColor],
		Revision:   rev,
	}
	if sel.Soato == "" {
		sel.Soato = soato.All
	}
	if sel.Locale == "" {
		sel.Locale = string(DefaultLocale)
	}
	return sel
}

// NormalizeValue validates value for key and returns its stored form.
// An empty value clears the key.
func NormalizeValue(key Key, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	switch key {
	case KeySoato:
		if value == soato.All {
			return value, nil
		}
		// unrecognized lengths pass through, but only digits are codes
		if !soato.IsNumeric(value) {
			return "", fmt.Errorf("%w: %s must be digits or %q", ErrInvalidValue, key, soato.All)
		}
		return value, nil
	case KeyYear:
		if len(value) != 4 || !soato.IsNumeric(value) {
			return "", fmt.Errorf("%w: %s must be a four digit year", ErrInvalidValue, key)
		}
		return value, nil
	case KeyStatus:
		st, err := ParseStatus(value)
		if err != nil {
			return "", err
		}
		return st.Uzbek(), nil
	case KeySelectedID:
		return globalid.Canonical(value), nil
	case KeyLocale:
		loc, err := ParseLocale(value)
		if err != nil {
			return "", err
		}
		return string(loc), nil
	case KeyThemeColor:
		if !isHexColor(value) {
			return "", fmt.Errorf("%w: %s must be #rgb or #rrggbb", ErrInvalidValue, key)
		}
		return strings.ToLower(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
