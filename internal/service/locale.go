package service

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Locale is a UI language.
type Locale string

const (
	LocaleUzLatn Locale = "uz-Latn"
	LocaleUzCyrl Locale = "uz-Cyrl"
	LocaleRu     Locale = "ru"

	DefaultLocale = LocaleRu
)

// ParseLocale validates a locale tag.
func ParseLocale(v string) (Locale, error) {
	switch Locale(v) {
	case LocaleUzLatn, LocaleUzCyrl, LocaleRu:
		return Locale(v), nil
	}
	return "", fmt.Errorf("%w: unknown locale %q", ErrInvalidValue, v)
}

// LocaleOrDefault returns the locale or DefaultLocale when v is invalid.
func LocaleOrDefault(v string) Locale {
	if loc, err := ParseLocale(v); err == nil {
		return loc
	}
	return DefaultLocale
}

// cyrillic maps Uzbek Latin letters to Cyrillic. Digraphs are listed
// before the single letters they start with.
var cyrillic = []struct{ lat, cyr string }{
	{"o'", "ў"}, {"o‘", "ў"}, {"oʻ", "ў"},
	{"g'", "ғ"}, {"g‘", "ғ"}, {"gʻ", "ғ"},
	{"sh", "ш"}, {"ch", "ч"}, {"ng", "нг"},
	{"a", "а"}, {"b", "б"}, {"d", "д"}, {"e", "е"}, {"f", "ф"}, {"g", "г"},
	{"h", "ҳ"}, {"i", "и"}, {"j", "ж"}, {"k", "к"}, {"l", "л"}, {"m", "м"},
	{"n", "н"}, {"o", "о"}, {"p", "п"}, {"q", "қ"}, {"r", "р"}, {"s", "с"},
	{"t", "т"}, {"u", "у"}, {"v", "в"}, {"x", "х"}, {"y", "й"}, {"z", "з"},
	{"'", "ъ"}, {"`", "ъ"},
}

// ToCyrillic transliterates an Uzbek Latin name. The first letter is
// capitalized; everything else comes out lower-case.
func ToCyrillic(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	for i := 0; i < len(lower); {
		matched := false
		for _, m := range cyrillic {
			if strings.HasPrefix(lower[i:], m.lat) {
				b.WriteString(m.cyr)
				i += len(m.lat)
				matched = true
				break
			}
		}
		if !matched {
			r, size := utf8.DecodeRuneInString(lower[i:])
			b.WriteRune(r)
			i += size
		}
	}

	out := b.String()
	r, size := utf8.DecodeRuneInString(out)
	if size == 0 {
		return out
	}
	return string(unicode.ToUpper(r)) + out[size:]
}
