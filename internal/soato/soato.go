// Package soato parses and resolves SOATO administrative codes.
//
// A SOATO code encodes its granularity in its length: 4 digits name a
// region, 7 a district and 10 a settlement (mahalla). Longer codes always
// start with the code of their ancestors. The sentinel "all" (or an empty
// string) selects the whole country.
package soato

import "strings"

// All is the sentinel for "no administrative filter".
const All = "all"

// Code lengths per granularity.
const (
	RegionLen     = 4
	DistrictLen   = 7
	SettlementLen = 10
)

// Kind is the granularity of a parsed code.
type Kind int

const (
	KindAll Kind = iota
	KindRegion
	KindDistrict
	KindSettlement
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindRegion:
		return "region"
	case KindDistrict:
		return "district"
	case KindSettlement:
		return "settlement"
	}
	return "unknown"
}

// Code is a SOATO code tagged with its granularity.
// The zero value is the whole country.
type Code struct {
	kind  Kind
	value string
}

// Parse tags a raw code by its length. Empty input and "all" yield the
// country code. Strings whose length matches no granularity are kept
// verbatim with KindUnknown.
func Parse(raw string) Code {
	if raw == "" || raw == All {
		return Code{kind: KindAll, value: All}
	}
	switch len(raw) {
	case RegionLen:
		return Code{kind: KindRegion, value: raw}
	case DistrictLen:
		return Code{kind: KindDistrict, value: raw}
	case SettlementLen:
		return Code{kind: KindSettlement, value: raw}
	}
	return Code{kind: KindUnknown, value: raw}
}

// Kind returns the granularity.
func (c Code) Kind() Kind { return c.kind }

// String returns the raw code ("all" for the country).
func (c Code) String() string {
	if c.kind == KindAll {
		return All
	}
	return c.value
}

// Valid reports whether c is the country or a recognized all-digit code.
func (c Code) Valid() bool {
	switch c.kind {
	case KindAll:
		return true
	case KindUnknown:
		return false
	}
	return digits(c.value)
}

// IsAll reports whether c selects the whole country.
func (c Code) IsAll() bool { return c.kind == KindAll }

// Region returns the enclosing region code, or "" when c has none.
func (c Code) Region() string {
	switch c.kind {
	case KindRegion, KindDistrict, KindSettlement:
		return c.value[:RegionLen]
	}
	return ""
}

// District returns the enclosing district code, or "" when c has none.
func (c Code) District() string {
	switch c.kind {
	case KindDistrict, KindSettlement:
		return c.value[:DistrictLen]
	}
	return ""
}

// Settlement returns the settlement code, or "" when c is coarser.
func (c Code) Settlement() string {
	if c.kind == KindSettlement {
		return c.value
	}
	return ""
}

// Parent returns the next coarser code. The parent of a region, and of an
// unrecognized code, is the country.
func (c Code) Parent() Code {
	switch c.kind {
	case KindSettlement:
		return Code{kind: KindDistrict, value: c.value[:DistrictLen]}
	case KindDistrict:
		return Code{kind: KindRegion, value: c.value[:RegionLen]}
	}
	return Code{kind: KindAll, value: All}
}

// Within reports whether c lies inside (or equals) other.
// Every code is within the country; unknown codes are only within
// themselves and the country.
func (c Code) Within(other Code) bool {
	if other.kind == KindAll {
		return true
	}
	if c.kind == KindUnknown || other.kind == KindUnknown {
		return c.value == other.value
	}
	if c.kind == KindAll {
		return false
	}
	return strings.HasPrefix(c.value, other.value)
}

// Resolution is the region/district pair derived from a code.
// District is empty when the code carries no district.
type Resolution struct {
	Region   string `json:"region" doc:"Region code, or all" example:"1726"`
	District string `json:"district,omitempty" doc:"District code when the input has one" example:"1726262"`
}

// HasDistrict reports whether a district was derived.
func (r Resolution) HasDistrict() bool { return r.District != "" }

// Resolve derives the enclosing region and district of c.
// Unrecognized codes pass through as the region with no district.
func (c Code) Resolve() Resolution {
	switch c.kind {
	case KindAll:
		return Resolution{Region: All}
	case KindUnknown:
		return Resolution{Region: c.value}
	}
	return Resolution{Region: c.Region(), District: c.District()}
}

// Resolve is Parse(raw).Resolve().
func Resolve(raw string) Resolution {
	return Parse(raw).Resolve()
}

// IsNumeric reports whether s is a non-empty string of decimal digits.
func IsNumeric(s string) bool {
	return s != "" && digits(s)
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
