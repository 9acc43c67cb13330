package service

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-eco/internal/soato"
)

// Filter narrows ecology records. Empty fields do not filter.
// At most one of Region, District and Mahalla is set by FilterFromSelection.
type Filter struct {
	Year     string `query:"year" json:"year,omitempty" doc:"Four digit year" example:"2024"`
	Region   string `query:"region" json:"region,omitempty" doc:"Region SOATO code" example:"1726"`
	District string `query:"district" json:"district,omitempty" doc:"District SOATO code" example:"1726262"`
	Mahalla  string `query:"mahalla_id" json:"mahalla_id,omitempty" doc:"Settlement SOATO code" example:"1726262001"`
	Status   string `query:"status" json:"status,omitempty" doc:"Status (Uzbek value)" example:"jarayonda"`
	Tur      string `query:"tur" json:"tur,omitempty" doc:"Violation category"`
	Offset   int    `query:"offset" json:"offset" minimum:"0" default:"0" doc:"Rows to skip"`
	Limit    int    `query:"limit" json:"limit" minimum:"0" maximum:"1000" default:"50" doc:"Page size, 0 for no limit"`
}

// FilterFromSelection derives the filter the widgets used to build by hand.
// Unrecognized SOATO codes do not filter by area.
func FilterFromSelection(sel Selection) Filter {
	f := Filter{Year: sel.Year, Status: sel.Status}
	code := sel.Code()
	switch code.Kind() {
	case soato.KindRegion:
		f.Region = code.Region()
	case soato.KindDistrict:
		f.District = code.District()
	case soato.KindSettlement:
		f.Mahalla = code.Settlement()
	}
	return f
}

// Code returns the finest area the filter selects.
func (f Filter) Code() soato.Code {
	switch {
	case f.Mahalla != "":
		return soato.Parse(f.Mahalla)
	case f.District != "":
		return soato.Parse(f.District)
	case f.Region != "":
		return soato.Parse(f.Region)
	}
	return soato.Parse(soato.All)
}

// Values renders the filter as upstream API query parameters.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Year != "" {
		v.Set("year", f.Year)
	}
	if f.Region != "" {
		v.Set("region", f.Region)
	}
	if f.District != "" {
		v.Set("district", f.District)
	}
	if f.Mahalla != "" {
		v.Set("mahalla_id", f.Mahalla)
	}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.Tur != "" {
		v.Set("tur", f.Tur)
	}
	v.Set("offset", strconv.Itoa(f.Offset))
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// Where renders the filter as a parameterized SQL condition. It returns an
// empty string when nothing filters.
func (f Filter) Where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, val)
	}
	add("year", f.Year)
	add("region", f.Region)
	add("district", f.District)
	add("mahalla", f.Mahalla)
	add("status", f.Status)
	add("tur", f.Tur)

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
