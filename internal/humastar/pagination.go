package humastar

import (
	"fmt"
	"strings"
)

// Pager is implemented by response bodies that carry pagination metadata.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageBody is a paginated response envelope. Returning it from a handler
// yields first/prev/next/last Link headers.
type PageBody[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
// basePath may carry a query string; offset and limit are appended to it.
func (p PageBody[T]) PaginationLinks(basePath string) []string {
	if p.Limit <= 0 {
		return nil
	}
	sep := "?"
	if strings.Contains(basePath, "?") {
		sep = "&"
	}
	link := func(offset int, rel string) string {
		return fmt.Sprintf(`<%s%soffset=%d&limit=%d>; rel="%s"`, basePath, sep, offset, p.Limit, rel)
	}

	links := []string{link(0, "first")}
	if p.Offset > 0 {
		links = append(links, link(max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, link(p.Offset+p.Limit, "next"))
	}
	last := max((p.Total-1)/p.Limit*p.Limit, 0)
	return append(links, link(last, "last"))
}
