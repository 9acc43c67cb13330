package humastar

import (
	"fmt"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links holds RFC 8288 Link header values keyed by operation path.
type Links struct {
	m map[string][]string
}

// NewLinks returns an empty registry. Its Transformer can be installed in
// the Huma config before any route exists.
func NewLinks() *Links {
	return &Links{m: map[string][]string{}}
}

// Derive adds links for the registered operations: items point to their
// collection, collections to their item templates, and the /health entry
// point to every top-level collection and to the OpenAPI document. Call it
// after all routes are registered.
func (l *Links) Derive(api huma.API) {
	oapi := api.OpenAPI()

	var collections, items []string
	for p := range oapi.Paths {
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}

	for _, item := range items {
		parent := path.Dir(item)
		if _, ok := oapi.Paths[parent]; ok {
			l.Add(item, parent, "collection")
			l.Add(parent, item, "item")
		}
		if pi := oapi.Paths[item]; pi.Put != nil {
			l.Add(item, item, "edit")
		}
	}
	for _, coll := range collections {
		if coll == "/health" {
			continue
		}
		l.Add(coll, "/health", "up")
		if strings.Count(coll, "/") == 3 {
			l.Add("/health", coll, lastSegment(coll))
		}
	}
	l.Add("/health", "/openapi.json", "service-desc")
	l.Add("/health", "/docs", "service-doc")

	for p, pi := range oapi.Paths {
		if ref := responseSchema(pi); ref != "" {
			l.Add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}
}

// Add registers a link from one operation path to a target.
func (l *Links) Add(from, to, rel string) {
	val := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
	for _, existing := range l.m[from] {
		if existing == val {
			return
		}
	}
	l.m[from] = append(l.m[from], val)
}

// For returns the links registered for an operation path.
func (l *Links) For(opPath string) []string {
	return l.m[opPath]
}

// Transformer returns a Huma Transformer that writes the Link headers.
// Besides the registered links it adds a self link on item endpoints,
// pagination links for Pager bodies and action links for Actor bodies.
func (l *Links) Transformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range l.m[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		u := ctx.URL()
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, u.Path))
		}
		if p, ok := v.(Pager); ok {
			q := u.Query()
			q.Del("offset")
			q.Del("limit")
			base := u.Path
			if enc := q.Encode(); enc != "" {
				base += "?" + enc
			}
			for _, link := range p.PaginationLinks(base) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

func lastSegment(p string) string {
	return path.Base(strings.TrimRight(p, "/"))
}

func responseSchema(pi *huma.PathItem) string {
	if pi.Get == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp.Content == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return path.Base(mt.Schema.Ref)
			}
		}
	}
	return ""
}
