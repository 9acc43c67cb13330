// Package templates renders the HTML fragments patched into the page over SSE.
package templates

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"sync"
)

//go:embed fragments/*.html
var fragments embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict builds a map from key-value pairs for nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New parses the embedded fragments.
func New() (*Renderer, error) {
	return NewFS(fragments, "fragments/*.html")
}

// NewFS parses the fragments matching pattern in fsys.
func NewFS(fsys fs.FS, pattern string) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, pattern)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload swaps in fragments from another filesystem, e.g. a working copy
// during development.
func (r *Renderer) Reload(fsys fs.FS, pattern string) error {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}
