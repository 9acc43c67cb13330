// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// It provides:
//   - SSE: Huma streaming to the Datastar SSE protocol via [SSE] and [NewSSE]
//   - Signals: Datastar signal parsing via [Signals] and [SignalsInput]
//   - Rendering: fragment list/select helpers via [Handler]
//   - Links: RFC 8288 Link headers derived from the OpenAPI document, response
//     pagination and state-dependent actions
//
// Usage:
//
//	type StreamHandler struct {
//	    humastar.Handler
//	    selection *service.SelectionService
//	}
//
//	func (h *StreamHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Signals(map[string]any{"selectedSoato": "1726"})
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-eco/internal/templates"
)

// Handler is an embeddable base for Huma handlers that produce Datastar SSE
// responses.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream returns a Huma StreamResponse that calls fn with a ready SSE helper.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(NewSSE(humaCtx))
		},
	}
}

// RenderList renders items with a named fragment, or an empty state if none.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		h.Renderer.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		h.Renderer.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}

// SelectOptionData holds data for one <option>.
type SelectOptionData struct {
	Value    string
	Label    string
	Selected bool
}

// RenderSelect renders a placeholder option followed by options.
func (h *Handler) RenderSelect(placeholder string, options []SelectOptionData) string {
	var buf bytes.Buffer
	h.Renderer.RenderToBuffer(&buf, "select-option", SelectOptionData{Label: placeholder})
	for _, opt := range options {
		h.Renderer.RenderToBuffer(&buf, "select-option", opt)
	}
	return buf.String()
}

// SSE wraps a Datastar SSE generator.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch sends HTML to replace inner content at a CSS selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
	)
}

// Error sends an error signal to the UI.
func (s SSE) Error(msg string) {
	s.MarshalAndPatchSignals(map[string]any{"error": msg})
}

// Signals sends arbitrary signals to the UI.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Signals provides typed access to Datastar signal values.
// Datastar sends all signals as a flat JSON object in the request body.
type Signals map[string]any

// ParseSignals parses Datastar signals from a raw request body.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns a signal as a string. Numbers are formatted as JSON would
// print them, so numeric codes survive a round trip through the browser.
func (s Signals) String(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case float64:
		b, _ := json.Marshal(v)
		return string(b)
	}
	return ""
}

// Has returns true if the signal key exists (even if zero-valued).
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// EmptyInput is a shared input struct for handlers with no parameters.
type EmptyInput struct{}

// SignalsInput is an input struct for handlers that receive Datastar signals.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses signals or returns a Huma 400 error.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
