package api

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/humastar"
	"github.com/joeblew999/plat-eco/internal/metrics"
	"github.com/joeblew999/plat-eco/internal/regions"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/templates"
)

// Element ids the stream patches.
const (
	SummarySelector  = "#selection-summary"
	DistrictSelector = "#district-select"
)

// StreamHandler pushes selection changes to Datastar clients over SSE and
// accepts signal posts from them.
type StreamHandler struct {
	humastar.Handler
	api *APIHandler
	log *slog.Logger
}

// NewStreamHandler creates the selection stream. renderer may be nil, in
// which case only signals and events are sent.
func NewStreamHandler(h *APIHandler, renderer *templates.Renderer, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = slog.Default()
	}
	return &StreamHandler{Handler: humastar.Handler{Renderer: renderer}, api: h, log: log}
}

func (h *StreamHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/selection/events", h.Events, huma.OperationTags("selection"))
	huma.Post(api, "/api/v1/selection/signals", h.Signals, huma.OperationTags("selection"))
}

// Events sends the current selection, then one update per change until
// the client goes away.
func (h *StreamHandler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	sel := h.api.svc.Selection
	return h.Stream(func(sse humastar.SSE) {
		bus := sel.Bus()
		ch := bus.Subscribe()
		defer bus.Unsubscribe(ch)
		metrics.SelectionSubscribers.Inc()
		defer metrics.SelectionSubscribers.Dec()

		snap, err := sel.Get(ctx)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(signalsOf(snap))
		h.patch(sse, snap, true)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				snap, err := sel.Get(ctx)
				if err != nil {
					h.log.Warn("selection_stream_read", "error", err)
					continue
				}
				sse.Signals(map[string]any{string(ev.Key): ev.Value, "revision": ev.Revision})
				h.patch(sse, snap, ev.Key == service.KeySoato || ev.Key == service.KeyLocale)
				if err := sse.DispatchCustomEvent("selection-changed", ev); err != nil {
					h.log.Debug("selection_stream_closed", "error", err)
					return
				}
			}
		}
	}), nil
}

// Signals applies the selection keys present in the posted Datastar
// signals and answers with the stored values.
func (h *StreamHandler) Signals(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	values := map[service.Key]string{}
	for _, k := range service.Keys {
		if signals.Has(string(k)) {
			values[k] = signals.String(string(k))
		}
	}
	return h.Stream(func(sse humastar.SSE) {
		snap, err := h.api.svc.Selection.Patch(ctx, values)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Signals(signalsOf(snap))
	}), nil
}

func signalsOf(sel service.Selection) map[string]any {
	m := map[string]any{"revision": sel.Revision}
	for _, k := range service.Keys {
		m[string(k)] = sel.Value(k)
	}
	return m
}

type summaryLabels struct {
	Area, Country, Year, Status string
}

var labels = map[service.Locale]summaryLabels{
	service.LocaleRu:     {"Территория", "Вся республика", "Год", "Статус"},
	service.LocaleUzLatn: {"Hudud", "Respublika bo'yicha", "Yil", "Holat"},
	service.LocaleUzCyrl: {"Ҳудуд", "Республика бўйича", "Йил", "Ҳолат"},
}

type summaryData struct {
	Revision uint64
	AreaName string
	Year     string
	Status   string
	ID       string
	Labels   summaryLabels
}

// patch re-renders the summary and, when the area or locale changed, the
// district picker of the selected region.
func (h *StreamHandler) patch(sse humastar.SSE, sel service.Selection, districts bool) {
	if h.Renderer == nil {
		return
	}
	loc := service.LocaleOrDefault(sel.Locale)
	code := sel.Code()

	html, err := h.Renderer.Render("selection-summary", summaryData{
		Revision: sel.Revision,
		AreaName: h.api.areaName(code, loc),
		Year:     sel.Year,
		Status:   sel.Status,
		ID:       sel.SelectedID,
		Labels:   labels[loc],
	})
	if err != nil {
		h.log.Error("render_summary", "error", err)
		return
	}
	sse.Patch(html, SummarySelector)

	if !districts || code.Region() == "" {
		return
	}
	var options []humastar.SelectOptionData
	for _, f := range h.api.svc.Regions.Districts(code.Region()) {
		dc := regions.DistrictCode(f)
		name, ok := h.api.svc.Regions.DistrictName(dc, loc)
		if !ok {
			name = dc
		}
		options = append(options, humastar.SelectOptionData{
			Value:    dc,
			Label:    name,
			Selected: dc == code.District(),
		})
	}
	sse.Patch(h.RenderSelect(labels[loc].Area, options), DistrictSelector)
}
