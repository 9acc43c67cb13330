package api

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-eco/internal/service"
)

type SelectionOutput struct {
	Body service.Selection
}

type KeyInput struct {
	Key string `path:"key" doc:"Selection key: selectedSoato, selectedYear, status, selectedId, customLocal or selectedThemeColor"`
}

type FilterBody struct {
	Filter service.Filter `json:"filter" doc:"Derived record filter"`
	Query  string         `json:"query" doc:"Filter as upstream API query string" example:"district=1726262&offset=0&limit=50"`
	Code   string         `json:"code" doc:"Finest area the filter selects"`
	URL    string         `json:"url,omitempty" doc:"Upstream GeoJSON request for the filter, when an upstream is configured" example:"http://10.0.71.2:8000/api/ecology/geojson?district=1726262&offset=0&limit=50"`
}

// upstreamGeoJSON is the upstream path the map fetches filtered features from.
const upstreamGeoJSON = "/api/ecology/geojson"

// RegisterSelection registers the shared selection routes.
func (h *APIHandler) RegisterSelection(api huma.API) {
	huma.Get(api, "/api/v1/selection", h.GetSelection, huma.OperationTags("selection"))
	huma.Put(api, "/api/v1/selection", h.PatchSelection, huma.OperationTags("selection"))
	huma.Put(api, "/api/v1/selection/{key}", h.PutSelectionKey, huma.OperationTags("selection"))
	huma.Delete(api, "/api/v1/selection/{key}", h.DeleteSelectionKey, huma.OperationTags("selection"))
	huma.Get(api, "/api/v1/selection/filter", h.GetSelectionFilter, huma.OperationTags("selection"))
}

func (h *APIHandler) GetSelection(ctx context.Context, input *struct{}) (*SelectionOutput, error) {
	sel, err := h.svc.Selection.Get(ctx)
	if err != nil {
		return nil, httpError(err)
	}
	return &SelectionOutput{Body: sel}, nil
}

// PatchSelection writes several keys at once; keys left out are untouched
// and an empty string clears a key.
func (h *APIHandler) PatchSelection(ctx context.Context, input *struct {
	Body map[string]string `doc:"Key to value; empty values clear"`
}) (*SelectionOutput, error) {
	values := make(map[service.Key]string, len(input.Body))
	for k, v := range input.Body {
		values[service.Key(k)] = v
	}
	sel, err := h.svc.Selection.Patch(ctx, values)
	if err != nil {
		return nil, httpError(err)
	}
	return &SelectionOutput{Body: sel}, nil
}

func (h *APIHandler) PutSelectionKey(ctx context.Context, input *struct {
	KeyInput
	Body struct {
		Value string `json:"value" doc:"New value; empty clears" example:"1726262"`
	}
}) (*SelectionOutput, error) {
	key, err := service.ParseKey(input.Key)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	sel, err := h.svc.Selection.Set(ctx, key, input.Body.Value)
	if err != nil {
		return nil, httpError(err)
	}
	return &SelectionOutput{Body: sel}, nil
}

func (h *APIHandler) DeleteSelectionKey(ctx context.Context, input *KeyInput) (*SelectionOutput, error) {
	key, err := service.ParseKey(input.Key)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	sel, err := h.svc.Selection.Clear(ctx, key)
	if err != nil {
		return nil, httpError(err)
	}
	return &SelectionOutput{Body: sel}, nil
}

func (h *APIHandler) GetSelectionFilter(ctx context.Context, input *struct {
	Offset int `query:"offset" minimum:"0" default:"0"`
	Limit  int `query:"limit" minimum:"0" maximum:"1000" default:"50"`
}) (*struct{ Body FilterBody }, error) {
	f, err := h.svc.Selection.Filter(ctx)
	if err != nil {
		return nil, httpError(err)
	}
	f.Offset, f.Limit = input.Offset, input.Limit
	body := FilterBody{
		Filter: f,
		Query:  f.Values().Encode(),
		Code:   f.Code().String(),
	}
	if h.svc.Upstream != "" {
		body.URL = strings.TrimRight(h.svc.Upstream, "/") + upstreamGeoJSON + "?" + body.Query
	}
	return &struct{ Body FilterBody }{Body: body}, nil
}
