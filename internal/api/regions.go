package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-eco/internal/humastar"
	"github.com/joeblew999/plat-eco/internal/regions"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/soato"
)

type LocaleInput struct {
	Locale string `query:"locale" doc:"Name locale; defaults to the selection locale" enum:"uz-Latn,uz-Cyrl,ru"`
}

type RegionSummary struct {
	Code        string `json:"code" doc:"Region SOATO code" example:"1726"`
	ISO         string `json:"iso" doc:"ISO 3166-2 key" example:"UZ-TK"`
	Name        string `json:"name" doc:"Localized name"`
	HasBoundary bool   `json:"hasBoundary" doc:"Whether the boundary layer has this region"`
}

type DistrictSummary struct {
	Code string `json:"code" doc:"District SOATO code" example:"1726262"`
	Name string `json:"name" doc:"Localized name"`
	Key  string `json:"key" doc:"Feature key in the boundary layer"`
}

// RegionBody describes one administrative unit and its boundary.
type RegionBody struct {
	Code     string    `json:"code" doc:"SOATO code or all"`
	Kind     string    `json:"kind" doc:"Granularity"`
	Name     string    `json:"name,omitempty" doc:"Localized name"`
	Parent   string    `json:"parent" doc:"Enclosing code"`
	BBox     []float64 `json:"bbox" doc:"Boundary extent as [minLon, minLat, maxLon, maxLat]"`
	Geometry any       `json:"geometry" doc:"GeoJSON MultiPolygon boundary"`
}

var regionActions = []humastar.ActionDef{
	{Rel: "mask", Pattern: "/api/v1/regions/%s/mask", Method: "GET", Title: "Map mask"},
	{Rel: "view", Pattern: "/api/v1/regions/%s/view", Method: "GET", Title: "Camera target"},
}

// Actions lists what a client can do with the unit: select it, mask and
// frame it, walk up to its parent and, for regions, list its districts.
func (b RegionBody) Actions() []humastar.Action {
	actions := []humastar.Action{{
		Rel: "select", Href: "/api/v1/selection/selectedSoato", Method: "PUT", Title: "Select " + b.Code,
	}}
	actions = append(actions, humastar.ActionsFor(b.Code, regionActions...)...)
	code := soato.Parse(b.Code)
	if code.Kind() == soato.KindRegion {
		actions = append(actions, humastar.ActionsFor(b.Code, humastar.ActionDef{
			Rel: "districts", Pattern: "/api/v1/regions/%s/districts", Method: "GET", Title: "Districts",
		})...)
	}
	if !code.IsAll() {
		actions = append(actions, humastar.Action{Rel: "up", Href: "/api/v1/regions/" + b.Parent, Method: "GET"})
	}
	return actions
}

type MaskBody struct {
	Code     string    `json:"code" doc:"SOATO code or all"`
	Extent   []float64 `json:"extent" doc:"Mask rectangle as [minLon, minLat, maxLon, maxLat]"`
	Geometry any       `json:"geometry" doc:"GeoJSON MultiPolygon: the rectangle with the selection cut out"`
}

type LocateBody struct {
	regions.Location
	Code string `json:"code" doc:"Finest code containing the point"`
	Name string `json:"name,omitempty" doc:"Localized name of that unit"`
}

// RegisterRegions registers the region catalog and map geometry routes.
func (h *APIHandler) RegisterRegions(api huma.API) {
	huma.Get(api, "/api/v1/regions", h.ListRegions, huma.OperationTags("regions"))
	huma.Get(api, "/api/v1/regions/{code}", h.GetRegion, huma.OperationTags("regions"))
	huma.Get(api, "/api/v1/regions/{code}/districts", h.ListDistricts, huma.OperationTags("regions"))
	huma.Get(api, "/api/v1/regions/{code}/mask", h.GetMask, huma.OperationTags("regions"))
	huma.Get(api, "/api/v1/regions/{code}/view", h.GetView, huma.OperationTags("regions"))
	huma.Get(api, "/api/v1/locate", h.Locate, huma.OperationTags("regions"))
}

func (h *APIHandler) ListRegions(ctx context.Context, input *LocaleInput) (*struct{ Body []RegionSummary }, error) {
	loc := h.locale(ctx, input.Locale)
	out := make([]RegionSummary, 0, len(regions.Table))
	for _, r := range regions.Table {
		name, _ := h.svc.Regions.RegionName(r.Code, loc)
		_, found := h.svc.Regions.FindRegion(r.Code)
		out = append(out, RegionSummary{Code: r.Code, ISO: r.ISO, Name: name, HasBoundary: found})
	}
	return &struct{ Body []RegionSummary }{Body: out}, nil
}

func (h *APIHandler) GetRegion(ctx context.Context, input *struct {
	CodeInput
	LocaleInput
	Simplify bool `query:"simplify" doc:"Thin rings for display"`
}) (*struct{ Body RegionBody }, error) {
	code := soato.Parse(input.Code)
	mp, err := h.svc.Regions.Geometry(code)
	if err != nil {
		return nil, httpError(err)
	}
	if input.Simplify {
		mp = regions.Outline(mp)
	}
	b := mp.Bound()
	return &struct{ Body RegionBody }{Body: RegionBody{
		Code:     code.String(),
		Kind:     code.Kind().String(),
		Name:     h.areaName(code, h.locale(ctx, input.Locale)),
		Parent:   code.Parent().String(),
		BBox:     bbox(b),
		Geometry: geojson.NewGeometry(mp),
	}}, nil
}

func (h *APIHandler) ListDistricts(ctx context.Context, input *struct {
	CodeInput
	LocaleInput
}) (*struct{ Body []DistrictSummary }, error) {
	code := soato.Parse(input.Code)
	if code.Kind() != soato.KindRegion {
		return nil, huma.Error422UnprocessableEntity("districts are listed per region code")
	}
	loc := h.locale(ctx, input.Locale)
	features := h.svc.Regions.Districts(code.Region())
	out := make([]DistrictSummary, 0, len(features))
	for i, f := range features {
		key := regions.RegionKey(f, i)
		d := DistrictSummary{Key: key, Code: regions.DistrictCode(f)}
		d.Name, _ = h.svc.Regions.DistrictName(d.Code, loc)
		out = append(out, d)
	}
	return &struct{ Body []DistrictSummary }{Body: out}, nil
}

func (h *APIHandler) GetMask(ctx context.Context, input *CodeInput) (*struct{ Body MaskBody }, error) {
	code := soato.Parse(input.Code)
	mp, err := h.svc.Regions.Geometry(code)
	if err != nil {
		return nil, httpError(err)
	}
	mask, err := regions.Mask(regions.DefaultExtent, mp)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body MaskBody }{Body: MaskBody{
		Code:     code.String(),
		Extent:   bbox(regions.DefaultExtent),
		Geometry: geojson.NewGeometry(mask),
	}}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *CodeInput) (*struct{ Body regions.Camera }, error) {
	code := soato.Parse(input.Code)
	mp, err := h.svc.Regions.Geometry(code)
	if err != nil {
		return nil, httpError(err)
	}
	padding := regions.RegionPadding
	if code.IsAll() {
		padding = regions.CountryPadding
	}
	return &struct{ Body regions.Camera }{Body: regions.View(mp, padding)}, nil
}

func (h *APIHandler) Locate(ctx context.Context, input *struct {
	Lon float64 `query:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude"`
	Lat float64 `query:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude"`
	LocaleInput
}) (*struct{ Body LocateBody }, error) {
	loc, ok := h.svc.Regions.Locate(orb.Point{input.Lon, input.Lat})
	if !ok {
		return nil, huma.Error404NotFound("point is outside every known boundary")
	}
	code := loc.District
	if code == "" {
		code = loc.Region
	}
	c := soato.Parse(code)
	return &struct{ Body LocateBody }{Body: LocateBody{
		Location: loc,
		Code:     c.String(),
		Name:     h.areaName(c, h.locale(ctx, input.Locale)),
	}}, nil
}

// locale picks the requested locale, falling back to the shared selection.
func (h *APIHandler) locale(ctx context.Context, requested string) service.Locale {
	if requested != "" {
		return service.LocaleOrDefault(requested)
	}
	if h.svc.Selection != nil {
		if sel, err := h.svc.Selection.Get(ctx); err == nil {
			return service.LocaleOrDefault(sel.Locale)
		}
	}
	return service.DefaultLocale
}

// areaName names the unit a code selects; settlements are named after
// their district.
func (h *APIHandler) areaName(code soato.Code, loc service.Locale) string {
	var name string
	switch code.Kind() {
	case soato.KindRegion:
		name, _ = h.svc.Regions.RegionName(code.Region(), loc)
	case soato.KindDistrict, soato.KindSettlement:
		name, _ = h.svc.Regions.DistrictName(code.District(), loc)
	}
	return name
}

func bbox(b orb.Bound) []float64 {
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}
