// Package regions looks up administrative boundaries by SOATO code and
// builds the map geometry derived from them.
package regions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-eco/internal/metrics"
	"github.com/joeblew999/plat-eco/internal/service"
	"github.com/joeblew999/plat-eco/internal/soato"
)

// File names inside the regions directory.
const (
	RegionsFile   = "regions.geojson"
	DistrictsFile = "districts.geojson"
)

// Catalog holds the region and district boundary layers.
type Catalog struct {
	regions   []*geojson.Feature
	districts []*geojson.Feature
	index     *rtreego.Rtree
}

// Load reads both layers from dir. A missing file leaves its layer empty.
func Load(dir string) (*Catalog, error) {
	regions, err := readLayer(filepath.Join(dir, RegionsFile))
	if err != nil {
		return nil, err
	}
	districts, err := readLayer(filepath.Join(dir, DistrictsFile))
	if err != nil {
		return nil, err
	}
	return New(regions, districts), nil
}

func readLayer(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return geojson.NewFeatureCollection(), nil
	}
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return fc, nil
}

// New builds a catalog from already parsed layers.
func New(regions, districts *geojson.FeatureCollection) *Catalog {
	c := &Catalog{index: rtreego.NewTree(2, 25, 50)}
	if regions != nil {
		c.regions = regions.Features
	}
	if districts != nil {
		c.districts = districts.Features
	}
	for _, f := range c.regions {
		c.insert(f, soato.KindRegion, prop(f, "region_soato"))
	}
	for _, f := range c.districts {
		c.insert(f, soato.KindDistrict, DistrictCode(f))
	}
	return c
}

// Size returns the number of region and district features.
func (c *Catalog) Size() (regions, districts int) {
	return len(c.regions), len(c.districts)
}

// FindRegion looks a region feature up by code: first by SOATO code and
// ISO key together, then by SOATO code, then by ISO key alone.
func (c *Catalog) FindRegion(code string) (*geojson.Feature, bool) {
	if code == "" || code == soato.All {
		return nil, false
	}
	info, known := LookupRegion(code)

	if known {
		for _, f := range c.regions {
			if prop(f, "region_soato") == code && prop(f, "shapeISO") == info.ISO {
				return hit("region", f)
			}
		}
	}
	for _, f := range c.regions {
		if prop(f, "region_soato") == code {
			return hit("region", f)
		}
	}
	if known {
		for _, f := range c.regions {
			if prop(f, "shapeISO") == info.ISO {
				return hit("region", f)
			}
		}
	}
	return miss("region")
}

// FindDistrict looks a district feature up by its district or soato property.
func (c *Catalog) FindDistrict(code string) (*geojson.Feature, bool) {
	if code == "" {
		return miss("district")
	}
	for _, f := range c.districts {
		if prop(f, "district") == code || prop(f, "soato") == code {
			return hit("district", f)
		}
	}
	return miss("district")
}

// Districts returns the districts inside region.
func (c *Catalog) Districts(region string) []*geojson.Feature {
	parent := soato.Parse(region)
	var out []*geojson.Feature
	for _, f := range c.districts {
		code := DistrictCode(f)
		if code == "" {
			continue
		}
		if soato.Parse(code).Within(parent) || prop(f, "region_soato") == region {
			out = append(out, f)
		}
	}
	return out
}

// Geometry returns the boundary for a code: the union of every region for
// the country, the region, or the enclosing district for districts and
// settlements.
func (c *Catalog) Geometry(code soato.Code) (orb.MultiPolygon, error) {
	var f *geojson.Feature
	var ok bool
	switch code.Kind() {
	case soato.KindAll:
		mp := Union(c.regions)
		if len(mp) == 0 {
			return nil, fmt.Errorf("country outline: %w", service.ErrNotFound)
		}
		return mp, nil
	case soato.KindRegion:
		f, ok = c.FindRegion(code.Region())
	case soato.KindDistrict, soato.KindSettlement:
		f, ok = c.FindDistrict(code.District())
	default:
		// unrecognized codes may still name a feature verbatim
		if f, ok = c.FindDistrict(code.String()); !ok {
			f, ok = c.FindRegion(code.String())
		}
	}
	if !ok {
		return nil, fmt.Errorf("boundary %s: %w", code, service.ErrNotFound)
	}
	return Polygons(f.Geometry)
}

// DistrictName returns the district name in loc. Districts without a
// localized name fall back to nomi_lot, transliterated for uz-Cyrl.
func (c *Catalog) DistrictName(code string, loc service.Locale) (string, bool) {
	f, ok := c.FindDistrict(code)
	if !ok {
		return "", false
	}
	if name := prop(f, "nomi_"+string(loc)); name != "" {
		return name, true
	}
	if name := prop(f, string(loc)); name != "" {
		return name, true
	}
	lot := prop(f, "nomi_lot")
	if lot == "" {
		return "", false
	}
	if loc == service.LocaleUzCyrl {
		return service.ToCyrillic(lot), true
	}
	return lot, true
}

// RegionName returns the region name in loc, preferring names carried by
// the boundary layer over the static table.
func (c *Catalog) RegionName(code string, loc service.Locale) (string, bool) {
	if f, ok := c.FindRegion(code); ok {
		if name := prop(f, "nomi_"+string(loc)); name != "" {
			return name, true
		}
	}
	r, ok := LookupRegion(code)
	if !ok {
		return "", false
	}
	switch loc {
	case service.LocaleRu:
		return r.NameRu, true
	case service.LocaleUzCyrl:
		return service.ToCyrillic(r.NameUz), true
	}
	return r.NameUz, true
}

// Location is the administrative position of a point.
type Location struct {
	Region   string `json:"region,omitempty" doc:"Region SOATO code"`
	District string `json:"district,omitempty" doc:"District SOATO code"`
}

// Locate finds the district and region containing p.
func (c *Catalog) Locate(p orb.Point) (Location, bool) {
	var loc Location
	const eps = 1e-9
	query, err := rtreego.NewRect(rtreego.Point{p[0] - eps, p[1] - eps}, []float64{2 * eps, 2 * eps})
	if err != nil {
		return loc, false
	}
	for _, s := range c.index.SearchIntersect(query) {
		e := s.(*entry)
		if !contains(e.feature.Geometry, p) {
			continue
		}
		switch e.kind {
		case soato.KindDistrict:
			loc.District = e.code
		case soato.KindRegion:
			loc.Region = e.code
		}
	}
	if loc.Region == "" && loc.District != "" {
		loc.Region = soato.Parse(loc.District).Region()
	}
	found := loc.Region != "" || loc.District != ""
	if found {
		metrics.RegionLookupsTotal.WithLabelValues("locate", "hit").Inc()
	} else {
		metrics.RegionLookupsTotal.WithLabelValues("locate", "miss").Inc()
	}
	return loc, found
}

// RegionKey returns the identifying key of a boundary feature, falling
// back to its position in the layer.
func RegionKey(f *geojson.Feature, index int) string {
	for _, k := range []string{"district_soato", "region_soato", "soato", "shapeISO", "shapeId", "shapeName"} {
		if v := prop(f, k); v != "" {
			return v
		}
	}
	return fmt.Sprintf("region-%d", index)
}

// entry is a boundary feature stored in the R-tree.
type entry struct {
	feature *geojson.Feature
	kind    soato.Kind
	code    string
	bound   orb.Bound
}

// Bounds implements the rtreego.Spatial interface.
func (e *entry) Bounds() rtreego.Rect {
	minX, minY := e.bound.Min[0], e.bound.Min[1]
	w := e.bound.Max[0] - minX
	h := e.bound.Max[1] - minY
	// rtreego rejects zero-length sides
	if w <= 0 {
		w = 1e-9
	}
	if h <= 0 {
		h = 1e-9
	}
	rect, _ := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	return rect
}

func (c *Catalog) insert(f *geojson.Feature, kind soato.Kind, code string) {
	if f.Geometry == nil || code == "" {
		return
	}
	c.index.Insert(&entry{feature: f, kind: kind, code: code, bound: f.Geometry.Bound()})
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	}
	return false
}

// DistrictCode returns the SOATO code of a district feature.
func DistrictCode(f *geojson.Feature) string {
	if code := prop(f, "district"); code != "" {
		return code
	}
	return prop(f, "soato")
}

// prop returns a feature property as a string; numbers are formatted
// without a fraction so numeric SOATO codes compare as text.
func prop(f *geojson.Feature, key string) string {
	switch v := f.Properties[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func hit(kind string, f *geojson.Feature) (*geojson.Feature, bool) {
	metrics.RegionLookupsTotal.WithLabelValues(kind, "hit").Inc()
	return f, true
}

func miss(kind string) (*geojson.Feature, bool) {
	metrics.RegionLookupsTotal.WithLabelValues(kind, "miss").Inc()
	return nil, false
}
