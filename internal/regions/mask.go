package regions

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// DefaultExtent is the world rectangle the mask is cut from.
var DefaultExtent = orb.Bound{Min: orb.Point{5, 14}, Max: orb.Point{125, 69}}

// Camera and simplification limits.
const (
	MinZoom = 6
	MaxZoom = 20

	CountryPadding = 1.1
	RegionPadding  = 1.2

	RingTolerance = 0.05
	MaxRingPoints = 350
)

var (
	ErrOutsideExtent = errors.New("selection is outside the mask extent")
	ErrNotPolygonal  = errors.New("geometry is not polygonal")
)

// Polygons returns g as a MultiPolygon.
func Polygons(g orb.Geometry) (orb.MultiPolygon, error) {
	switch g := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}, nil
	case orb.MultiPolygon:
		return g, nil
	case nil:
		return nil, ErrNotPolygonal
	}
	return nil, fmt.Errorf("%s: %w", g.GeoJSONType(), ErrNotPolygonal)
}

// Union collects the polygonal geometries of features into one
// MultiPolygon. Overlapping parts are not dissolved.
func Union(features []*geojson.Feature) orb.MultiPolygon {
	var mp orb.MultiPolygon
	for _, f := range features {
		polys, err := Polygons(f.Geometry)
		if err != nil {
			continue
		}
		mp = append(mp, polys...)
	}
	return mp
}

// Mask cuts the selection out of the extent rectangle. The first polygon
// is the rectangle with every outer ring of the selection as a hole; the
// selection's own holes come back as separate polygons so they stay
// shaded.
func Mask(extent orb.Bound, g orb.Geometry) (orb.MultiPolygon, error) {
	polys, err := Polygons(g)
	if err != nil {
		return nil, err
	}
	if len(polys) == 0 {
		return nil, ErrNotPolygonal
	}
	b := polys.Bound()
	if !extent.Contains(b.Min) || !extent.Contains(b.Max) {
		return nil, ErrOutsideExtent
	}

	frame := orb.Polygon{orient(extent.ToRing(), orb.CCW)}
	var islands orb.MultiPolygon
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		frame = append(frame, orient(p[0], orb.CW))
		for _, hole := range p[1:] {
			islands = append(islands, orb.Polygon{orient(hole, orb.CCW)})
		}
	}
	return append(orb.MultiPolygon{frame}, islands...), nil
}

// orient returns r wound in direction o, copying when it must reverse.
func orient(r orb.Ring, o orb.Orientation) orb.Ring {
	if r.Orientation() == o || len(r) < 4 {
		return r
	}
	out := r.Clone()
	out.Reverse()
	return out
}

// Expand scales b about its center.
func Expand(b orb.Bound, factor float64) orb.Bound {
	c := b.Center()
	hw := (b.Max[0] - b.Min[0]) * factor / 2
	hh := (b.Max[1] - b.Min[1]) * factor / 2
	return orb.Bound{
		Min: orb.Point{c[0] - hw, c[1] - hh},
		Max: orb.Point{c[0] + hw, c[1] + hh},
	}
}

// SimplifyRing thins a closed ring: points closer than RingTolerance on
// both axes to the last kept point are dropped, then every other point
// is dropped until the ring has at most MaxRingPoints. The input is
// returned unchanged when simplifying would leave fewer than 4 points.
func SimplifyRing(r orb.Ring) orb.Ring {
	if len(r) < 4 {
		return r
	}
	// Radial keeps points strictly beyond its threshold; a point exactly
	// RingTolerance away is kept.
	threshold := math.Nextafter(RingTolerance, 0)
	thinned, ok := simplify.Radial(chebyshev, threshold).Simplify(r.Clone()).(orb.Ring)
	if !ok || len(thinned) < 4 {
		return r
	}
	thinned = closeRing(thinned)

	for len(thinned) > MaxRingPoints {
		half := make(orb.Ring, 0, len(thinned)/2+1)
		for i := 0; i < len(thinned)-1; i += 2 {
			half = append(half, thinned[i])
		}
		half = closeRing(half)
		if len(half) < 4 {
			break
		}
		thinned = half
	}
	if len(thinned) < 4 {
		return r
	}
	return thinned
}

func chebyshev(a, b orb.Point) float64 {
	return math.Max(math.Abs(a[0]-b[0]), math.Abs(a[1]-b[1]))
}

func closeRing(r orb.Ring) orb.Ring {
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}
	return r
}

// Outline simplifies every ring of the polygons.
func Outline(mp orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, p := range mp {
		q := make(orb.Polygon, 0, len(p))
		for _, r := range p {
			q = append(q, SimplifyRing(r))
		}
		out = append(out, q)
	}
	return out
}

// Camera is where the map should look to frame a selection.
type Camera struct {
	Extent orb.Bound `json:"-"`
	BBox   []float64 `json:"bbox" doc:"Padded extent as [minLon, minLat, maxLon, maxLat]"`
	Center []float64 `json:"center" doc:"Center as [lon, lat]"`
	Zoom   int       `json:"zoom" doc:"Web map zoom level" minimum:"6" maximum:"20"`
}

// View frames mp padded by factor. The zoom assumes a viewport four tiles
// wide and is clamped to MinZoom..MaxZoom.
func View(mp orb.MultiPolygon, factor float64) Camera {
	ext := Expand(mp.Bound(), factor)
	c := ext.Center()
	return Camera{
		Extent: ext,
		BBox:   []float64{ext.Min[0], ext.Min[1], ext.Max[0], ext.Max[1]},
		Center: []float64{c[0], c[1]},
		Zoom:   zoomFor(ext),
	}
}

func zoomFor(b orb.Bound) int {
	span := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	if span <= 0 {
		return MaxZoom
	}
	z := int(math.Floor(math.Log2(360 * 4 / span)))
	return max(MinZoom, min(MaxZoom, z))
}

// Area is the planar area of the polygons in square degrees.
func Area(mp orb.MultiPolygon) float64 {
	return math.Abs(planar.Area(mp))
}
