package geo

import (
	"github.com/paulmach/orb"

	"github.com/williamstreaties/atlas/pkg/proj"
)

// ProjectGeometry applies a coordinate transform to every vertex of a
// geometry, returning a new geometry of the same type.
func ProjectGeometry(g orb.Geometry, transform func(x, y float64) (float64, float64)) orb.Geometry {
	switch v := g.(type) {
	case orb.Point:
		x, y := transform(v[0], v[1])
		return orb.Point{x, y}
	case orb.MultiPoint:
		out := make(orb.MultiPoint, len(v))
		for i, p := range v {
			x, y := transform(p[0], p[1])
			out[i] = orb.Point{x, y}
		}
		return out
	case orb.LineString:
		out := make(orb.LineString, len(v))
		for i, p := range v {
			x, y := transform(p[0], p[1])
			out[i] = orb.Point{x, y}
		}
		return out
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(v))
		for i, ls := range v {
			out[i] = ProjectGeometry(ls, transform).(orb.LineString)
		}
		return out
	case orb.Ring:
		out := make(orb.Ring, len(v))
		for i, p := range v {
			x, y := transform(p[0], p[1])
			out[i] = orb.Point{x, y}
		}
		return out
	case orb.Polygon:
		out := make(orb.Polygon, len(v))
		for i, r := range v {
			out[i] = ProjectGeometry(r, transform).(orb.Ring)
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(v))
		for i, p := range v {
			out[i] = ProjectGeometry(p, transform).(orb.Polygon)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(v))
		for i, c := range v {
			out[i] = ProjectGeometry(c, transform)
		}
		return out
	case orb.Bound:
		return ProjectGeometry(v.ToPolygon(), transform)
	}
	return g
}

// ToProjected reprojects a geographic geometry into a projected CRS.
func ToProjected(g orb.Geometry, p proj.Projection) orb.Geometry {
	return ProjectGeometry(g, p.Forward)
}

// ToGeographic reprojects a projected geometry back to lon/lat.
func ToGeographic(g orb.Geometry, p proj.Projection) orb.Geometry {
	return ProjectGeometry(g, p.Inverse)
}

// AreaSqM returns the area of a polygonal geometry in square metres,
// measured in the given projected CRS. Holes subtract; other geometry types
// measure zero.
func AreaSqM(g orb.Geometry, p proj.Projection) float64 {
	switch v := g.(type) {
	case orb.Polygon:
		return polygonAreaSqM(v, p)
	case orb.MultiPolygon:
		total := 0.0
		for _, poly := range v {
			total += polygonAreaSqM(poly, p)
		}
		return total
	case orb.Bound:
		return polygonAreaSqM(BoundPolygon(v), p)
	}
	return 0
}

// AreaSqKm is AreaSqM in square kilometres.
func AreaSqKm(g orb.Geometry, p proj.Projection) float64 {
	return AreaSqM(g, p) / 1e6
}

// AreaHectares is AreaSqM in hectares.
func AreaHectares(g orb.Geometry, p proj.Projection) float64 {
	return AreaSqM(g, p) / 1e4
}

func polygonAreaSqM(poly orb.Polygon, p proj.Projection) float64 {
	if len(poly) == 0 {
		return 0
	}
	area := ringAreaSqM(poly[0], p)
	for _, hole := range poly[1:] {
		area -= ringAreaSqM(hole, p)
	}
	if area < 0 {
		area = 0
	}
	return area
}

func ringAreaSqM(ring orb.Ring, p proj.Projection) float64 {
	pts := make([][2]float64, len(ring))
	for i, pt := range ring {
		x, y := p.Forward(pt[0], pt[1])
		pts[i] = [2]float64{x, y}
	}
	return proj.RingArea(pts)
}

// UTMForBound picks the UTM projection covering the centre of a geographic
// bound.
func UTMForBound(b orb.Bound) proj.Projection {
	return proj.NAD83UTM(proj.UTMZone(b.Center()[0]))
}
