package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geos"
	"github.com/williamstreaties/atlas/pkg/proj"
)

// ClipToBound clips every feature to a bbox. Features entirely outside are
// dropped; geometries crossing the edge are cut. Properties carry over.
func ClipToBound(fc *geojson.FeatureCollection, bound orb.Bound) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !bound.Intersects(f.Geometry.Bound()) {
			continue
		}
		clipped := clip.Geometry(bound, orb.Clone(f.Geometry))
		if clipped == nil {
			continue
		}
		nf := geojson.NewFeature(clipped)
		nf.Properties = f.Properties
		nf.ID = f.ID
		out.Append(nf)
	}
	return out
}

// ClipToGeometry intersects every feature with an arbitrary polygon mask
// using GEOS, after a cheap bbox prefilter. This is the exact clip used for
// the AOI; bbox clipping alone keeps slivers outside the treaty boundary.
func ClipToGeometry(fc *geojson.FeatureCollection, mask orb.Geometry) (*geojson.FeatureCollection, error) {
	maskGeom, err := toGeos(mask)
	if err != nil {
		return nil, fmt.Errorf("failed to load clip mask: %w", err)
	}

	maskBound := mask.Bound()
	out := geojson.NewFeatureCollection()

	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !maskBound.Intersects(f.Geometry.Bound()) {
			continue
		}

		g, err := toGeos(f.Geometry)
		if err != nil {
			// A single unparseable geometry should not sink the layer.
			continue
		}
		if !maskGeom.Intersects(g) {
			continue
		}

		inter := maskGeom.Intersection(g)
		if inter == nil || inter.IsEmpty() {
			continue
		}

		clipped, err := fromGeos(inter)
		if err != nil {
			continue
		}

		nf := geojson.NewFeature(clipped)
		nf.Properties = f.Properties
		nf.ID = f.ID
		out.Append(nf)
	}

	return out, nil
}

// FilterIntersecting keeps every feature that touches the mask, geometry
// intact. Use this when the source polygons should survive whole, like
// census subdivisions straddling the treaty boundary.
func FilterIntersecting(fc *geojson.FeatureCollection, mask orb.Geometry) (*geojson.FeatureCollection, error) {
	maskGeom, err := toGeos(mask)
	if err != nil {
		return nil, fmt.Errorf("failed to load filter mask: %w", err)
	}

	maskBound := mask.Bound()
	out := geojson.NewFeatureCollection()

	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !maskBound.Intersects(f.Geometry.Bound()) {
			continue
		}

		g, err := toGeos(f.Geometry)
		if err != nil {
			continue
		}
		if maskGeom.Intersects(g) {
			out.Append(f)
		}
	}

	return out, nil
}

// BufferMeters buffers a geographic geometry by a distance in metres: the
// geometry is projected, buffered there, and unprojected. A zero or negative
// distance returns the geometry unchanged.
func BufferMeters(g orb.Geometry, meters float64, p proj.Projection) (orb.Geometry, error) {
	if meters <= 0 {
		return g, nil
	}

	projected := ProjectGeometry(g, p.Forward)
	gg, err := toGeos(projected)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare geometry for buffering: %w", err)
	}

	buffered := gg.Buffer(meters, 8)
	if buffered == nil || buffered.IsEmpty() {
		return nil, fmt.Errorf("buffering produced an empty geometry")
	}

	back, err := fromGeos(buffered)
	if err != nil {
		return nil, err
	}
	return ProjectGeometry(back, p.Inverse), nil
}

// Union merges two geometries through GEOS.
func Union(a, b orb.Geometry) (orb.Geometry, error) {
	ga, err := toGeos(a)
	if err != nil {
		return nil, err
	}
	gb, err := toGeos(b)
	if err != nil {
		return nil, err
	}

	u := ga.Union(gb)
	if u == nil || u.IsEmpty() {
		return nil, fmt.Errorf("union produced an empty geometry")
	}
	return fromGeos(u)
}

// Centroid returns the area-weighted centroid of a geometry.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	return c
}

func toGeos(g orb.Geometry) (*geos.Geom, error) {
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, err
	}
	return geos.NewGeomFromGeoJSON(string(data))
}

func fromGeos(g *geos.Geom) (orb.Geometry, error) {
	gj, err := geojson.UnmarshalGeometry([]byte(g.ToGeoJSON(0)))
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry back from GEOS: %w", err)
	}
	return gj.Geometry(), nil
}
