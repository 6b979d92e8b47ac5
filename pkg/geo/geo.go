// Package geo holds the GeoJSON plumbing shared by the pipeline stages:
// feature collection file I/O, bounding boxes, clipping, projected areas and
// property access. Features are orb types throughout; exact geometry
// operations go through GEOS.
package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReadCollection reads a GeoJSON file. A bare Feature is wrapped into a
// collection so callers handle one shape of input.
func ReadCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil {
		return fc, nil
	}

	f, ferr := geojson.UnmarshalFeature(data)
	if ferr != nil {
		return nil, fmt.Errorf("failed to parse %s as GeoJSON: %w", path, err)
	}

	fc = geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, nil
}

// WriteCollection writes a feature collection, creating parent directories
// and renaming a temp file into place so a crash never leaves a truncated
// dataset behind.
func WriteCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}
	return WriteFile(path, data)
}

// WriteFile is the atomic write used for every published dataset.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// CollectionBound returns the bbox of all features. The zero bound is
// returned for an empty collection.
func CollectionBound(fc *geojson.FeatureCollection) orb.Bound {
	var bound orb.Bound
	first := true
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			bound = f.Geometry.Bound()
			first = false
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	return bound
}

// BoundFromSlice builds a bound from [west, south, east, north].
func BoundFromSlice(b [4]float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b[0], b[1]},
		Max: orb.Point{b[2], b[3]},
	}
}

// ExpandBound grows a bound by a margin in degrees on every side.
func ExpandBound(b orb.Bound, margin float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Min[0] - margin, b.Min[1] - margin},
		Max: orb.Point{b.Max[0] + margin, b.Max[1] + margin},
	}
}

// BoundPolygon converts a bound to a closed polygon ring.
func BoundPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}}
}

// BBoxString renders a bound the way ArcGIS and WFS endpoints want it:
// "west,south,east,north".
func BBoxString(b orb.Bound) string {
	return fmt.Sprintf("%g,%g,%g,%g", b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// FirstField returns the first of the candidate property names present on
// the feature, preserving the caller's priority order.
func FirstField(props geojson.Properties, names ...string) (string, bool) {
	for _, name := range names {
		if _, ok := props[name]; ok {
			return name, true
		}
	}
	return "", false
}

// StringProp returns a property as a trimmed string, empty when absent.
func StringProp(props geojson.Properties, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// FloatProp coerces a property to float64. JSON numbers, integer types and
// numeric strings all count.
func FloatProp(props geojson.Properties, key string) (float64, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
