package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundFromSlice(t *testing.T) {
	b := BoundFromSlice([4]float64{-80.0, 44.0, -78.0, 45.0})

	assert.Equal(t, -80.0, b.Min[0])
	assert.Equal(t, 44.0, b.Min[1])
	assert.Equal(t, -78.0, b.Max[0])
	assert.Equal(t, 45.0, b.Max[1])
}

func TestExpandBound(t *testing.T) {
	b := BoundFromSlice([4]float64{-80.0, 44.0, -78.0, 45.0})
	e := ExpandBound(b, 0.1)

	assert.InDelta(t, -80.1, e.Min[0], 1e-9)
	assert.InDelta(t, 43.9, e.Min[1], 1e-9)
	assert.InDelta(t, -77.9, e.Max[0], 1e-9)
	assert.InDelta(t, 45.1, e.Max[1], 1e-9)
}

func TestBoundPolygon(t *testing.T) {
	b := BoundFromSlice([4]float64{-80.0, 44.0, -78.0, 45.0})
	poly := BoundPolygon(b)

	require.Len(t, poly, 1)
	ring := poly[0]

	// Ring must be closed
	assert.Equal(t, ring[0], ring[len(ring)-1])
	assert.Len(t, ring, 5)
}

func TestBBoxString(t *testing.T) {
	b := BoundFromSlice([4]float64{-80.5, 44.0, -78.25, 45.0})
	assert.Equal(t, "-80.5,44,-78.25,45", BBoxString(b))
}

func TestCollectionBound(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{-79.0, 44.5}))
	fc.Append(geojson.NewFeature(orb.Point{-78.5, 44.9}))
	fc.Append(geojson.NewFeature(orb.LineString{{-79.5, 44.2}, {-79.2, 44.3}}))

	b := CollectionBound(fc)
	assert.Equal(t, -79.5, b.Min[0])
	assert.Equal(t, 44.2, b.Min[1])
	assert.Equal(t, -78.5, b.Max[0])
	assert.Equal(t, 44.9, b.Max[1])

	empty := geojson.NewFeatureCollection()
	assert.Equal(t, orb.Bound{}, CollectionBound(empty))
}

func TestReadWriteCollection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "layer.geojson")

	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{-78.086, 44.051})
	f.Properties["name"] = "Alderville First Nation"
	fc.Append(f)

	require.NoError(t, WriteCollection(path, fc))

	got, err := ReadCollection(path)
	require.NoError(t, err)
	require.Len(t, got.Features, 1)
	assert.Equal(t, "Alderville First Nation", got.Features[0].Properties["name"])

	pt, ok := got.Features[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, -78.086, pt[0], 1e-9)
	assert.InDelta(t, 44.051, pt[1], 1e-9)
}

func TestReadCollectionBareFeature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feature.geojson")

	data := []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[-79.0,44.5]},"properties":{"id":7}}`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fc, err := ReadCollection(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
}

func TestReadCollectionRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.geojson")
	require.NoError(t, os.WriteFile(path, []byte("not geojson"), 0o644))

	_, err := ReadCollection(path)
	assert.Error(t, err)
}

func TestWriteFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")

	require.NoError(t, WriteFile(path, []byte(`{"ok":true}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data.json", entries[0].Name())
}

func TestFirstField(t *testing.T) {
	props := geojson.Properties{"FIRE_YEAR": 2019, "NAME": "x"}

	name, ok := FirstField(props, "YEAR", "Year", "FIRE_YEAR")
	assert.True(t, ok)
	assert.Equal(t, "FIRE_YEAR", name)

	_, ok = FirstField(props, "REGION", "Region")
	assert.False(t, ok)
}

func TestStringProp(t *testing.T) {
	props := geojson.Properties{
		"name":   "  Curve Lake  ",
		"number": 35.0,
		"empty":  nil,
	}

	assert.Equal(t, "Curve Lake", StringProp(props, "name"))
	assert.Equal(t, "35", StringProp(props, "number"))
	assert.Equal(t, "", StringProp(props, "empty"))
	assert.Equal(t, "", StringProp(props, "missing"))
}

func TestFloatProp(t *testing.T) {
	props := geojson.Properties{
		"f":    12.5,
		"i":    42,
		"s":    " 7.25 ",
		"bad":  "n/a",
		"none": nil,
	}

	v, ok := FloatProp(props, "f")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	v, ok = FloatProp(props, "i")
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)

	v, ok = FloatProp(props, "s")
	assert.True(t, ok)
	assert.Equal(t, 7.25, v)

	_, ok = FloatProp(props, "bad")
	assert.False(t, ok)

	_, ok = FloatProp(props, "none")
	assert.False(t, ok)

	_, ok = FloatProp(props, "missing")
	assert.False(t, ok)
}
