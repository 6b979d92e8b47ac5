package aoi

import (
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Directories.Data = dir
	cfg.Directories.Raw = filepath.Join(dir, "raw")
	cfg.Directories.Processed = filepath.Join(dir, "processed")
	cfg.Directories.Boundaries = filepath.Join(dir, "boundaries")
	cfg.Directories.Datasets = filepath.Join(dir, "datasets")
	cfg.Directories.Metadata = filepath.Join(dir, "metadata")
	return cfg
}

func TestBuildFallsBackToBBox(t *testing.T) {
	cfg := testConfig(t)

	require.NoError(t, Build(cfg))

	fc, err := geo.ReadCollection(cfg.AOIPath())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, Name, f.Properties["name"])
	assert.Equal(t, "Manual bounding box", f.Properties["source"])
	assert.Equal(t, false, f.Properties["buffer_applied"])

	b := f.Geometry.Bound()
	assert.InDelta(t, -79.8, b.Min[0], 1e-9)
	assert.InDelta(t, 43.8, b.Min[1], 1e-9)
	assert.InDelta(t, -78.3, b.Max[0], 1e-9)
	assert.InDelta(t, 44.8, b.Max[1], 1e-9)

	// Projected copy holds UTM coordinates, not degrees
	utm, err := geo.ReadCollection(cfg.AOIUTMPath())
	require.NoError(t, err)
	require.Len(t, utm.Features, 1)
	ub := utm.Features[0].Geometry.Bound()
	assert.Greater(t, ub.Min[0], 100000.0)
	assert.Greater(t, ub.Min[1], 4000000.0)
}

func TestBuildFromReserves(t *testing.T) {
	cfg := testConfig(t)
	cfg.AOI.BufferMeters = 1000

	reserves := geojson.NewFeatureCollection()
	for _, pt := range []orb.Point{{-78.086, 44.051}, {-78.279, 44.547}} {
		f := geojson.NewFeature(pt)
		f.Properties["RESERVE_NAME"] = "test"
		reserves.Append(f)
	}
	require.NoError(t, geo.WriteCollection(ReservesPath(cfg), reserves))

	require.NoError(t, Build(cfg))

	fc, err := geo.ReadCollection(cfg.AOIPath())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, "Reserve boundaries", f.Properties["source"])
	assert.Equal(t, true, f.Properties["buffer_applied"])

	// Both buffered reserves fall inside the AOI bound
	b := f.Geometry.Bound()
	assert.True(t, b.Contains(orb.Point{-78.086, 44.051}))
	assert.True(t, b.Contains(orb.Point{-78.279, 44.547}))
}

func TestLoadMissing(t *testing.T) {
	cfg := testConfig(t)

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the aoi command first")
}

func TestBoundFallsBack(t *testing.T) {
	cfg := testConfig(t)

	b := Bound(cfg)
	assert.Equal(t, geo.BoundFromSlice(cfg.AOI.BBox), b)

	require.NoError(t, Build(cfg))
	assert.Equal(t, geo.BoundFromSlice(cfg.AOI.BBox), Bound(cfg))
}

func TestBufferedBound(t *testing.T) {
	cfg := testConfig(t)

	b := Bound(cfg)
	buffered := BufferedBound(cfg, 10)

	// 10 km is about 0.09 degrees of latitude, more in longitude at 44°N.
	assert.InDelta(t, b.Min[1]-0.0898, buffered.Min[1], 1e-3)
	assert.InDelta(t, b.Max[1]+0.0898, buffered.Max[1], 1e-3)
	assert.Less(t, buffered.Min[0], b.Min[0]-0.09)
	assert.Greater(t, buffered.Max[0], b.Max[0]+0.09)

	assert.Equal(t, b, BufferedBound(cfg, 0))
}

func TestGeometry(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, Build(cfg))

	g, err := Geometry(cfg)
	require.NoError(t, err)
	assert.InDelta(t, -79.05, geo.Centroid(g)[0], 1e-6)
	assert.InDelta(t, 44.3, geo.Centroid(g)[1], 1e-6)
}
