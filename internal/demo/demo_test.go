package demo

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/fuel"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/geotiff"
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
	require.NoError(t, aoi.Build(cfg))
	return cfg
}

func TestFires(t *testing.T) {
	cfg := testConfig(t)

	path, err := Fires(cfg)
	require.NoError(t, err)
	assert.Equal(t, FiresPath(cfg), path)
	assert.Contains(t, filepath.Base(path), fmt.Sprintf("fire_perimeters_2010_%d", time.Now().Year()))

	fc, err := geo.ReadCollection(path)
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)

	envelope := geo.ExpandBound(aoi.Bound(cfg), 0.05)
	for i, f := range fc.Features {
		b := f.Geometry.Bound()
		assert.True(t, envelope.Contains(b.Center()), "fire %d outside the study area", i)

		area, ok := geo.FloatProp(f.Properties, "area")
		require.True(t, ok)
		assert.Greater(t, area, 0.0)
	}

	assert.Equal(t, "DEMO_2015_000", geo.StringProp(fc.Features[0].Properties, "FIRE_ID"))
	assert.Equal(t, "DEMO_2023_004", geo.StringProp(fc.Features[4].Properties, "FIRE_ID"))

	year, ok := geo.FloatProp(fc.Features[2].Properties, "YEAR")
	require.True(t, ok)
	assert.Equal(t, 2019.0, year)
}

func TestFiresDeterministic(t *testing.T) {
	cfg := testConfig(t)

	path, err := Fires(cfg)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Fires(cfg)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFuel(t *testing.T) {
	cfg := testConfig(t)

	path, err := Fuel(cfg)
	require.NoError(t, err)
	assert.Equal(t, FuelPath(cfg), path)

	r, err := geotiff.Read(path)
	require.NoError(t, err)
	assert.Equal(t, 800, r.Grid.Width)
	assert.Equal(t, 600, r.Grid.Height)
	assert.Equal(t, 4326, r.Grid.EPSG)

	// Every cell carries a known FBP code
	for _, v := range r.Pix {
		_, ok := fuel.Legend[int(v)]
		require.True(t, ok, "unknown fuel code %v", v)
	}

	stats, err := os.ReadFile(filepath.Join(filepath.Dir(path), "fuel_type_stats.json"))
	require.NoError(t, err)
	assert.Contains(t, string(stats), "Coniferous")
}

func TestFuelDeterministic(t *testing.T) {
	cfg := testConfig(t)

	path, err := Fuel(cfg)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Fuel(cfg)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
