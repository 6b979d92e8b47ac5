package layers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/geo+json", ContentType("fire_perimeters_2010_2024.geojson"))
	assert.Equal(t, "image/tiff", ContentType("ndvi_aoi.TIF"))
	assert.Equal(t, "application/json", ContentType("fuel_type_stats.json"))
	assert.Equal(t, "text/yaml", ContentType("layers.yaml"))
	assert.Equal(t, "application/octet-stream", ContentType("README"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Vector, KindOf("williams_treaty_aoi.geojson"))
	assert.Equal(t, Raster, KindOf("landcover_2020_aoi.tif"))
	assert.Equal(t, Metadata, KindOf("landcover_2020_stats.json"))
	assert.Equal(t, Other, KindOf("notes.txt"))
}

func TestList(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("ndvi_aoi.tif", "raster bytes")
	write("fire/perimeters.geojson", `{"type":"FeatureCollection","features":[]}`)
	write(".hidden.json", "skip me")
	write(".cache/stale.tif", "skip me too")

	entries, err := List(root)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "fire/perimeters.geojson", entries[0].Path)
	assert.Equal(t, "perimeters", entries[0].Name)
	assert.Equal(t, Vector, entries[0].Type)

	assert.Equal(t, "ndvi_aoi.tif", entries[1].Path)
	assert.Equal(t, int64(len("raster bytes")), entries[1].Size)
	assert.Equal(t, Raster, entries[1].Type)
	assert.False(t, entries[1].Modified.IsZero())
}

func TestListMissingRoot(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
