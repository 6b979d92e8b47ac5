package geohub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/esri"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geo"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Directories.Datasets = filepath.Join(dir, "datasets")
	cfg.Directories.Metadata = filepath.Join(dir, "metadata")
	return cfg
}

func TestCatalogue(t *testing.T) {
	seen := map[string]bool{}
	for _, l := range Catalogue {
		assert.False(t, seen[l.ID], "duplicate layer id %s", l.ID)
		seen[l.ID] = true

		assert.NotEmpty(t, l.Name)
		assert.NotEmpty(t, l.Category)
		assert.True(t, strings.HasPrefix(l.RestURL, RestBase))
		assert.True(t, strings.HasSuffix(l.OutputPath, ".geojson"))
	}
	assert.Len(t, Catalogue, 14)

	contours, ok := Find("contours")
	require.True(t, ok)
	assert.True(t, contours.Bulk)
}

func TestFind(t *testing.T) {
	l, ok := Find("wetlands")
	require.True(t, ok)
	assert.Equal(t, "Wetlands with Significance", l.Name)

	_, ok = Find("nope")
	assert.False(t, ok)
}

func TestQueryBound(t *testing.T) {
	b := QueryBound()
	assert.InDelta(t, -80.91, b.Min[0], 1e-9)
	assert.InDelta(t, 43.54, b.Min[1], 1e-9)
	assert.InDelta(t, -76.82, b.Max[0], 1e-9)
	assert.InDelta(t, 46.49, b.Max[1], 1e-9)
}

func layerServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "esriGeometryEnvelope", r.URL.Query().Get("geometryType"))

		fc := geojson.NewFeatureCollection()
		f := geojson.NewFeature(orb.Point{-78.5, 44.5})
		f.Properties["OBJECTID"] = 1
		fc.Append(f)
		data, _ := json.Marshal(fc)
		w.Write(data)
	}))
}

func TestDownload(t *testing.T) {
	srv := layerServer(t)
	defer srv.Close()

	cfg := testConfig(t)
	d := NewDownloader(cfg, esri.NewClient(fetch.New(5*time.Second)))

	layer := Layer{
		ID:         "wetlands",
		Name:       "Wetlands",
		Category:   "water",
		RestURL:    srv.URL,
		OutputPath: "environmental/wetlands.geojson",
	}

	n, err := d.Download(context.Background(), layer)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fc, err := geo.ReadCollection(filepath.Join(cfg.Directories.Datasets, "environmental", "wetlands.geojson"))
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)

	metaPath := filepath.Join(cfg.Directories.Metadata, "wetlands_metadata.json")
	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)

	var meta Metadata
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "wetlands", meta.LayerID)
	assert.Equal(t, 1, meta.FeatureCount)
	assert.Equal(t, "environmental/wetlands.geojson", meta.OutputPath)
	assert.InDelta(t, -80.91, meta.BoundingBox[0], 1e-9)
	assert.WithinDuration(t, time.Now(), meta.DownloadDate, time.Minute)
}

func TestDownloadEmptyLayerIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	d := NewDownloader(cfg, esri.NewClient(fetch.New(5*time.Second)))

	_, err := d.Download(context.Background(), Layer{ID: "x", Name: "X", RestURL: srv.URL, OutputPath: "x.geojson"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no features found")
}

func TestDownloadAllContinuesPastFailures(t *testing.T) {
	srv := layerServer(t)
	defer srv.Close()

	cfg := testConfig(t)
	f := fetch.New(5 * time.Second)
	f.MaxRetries = 0 // fail fast on the unreachable layer
	client := esri.NewClient(f)
	client.PageSize = 10
	d := NewDownloader(cfg, client)
	d.Workers = 2

	// Point every catalogue entry at the test server
	old := Catalogue
	defer func() { Catalogue = old }()
	Catalogue = []Layer{
		{ID: "a", Name: "A", RestURL: srv.URL, OutputPath: "a.geojson"},
		{ID: "b", Name: "B", RestURL: "http://127.0.0.1:1/nope", OutputPath: "b.geojson"},
		{ID: "c", Name: "C", RestURL: srv.URL, OutputPath: "c.geojson"},
	}

	results := d.DownloadAll(context.Background())
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "b", results[1].Layer.ID)
	assert.Equal(t, 1, results[2].Features)
}

func TestDownloadAllLeavesBulkLayersOut(t *testing.T) {
	srv := layerServer(t)
	defer srv.Close()

	cfg := testConfig(t)
	client := esri.NewClient(fetch.New(5 * time.Second))
	client.PageSize = 10
	d := NewDownloader(cfg, client)

	old := Catalogue
	defer func() { Catalogue = old }()
	Catalogue = []Layer{
		{ID: "a", Name: "A", RestURL: srv.URL, OutputPath: "a.geojson"},
		{ID: "huge", Name: "Huge", RestURL: srv.URL, OutputPath: "huge.geojson", Bulk: true},
	}

	results := d.DownloadAll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Layer.ID)

	// Named downloads still reach a bulk layer.
	n, err := d.Download(context.Background(), Catalogue[1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
