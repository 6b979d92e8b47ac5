package ndvi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/fetch"
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
	return cfg
}

func TestLeastCloudy(t *testing.T) {
	_, ok := leastCloudy(nil)
	assert.False(t, ok)

	items := []Item{
		{ID: "a", Properties: ItemProperties{CloudCover: 14.2}},
		{ID: "b", Properties: ItemProperties{CloudCover: 3.7}},
		{ID: "c", Properties: ItemProperties{CloudCover: 9.9}},
	}
	best, ok := leastCloudy(items)
	require.True(t, ok)
	assert.Equal(t, "b", best.ID)
}

func TestCompute(t *testing.T) {
	grid := geotiff.Grid{OriginX: 600_000, OriginY: 4_930_000, DX: 10, DY: 10, Width: 2, Height: 2, EPSG: 32617}

	red := geotiff.New(grid, geotiff.Uint16)
	red.SetNoData(65535)
	copy(red.Pix, []float64{2000, 0, 65535, 3000})

	nir := geotiff.New(grid, geotiff.Uint16)
	nir.SetNoData(65535)
	copy(nir.Pix, []float64{6000, 0, 4000, 1000})

	out, err := compute(red, nir)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.Pix[0], 1e-12)
	assert.Equal(t, 0.0, out.Pix[1]) // zero sum stays zero, not NaN
	assert.True(t, out.IsNoData(out.Pix[2]))
	assert.InDelta(t, -0.5, out.Pix[3], 1e-12)
}

func TestComputeRejectsMismatchedGrids(t *testing.T) {
	a := geotiff.New(geotiff.Grid{OriginX: 0, OriginY: 10, DX: 1, DY: 1, Width: 2, Height: 2, EPSG: 32617}, geotiff.Uint16)
	b := geotiff.New(geotiff.Grid{OriginX: 0, OriginY: 10, DX: 1, DY: 1, Width: 3, Height: 2, EPSG: 32617}, geotiff.Uint16)
	_, err := compute(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")
}

func encodeBand(t *testing.T, grid geotiff.Grid, value float64) []byte {
	t.Helper()
	r := geotiff.New(grid, geotiff.Uint16)
	r.SetNoData(0)
	for i := range r.Pix {
		r.Pix[i] = value
	}
	var buf bytes.Buffer
	require.NoError(t, geotiff.Encode(&buf, r, geotiff.EncodeOptions{}))
	return buf.Bytes()
}

func TestProcess(t *testing.T) {
	cfg := testConfig(t)

	utmBound, err := raster.BoundInCRS(aoi.Bound(cfg), 32617)
	require.NoError(t, err)
	grid := geotiff.Grid{
		OriginX: utmBound.Min[0] - 2000,
		OriginY: utmBound.Max[1] + 2000,
		DX:      (utmBound.Max[0] - utmBound.Min[0] + 4000) / 30,
		DY:      (utmBound.Max[1] - utmBound.Min[1] + 4000) / 30,
		Width:   30,
		Height:  30,
		EPSG:    32617,
	}
	redBytes := encodeBand(t, grid, 2000)
	nirBytes := encodeBand(t, grid, 6000)

	var tokenCalls atomic.Int32
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/stac/search":
			assert.Equal(t, http.MethodPost, r.Method)
			var req map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []any{"sentinel-2-l2a"}, req["collections"])
			assert.Equal(t, "2023-06-01/2023-09-30", req["datetime"])
			assert.Len(t, req["bbox"], 4)

			fmt.Fprintf(w, `{"features":[
				{"id":"scene-cloudy","properties":{"datetime":"2023-07-02T16:09:01Z","eo:cloud_cover":18.4},
				 "assets":{"B04":{"href":"%[1]s/bands/cloudy_B04.tif"},"B08":{"href":"%[1]s/bands/cloudy_B08.tif"}}},
				{"id":"scene-clear","properties":{"datetime":"2023-08-11T16:09:01Z","eo:cloud_cover":2.5},
				 "assets":{"B04":{"href":"%[1]s/bands/clear_B04.tif"},"B08":{"href":"%[1]s/bands/clear_B08.tif"}}}
			]}`, srvURL)

		case r.URL.Path == "/sas/token/sentinel-2-l2a":
			tokenCalls.Add(1)
			w.Write([]byte(`{"token":"se=testtoken","msft:expiry":"2099-01-01T00:00:00Z"}`))

		case strings.HasPrefix(r.URL.Path, "/bands/clear_"):
			assert.Contains(t, r.URL.RawQuery, "se=testtoken")
			if strings.Contains(r.URL.Path, "B04") {
				w.Write(redBytes)
			} else {
				w.Write(nirBytes)
			}

		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	p := NewProcessor(cfg, fetch.New(5*time.Second))
	p.STACBase = srv.URL + "/stac"
	p.SASBase = srv.URL + "/sas"

	path, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Directories.Datasets, "ndvi_aoi.tif"), path)
	assert.Equal(t, int32(1), tokenCalls.Load())

	out, err := geotiff.Read(path)
	require.NoError(t, err)
	assert.Equal(t, 4326, out.Grid.EPSG)

	sum := raster.Summary(out)
	assert.Greater(t, sum.Valid, 0)
	assert.InDelta(t, 0.5, sum.Min, 1e-6)
	assert.InDelta(t, 0.5, sum.Max, 1e-6)

	// Bands cached for reuse.
	_, err = os.Stat(filepath.Join(cfg.Directories.Raw, "ndvi", "scene-clear_B04.tif"))
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.Directories.Datasets, "ndvi_aoi.json"))
	require.NoError(t, err)
	var sc sidecar
	require.NoError(t, json.Unmarshal(data, &sc))
	assert.Equal(t, "scene-clear", sc.ItemID)
	assert.Equal(t, "2023-08-11T16:09:01Z", sc.Datetime)
	assert.InDelta(t, 2.5, sc.CloudCover, 1e-9)
}

func TestProcessNoScenes(t *testing.T) {
	cfg := testConfig(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	p := NewProcessor(cfg, fetch.New(time.Second))
	p.STACBase = srv.URL
	p.SASBase = srv.URL

	_, err := p.Process(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Sentinel-2 scenes")
}

func TestSignAppendsToken(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Write([]byte(`{"token":"se=abc123"}`))
	}))
	defer srv.Close()

	p := NewProcessor(testConfig(t), fetch.New(time.Second))
	p.SASBase = srv.URL

	signed, err := p.sign(context.Background(), "https://storage.example/B04.tif")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/B04.tif?se=abc123", signed)

	signed, err = p.sign(context.Background(), "https://storage.example/B08.tif?v=2")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/B08.tif?v=2&se=abc123", signed)

	// Token fetched once and reused.
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestExample(t *testing.T) {
	cfg := testConfig(t)

	path, err := Example(cfg)
	require.NoError(t, err)

	out, err := geotiff.Read(path)
	require.NoError(t, err)
	assert.Equal(t, 4326, out.Grid.EPSG)
	assert.Equal(t, exampleWidth, out.Grid.Width)
	assert.Equal(t, 666, out.Grid.Height)

	sum := raster.Summary(out)
	assert.GreaterOrEqual(t, sum.Min, 0.1999)
	assert.LessOrEqual(t, sum.Max, 0.8001)

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = Example(cfg)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
