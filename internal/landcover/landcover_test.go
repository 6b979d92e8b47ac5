package landcover

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
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

func TestClassName(t *testing.T) {
	assert.Equal(t, "Water", ClassName(18))
	assert.Equal(t, "Mixed forest", ClassName(6))
	assert.Equal(t, "Class 42", ClassName(42))
}

func TestDownloadRejectsUnknownYear(t *testing.T) {
	d := NewDownloader(testConfig(t), fetch.New(time.Second))
	_, err := d.Download(context.Background(), 2005)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no land-cover product for 2005")
}

func TestDownloadCachesArchive(t *testing.T) {
	cfg := testConfig(t)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/CanadaLandcover2020.zip", r.URL.Path)
		requests.Add(1)
		w.Write([]byte("archive bytes"))
	}))
	defer srv.Close()

	d := NewDownloader(cfg, fetch.New(5*time.Second))
	d.BaseURL = srv.URL

	path, err := d.Download(context.Background(), 2020)
	require.NoError(t, err)
	assert.Equal(t, ArchivePath(cfg, 2020), path)
	assert.Equal(t, int32(1), requests.Load())

	// Already on disk, no second fetch.
	_, err = d.Download(context.Background(), 2020)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

type archiveMember struct {
	name string
	data []byte
}

func writeArchive(t *testing.T, path string, members []archiveMember) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		f, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = f.Write(m.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestExtract(t *testing.T) {
	cfg := testConfig(t)

	grid := geotiff.Grid{OriginX: 1_300_000, OriginY: -300_000, DX: 30, DY: 30, Width: 4, Height: 4, EPSG: 3978}
	var tif bytes.Buffer
	require.NoError(t, geotiff.Encode(&tif, geotiff.NewFilled(grid, geotiff.Uint8, 0), geotiff.EncodeOptions{}))

	writeArchive(t, ArchivePath(cfg, 2020), []archiveMember{
		{"CAN_LC_2020/README.txt", []byte("land cover 2020")},
		{"CAN_LC_2020/landcover-2020-classification.tif", tif.Bytes()},
	})

	dest, err := Extract(cfg, 2020, "")
	require.NoError(t, err)
	assert.Equal(t, RasterPath(cfg, 2020), dest)

	r, err := geotiff.Read(dest)
	require.NoError(t, err)
	assert.Equal(t, 3978, r.Grid.EPSG)
	assert.Equal(t, 4, r.Grid.Width)
}

func TestExtractNoRaster(t *testing.T) {
	cfg := testConfig(t)
	writeArchive(t, ArchivePath(cfg, 2015), []archiveMember{
		{"README.txt", []byte("nothing here")},
	})

	_, err := Extract(cfg, 2015, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GeoTIFF inside")
}

// writeNationalRaster stages a uniform class 18 raster covering the AOI in
// the Canada Atlas Lambert grid the published product uses.
func writeNationalRaster(t *testing.T, cfg *config.Config, year int) {
	t.Helper()

	lccBound, err := raster.BoundInCRS(aoi.Bound(cfg), 3978)
	require.NoError(t, err)

	grid := geotiff.Grid{
		OriginX: lccBound.Min[0] - 5000,
		OriginY: lccBound.Max[1] + 5000,
		DX:      (lccBound.Max[0] - lccBound.Min[0] + 10_000) / 60,
		DY:      (lccBound.Max[1] - lccBound.Min[1] + 10_000) / 60,
		Width:   60,
		Height:  60,
		EPSG:    3978,
	}
	src := geotiff.New(grid, geotiff.Uint8)
	src.SetNoData(0)
	for i := range src.Pix {
		src.Pix[i] = 18
	}

	require.NoError(t, geotiff.Write(RasterPath(cfg, year), src, geotiff.EncodeOptions{}))
}

func TestClip(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, aoi.Build(cfg))
	writeNationalRaster(t, cfg, 2020)

	output, err := Clip(cfg, 2020, "", true)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(output, filepath.Join("datasets", "landcover_2020_aoi.tif")))

	out, err := geotiff.Read(output)
	require.NoError(t, err)
	assert.Equal(t, 4326, out.Grid.EPSG)

	sum := raster.Summary(out)
	assert.Greater(t, sum.Valid, 0)
	assert.Equal(t, 18.0, sum.Min)
	assert.Equal(t, 18.0, sum.Max)

	data, err := os.ReadFile(filepath.Join(cfg.Directories.Datasets, "landcover_2020_stats.json"))
	require.NoError(t, err)

	var stats raster.ClassSummary
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, sum.Valid, stats.ValidPixels)
	require.Len(t, stats.Classes, 1)
	assert.Equal(t, 18, stats.Classes[0].Value)
	assert.Equal(t, "Water", stats.Classes[0].Name)
	assert.InDelta(t, 100, stats.Classes[0].Percent, 1e-9)
}

func TestClipKeepsNativeCRS(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, aoi.Build(cfg))
	writeNationalRaster(t, cfg, 2015)

	output, err := Clip(cfg, 2015, "", false)
	require.NoError(t, err)

	out, err := geotiff.Read(output)
	require.NoError(t, err)
	assert.Equal(t, 3978, out.Grid.EPSG)
}
