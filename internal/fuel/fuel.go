// Package fuel downloads the national FBP fuel-type raster over WMS and
// clips it to the study area for the map's wildland fuel layer.
package fuel

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

const (
	wmsBase = "https://cwfis.cfs.nrcan.gc.ca/geoserver/public/wms"

	// targetResolution is the requested pixel size in metres.
	targetResolution = 100
	// maxDimension caps GetMap sizes the server would reject.
	maxDimension = 2000
)

// Downloader requests the fueltype layer from the CWFIS WMS.
type Downloader struct {
	cfg    *config.Config
	client *fetch.Client

	// BaseURL is the WMS endpoint serving the public workspace.
	BaseURL string
}

func NewDownloader(cfg *config.Config, client *fetch.Client) *Downloader {
	return &Downloader{cfg: cfg, client: client, BaseURL: wmsBase}
}

// Download requests the fuel-type layer as a GeoTIFF over the AOI envelope
// in the projected CRS and writes it under raw/fuel. The WMS reports
// failures as XML with a 200 status, so the body is checked for TIFF magic
// before anything lands on disk.
func (d *Downloader) Download(ctx context.Context) (string, error) {
	utmCode := d.cfg.UTMCode()
	bound, err := raster.BoundInCRS(aoi.Bound(d.cfg), utmCode)
	if err != nil {
		return "", err
	}

	width, height := imageSize(bound, targetResolution, maxDimension)

	q := url.Values{}
	q.Set("service", "WMS")
	q.Set("version", "1.1.1")
	q.Set("request", "GetMap")
	q.Set("layers", "public:fueltype")
	q.Set("bbox", geo.BBoxString(bound))
	q.Set("width", strconv.Itoa(width))
	q.Set("height", strconv.Itoa(height))
	q.Set("srs", fmt.Sprintf("EPSG:%d", utmCode))
	q.Set("format", "image/geotiff")

	log.Info().Int("width", width).Int("height", height).Msg("requesting fuel type raster")

	body, err := d.client.Get(ctx, d.BaseURL+"?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("failed to download fuel types: %w", err)
	}
	if !geotiff.IsTIFF(body) {
		return "", fmt.Errorf("fuel type response is not a GeoTIFF: %s", snippet(body))
	}

	path := filepath.Join(d.cfg.Directories.Raw, "fuel", "fueltype.tif")
	if err := geo.WriteFile(path, body); err != nil {
		return "", err
	}

	log.Info().Str("path", path).Int("bytes", len(body)).Msg("saved fuel type raster")
	return path, nil
}

// Clip cuts a fuel raster down to the AOI and, for projected inputs, warps
// it to the geographic CRS with nearest-neighbour sampling so the class
// codes survive. The stats sidecar is written next to the output.
func Clip(cfg *config.Config, input, output string) (string, error) {
	if output == "" {
		output = filepath.Join(cfg.Directories.Processed, "fuel", "fuel_types.tif")
	}

	src, err := geotiff.Read(input)
	if err != nil {
		return "", err
	}

	mask, err := aoi.Geometry(cfg)
	if err != nil {
		return "", err
	}

	clipped, err := raster.Clip(src, mask)
	if err != nil {
		return "", fmt.Errorf("failed to clip fuel raster: %w", err)
	}

	clipped, err = raster.ToGeographic(clipped, raster.Nearest)
	if err != nil {
		return "", fmt.Errorf("failed to reproject fuel raster: %w", err)
	}

	if err := geotiff.Write(output, clipped, geotiff.EncodeOptions{Deflate: true}); err != nil {
		return "", err
	}

	stats := Summarize(clipped)
	statsPath := filepath.Join(filepath.Dir(output), "fuel_type_stats.json")
	if err := WriteStats(statsPath, stats); err != nil {
		return "", err
	}

	log.Info().
		Int("width", clipped.Grid.Width).
		Int("height", clipped.Grid.Height).
		Int("classes", len(stats.Classes)).
		Str("path", output).
		Msg("wrote clipped fuel raster")
	return output, nil
}

// imageSize converts a metre bound to pixel dimensions at the target
// resolution, scaled down to the dimension cap when needed.
func imageSize(b orb.Bound, res float64, maxDim int) (int, int) {
	width := int((b.Max[0] - b.Min[0]) / res)
	height := int((b.Max[1] - b.Min[1]) / res)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width > maxDim || height > maxDim {
		scale := float64(maxDim) / float64(max(width, height))
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)
	}
	return width, height
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
