// Package ndvi builds the vegetation index layer from Sentinel-2 imagery
// hosted on the Microsoft Planetary Computer. The STAC catalog is searched
// for the least-cloudy scene in the configured window, the red and NIR
// bands are pulled with signed URLs, and NDVI = (NIR - Red) / (NIR + Red)
// is written for the web map.
package ndvi

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

const (
	stacBase   = "https://planetarycomputer.microsoft.com/api/stac/v1"
	sasBase    = "https://planetarycomputer.microsoft.com/api/sas/v1"
	collection = "sentinel-2-l2a"

	bandRed = "B04"
	bandNIR = "B08"

	noData = -9999
)

// Processor searches and processes Sentinel-2 scenes.
type Processor struct {
	cfg    *config.Config
	client *fetch.Client

	// STACBase and SASBase point at the Planetary Computer catalog and
	// token APIs.
	STACBase string
	SASBase  string

	token string
}

func NewProcessor(cfg *config.Config, client *fetch.Client) *Processor {
	return &Processor{cfg: cfg, client: client, STACBase: stacBase, SASBase: sasBase}
}

// OutputPath is where the web map reads the NDVI layer from.
func OutputPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Datasets, "ndvi_aoi.tif")
}

// Item is the slice of a STAC item the pipeline needs.
type Item struct {
	ID         string           `json:"id"`
	Properties ItemProperties   `json:"properties"`
	Assets     map[string]Asset `json:"assets"`
}

type ItemProperties struct {
	Datetime   string  `json:"datetime"`
	CloudCover float64 `json:"eo:cloud_cover"`
}

type Asset struct {
	Href string `json:"href"`
}

type searchRequest struct {
	Collections []string       `json:"collections"`
	BBox        [4]float64     `json:"bbox"`
	Datetime    string         `json:"datetime"`
	Query       map[string]any `json:"query"`
	Limit       int            `json:"limit"`
}

// Search lists scenes over the AOI within the configured date range and
// cloud-cover ceiling.
func (p *Processor) Search(ctx context.Context) ([]Item, error) {
	b := aoi.Bound(p.cfg)
	ndviCfg := p.cfg.Datasets.NDVI

	req := searchRequest{
		Collections: []string{collection},
		BBox:        [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
		Datetime:    ndviCfg.DateRange.Start + "/" + ndviCfg.DateRange.End,
		Query:       map[string]any{"eo:cloud_cover": map[string]any{"lt": ndviCfg.MaxCloudCover}},
		Limit:       100,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal STAC search: %w", err)
	}

	body, err := p.client.Post(ctx, p.STACBase+"/search", "application/json", payload)
	if err != nil {
		return nil, fmt.Errorf("STAC search failed: %w", err)
	}

	var resp struct {
		Features []Item `json:"features"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode STAC response: %w", err)
	}

	log.Info().
		Int("scenes", len(resp.Features)).
		Str("range", req.Datetime).
		Float64("max_cloud", ndviCfg.MaxCloudCover).
		Msg("searched Sentinel-2 catalog")
	return resp.Features, nil
}

// Process computes NDVI from the least-cloudy scene and writes the raster
// with a JSON sidecar describing the scene it came from.
func (p *Processor) Process(ctx context.Context) (string, error) {
	items, err := p.Search(ctx)
	if err != nil {
		return "", err
	}
	item, ok := leastCloudy(items)
	if !ok {
		return "", fmt.Errorf("no Sentinel-2 scenes match; widen the date range or raise max_cloud_cover")
	}

	log.Info().
		Str("scene", item.ID).
		Str("datetime", item.Properties.Datetime).
		Float64("cloud_cover", item.Properties.CloudCover).
		Msg("processing scene")

	red, err := p.fetchBand(ctx, item, bandRed)
	if err != nil {
		return "", err
	}
	nir, err := p.fetchBand(ctx, item, bandNIR)
	if err != nil {
		return "", err
	}

	ndvi, err := compute(red, nir)
	if err != nil {
		return "", err
	}
	out, err := raster.ToGeographic(ndvi, raster.Bilinear)
	if err != nil {
		return "", fmt.Errorf("failed to reproject NDVI: %w", err)
	}

	path := OutputPath(p.cfg)
	if err := geotiff.Write(path, out, geotiff.EncodeOptions{Deflate: true}); err != nil {
		return "", err
	}
	if err := writeSidecar(path, item); err != nil {
		return "", err
	}

	sum := raster.Summary(out)
	log.Info().
		Float64("min", sum.Min).
		Float64("max", sum.Max).
		Float64("mean", sum.Mean).
		Str("path", path).
		Msg("wrote NDVI raster")
	return path, nil
}

// fetchBand downloads one band with a signed URL, caches it under raw/ndvi
// and windows it to the AOI envelope in the scene's grid.
func (p *Processor) fetchBand(ctx context.Context, item Item, band string) (*geotiff.Raster, error) {
	asset, ok := item.Assets[band]
	if !ok {
		return nil, fmt.Errorf("scene %s has no %s asset", item.ID, band)
	}
	href, err := p.sign(ctx, asset.Href)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(p.cfg.Directories.Raw, "ndvi", item.ID+"_"+band+".tif")
	if _, err := p.client.Download(ctx, href, path); err != nil {
		return nil, fmt.Errorf("failed to download band %s: %w", band, err)
	}

	r, err := geotiff.Read(path)
	if err != nil {
		return nil, err
	}
	envelope, err := raster.BoundInCRS(aoi.Bound(p.cfg), r.Grid.EPSG)
	if err != nil {
		return nil, err
	}
	windowed, err := raster.Window(r, envelope)
	if err != nil {
		return nil, fmt.Errorf("scene %s does not cover the area: %w", item.ID, err)
	}
	return windowed, nil
}

// sign appends a SAS token to an asset URL, fetching the collection token
// once per run.
func (p *Processor) sign(ctx context.Context, href string) (string, error) {
	if p.token == "" {
		body, err := p.client.Get(ctx, p.SASBase+"/token/"+collection)
		if err != nil {
			return "", fmt.Errorf("failed to get SAS token: %w", err)
		}
		var resp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
			return "", fmt.Errorf("no token in SAS response")
		}
		p.token = resp.Token
	}

	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return href + sep + p.token, nil
}

// leastCloudy picks the scene with the lowest reported cloud cover.
func leastCloudy(items []Item) (Item, bool) {
	if len(items) == 0 {
		return Item{}, false
	}
	best := items[0]
	for _, it := range items[1:] {
		if it.Properties.CloudCover < best.Properties.CloudCover {
			best = it
		}
	}
	return best, true
}

// compute builds the NDVI surface from aligned red and NIR bands. Pixels
// where either band is nodata come out as nodata; a zero sum gives 0.
func compute(red, nir *geotiff.Raster) (*geotiff.Raster, error) {
	if red.Grid.Width != nir.Grid.Width || red.Grid.Height != nir.Grid.Height {
		return nil, fmt.Errorf("band grids do not match (%dx%d vs %dx%d)",
			red.Grid.Width, red.Grid.Height, nir.Grid.Width, nir.Grid.Height)
	}

	out := geotiff.New(red.Grid, geotiff.Float32)
	out.SetNoData(noData)
	for i := range out.Pix {
		r, n := red.Pix[i], nir.Pix[i]
		if red.IsNoData(r) || nir.IsNoData(n) {
			out.Pix[i] = noData
			continue
		}
		sum := n + r
		if sum == 0 {
			out.Pix[i] = 0
			continue
		}
		out.Pix[i] = (n - r) / sum
	}
	return out, nil
}

type sidecar struct {
	ItemID     string  `json:"item_id"`
	Datetime   string  `json:"datetime"`
	CloudCover float64 `json:"cloud_cover"`
}

func writeSidecar(rasterPath string, item Item) error {
	data, err := json.MarshalIndent(sidecar{
		ItemID:     item.ID,
		Datetime:   item.Properties.Datetime,
		CloudCover: item.Properties.CloudCover,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal NDVI sidecar: %w", err)
	}
	path := strings.TrimSuffix(rasterPath, filepath.Ext(rasterPath)) + ".json"
	return geo.WriteFile(path, data)
}
