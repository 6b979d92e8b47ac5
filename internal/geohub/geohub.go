// Package geohub downloads the Ontario GeoHub open data layers the map
// shows: wetlands, watersheds, protected areas, trails and terrain. Each
// layer is queried against the treaty-wide bounding box, saved as GeoJSON
// under the datasets directory and described by a metadata sidecar.
package geohub

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/esri"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// TreatyBound covers the full Williams Treaty territory, wider than the AOI
// study envelope so regional layers keep their context on the map.
var TreatyBound = orb.Bound{
	Min: orb.Point{-80.81, 43.64},
	Max: orb.Point{-76.92, 46.39},
}

// QueryBound is the treaty bound with a margin so edge features survive
// client-side clipping.
func QueryBound() orb.Bound {
	return geo.ExpandBound(TreatyBound, 0.1)
}

// Metadata is the sidecar written next to each download, consumed by the
// layers page of the map client.
type Metadata struct {
	LayerID      string     `json:"layer_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Source       string     `json:"source"`
	License      string     `json:"license"`
	DownloadDate time.Time  `json:"download_date"`
	FeatureCount int        `json:"feature_count"`
	BoundingBox  [4]float64 `json:"bounding_box"`
	OutputPath   string     `json:"output_path"`
}

// Result reports one layer download for the summary.
type Result struct {
	Layer    Layer
	Features int
	Duration time.Duration
	Err      error
}

// Downloader pulls catalogue layers through an ArcGIS client.
type Downloader struct {
	cfg     *config.Config
	client  *esri.Client
	Workers int
}

func NewDownloader(cfg *config.Config, client *esri.Client) *Downloader {
	return &Downloader{cfg: cfg, client: client, Workers: 3}
}

// Download fetches one layer and writes the GeoJSON plus its sidecar. A
// layer with nothing inside the treaty area is an error; an empty file on
// the map helps nobody.
func (d *Downloader) Download(ctx context.Context, layer Layer) (int, error) {
	logger := log.With().Str("layer", layer.ID).Logger()
	logger.Info().Str("url", layer.RestURL).Msg("querying layer")

	bound := QueryBound()
	fc, err := d.client.Features(ctx, layer.RestURL, esri.Query{Envelope: &bound})
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", layer.Name, err)
	}
	if len(fc.Features) == 0 {
		return 0, fmt.Errorf("no features found for %s in the treaty area", layer.Name)
	}

	outPath := filepath.Join(d.cfg.Directories.Datasets, filepath.FromSlash(layer.OutputPath))
	if err := geo.WriteCollection(outPath, fc); err != nil {
		return 0, err
	}

	if err := d.writeMetadata(layer, len(fc.Features)); err != nil {
		return 0, err
	}

	logger.Info().Int("features", len(fc.Features)).Str("path", outPath).Msg("layer saved")
	return len(fc.Features), nil
}

func (d *Downloader) writeMetadata(layer Layer, count int) error {
	b := QueryBound()
	meta := Metadata{
		LayerID:      layer.ID,
		Name:         layer.Name,
		Description:  layer.Description,
		Category:     layer.Category,
		Source:       layer.Source,
		License:      layer.License,
		DownloadDate: time.Now().UTC(),
		FeatureCount: count,
		BoundingBox:  [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
		OutputPath:   layer.OutputPath,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", layer.ID, err)
	}

	path := filepath.Join(d.cfg.Directories.Metadata, layer.ID+"_metadata.json")
	return geo.WriteFile(path, data)
}

// DownloadAll runs the catalogue over a small worker pool and returns the
// results in catalogue order. Bulk layers are left out; failures do not
// stop the other layers.
func (d *Downloader) DownloadAll(ctx context.Context) []Result {
	workers := d.Workers
	if workers < 1 {
		workers = 1
	}

	selected := make([]Layer, 0, len(Catalogue))
	for _, l := range Catalogue {
		if l.Bulk {
			log.Info().Str("layer", l.ID).Msg("bulk layer skipped, download it by name")
			continue
		}
		selected = append(selected, l)
	}

	jobs := make(chan int)
	results := make([]Result, len(selected))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				layer := selected[i]
				start := time.Now()
				n, err := d.Download(ctx, layer)
				if err != nil {
					log.Error().Err(err).Str("layer", layer.ID).Msg("layer download failed")
				}
				results[i] = Result{
					Layer:    layer,
					Features: n,
					Duration: time.Since(start),
					Err:      err,
				}
			}
		}()
	}

	for i := range selected {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
