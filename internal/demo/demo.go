// Package demo fabricates seeded fire and fuel layers so the map can be
// developed offline. Outputs land on the paths the real pipeline writes
// and are replaced the first time the actual downloads run.
package demo

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/fuel"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

var fireYears = []int{2015, 2017, 2019, 2021, 2023}

const (
	fireVertices = 20
	fuelWidth    = 800
	fuelHeight   = 600
)

// FiresPath mirrors the perimeter layer name the live downloader writes,
// from the configured start year through the current one.
func FiresPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Datasets,
		fmt.Sprintf("fire_perimeters_%d_%d.geojson", cfg.Datasets.Fire.StartYear, time.Now().Year()))
}

// FuelPath mirrors the fuel layer written by the live clip.
func FuelPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "fuel", "fuel_types.tif")
}

// Fires writes one irregular seeded fire perimeter per demo year inside
// the study area.
func Fires(cfg *config.Config) (string, error) {
	b := aoi.Bound(cfg)
	rng := rand.New(rand.NewSource(42))

	fc := geojson.NewFeatureCollection()
	for i, year := range fireYears {
		cx := b.Min[0] + rng.Float64()*(b.Max[0]-b.Min[0])
		cy := b.Min[1] + rng.Float64()*(b.Max[1]-b.Min[1])
		radius := 0.005 + rng.Float64()*0.015

		ring := make(orb.Ring, 0, fireVertices+1)
		for p := 0; p < fireVertices; p++ {
			angle := 2 * math.Pi * float64(p) / fireVertices
			r := radius * (1 + rng.Float64()*0.6 - 0.3)
			ring = append(ring, orb.Point{cx + r*math.Cos(angle), cy + r*math.Sin(angle)})
		}
		ring = append(ring, ring[0])
		poly := orb.Polygon{ring}

		f := geojson.NewFeature(poly)
		f.Properties["year"] = year
		f.Properties["YEAR"] = year
		f.Properties["FIRE_ID"] = fmt.Sprintf("DEMO_%d_%03d", year, i)
		// Rough degree-to-hectare conversion at this latitude.
		f.Properties["area"] = planar.Area(poly) * 111320 * 111320 / 10000
		f.Properties["description"] = fmt.Sprintf("Demo fire perimeter from %d", year)
		fc.Append(f)
	}

	path := FiresPath(cfg)
	if err := geo.WriteCollection(path, fc); err != nil {
		return "", err
	}
	log.Info().Int("fires", len(fc.Features)).Str("path", path).Msg("wrote demo fire perimeters")
	return path, nil
}

// Fuel writes a seeded categorical fuel raster over the study area:
// conifer-heavy in the north, mixedwood through the centre, deciduous
// and open fuels in the south. The class stats sidecar is written the
// same way the live clip writes it.
func Fuel(cfg *config.Config) (string, error) {
	b := aoi.Bound(cfg)

	grid := geotiff.Grid{
		OriginX: b.Min[0],
		OriginY: b.Max[1],
		DX:      (b.Max[0] - b.Min[0]) / fuelWidth,
		DY:      (b.Max[1] - b.Min[1]) / fuelHeight,
		Width:   fuelWidth,
		Height:  fuelHeight,
		EPSG:    4326,
	}

	r := geotiff.New(grid, geotiff.Uint8)
	rng := rand.New(rand.NewSource(42))
	pick := func(codes ...float64) float64 { return codes[rng.Intn(len(codes))] }

	for row := 0; row < fuelHeight; row++ {
		north := 1 - float64(row)/fuelHeight
		for col := 0; col < fuelWidth; col++ {
			roll := rng.Float64()
			var code float64
			switch {
			case north > 0.6:
				switch {
				case roll < 0.6:
					code = pick(1, 2, 3, 4)
				case roll < 0.9:
					code = pick(5, 6, 7)
				default:
					code = pick(21, 25)
				}
			case north > 0.3:
				switch {
				case roll < 0.4:
					code = pick(11, 18)
				case roll < 0.7:
					code = pick(21, 25)
				default:
					code = pick(1, 2, 3)
				}
			default:
				switch {
				case roll < 0.5:
					code = pick(11, 18)
				case roll < 0.7:
					code = pick(40, 43)
				default:
					code = pick(31, 32)
				}
			}
			r.Pix[row*fuelWidth+col] = code
		}
	}

	path := FuelPath(cfg)
	if err := geotiff.Write(path, r, geotiff.EncodeOptions{Deflate: true}); err != nil {
		return "", err
	}

	stats := fuel.Summarize(r)
	statsPath := filepath.Join(filepath.Dir(path), "fuel_type_stats.json")
	if err := fuel.WriteStats(statsPath, stats); err != nil {
		return "", err
	}

	log.Info().
		Int("width", fuelWidth).
		Int("height", fuelHeight).
		Int("classes", len(stats.Classes)).
		Str("path", path).
		Msg("wrote demo fuel raster")
	return path, nil
}
