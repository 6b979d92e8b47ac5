// Package dem builds the elevation layer behind the terrain and fire-risk
// views. Three sources feed the same output file: a deterministic synthetic
// surface for offline development, the OpenTopography global DEM API, and
// the 2 m LEAP tile grid published for southern Ontario.
package dem

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

const (
	syntheticSize = 500
	noData        = -9999
)

// OutputPath is where the web map reads the elevation layer from.
func OutputPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Datasets, "dem_aoi.tif")
}

// Synthetic writes a placeholder elevation surface covering the AOI, for
// working on the map without network access. The surface ramps from 250 m
// in the north to 400 m in the south with a sine ripple on top.
func Synthetic(cfg *config.Config) (string, error) {
	utmCode := cfg.UTMCode()
	b, err := raster.BoundInCRS(aoi.Bound(cfg), utmCode)
	if err != nil {
		return "", err
	}

	grid := geotiff.Grid{
		OriginX: b.Min[0],
		OriginY: b.Max[1],
		DX:      (b.Max[0] - b.Min[0]) / syntheticSize,
		DY:      (b.Max[1] - b.Min[1]) / syntheticSize,
		Width:   syntheticSize,
		Height:  syntheticSize,
		EPSG:    utmCode,
	}

	r := geotiff.New(grid, geotiff.Float32)
	r.SetNoData(noData)
	for row := 0; row < grid.Height; row++ {
		yNorm := float64(row) / float64(grid.Height-1)
		for col := 0; col < grid.Width; col++ {
			xNorm := float64(col) / float64(grid.Width-1)
			r.Set(col, row, 250+yNorm*150+math.Sin(xNorm*10)*math.Sin(yNorm*10)*20)
		}
	}

	out, err := raster.ToGeographic(r, raster.Bilinear)
	if err != nil {
		return "", fmt.Errorf("failed to reproject synthetic surface: %w", err)
	}

	path := OutputPath(cfg)
	if err := geotiff.Write(path, out, geotiff.EncodeOptions{Deflate: true}); err != nil {
		return "", err
	}

	sum := raster.Summary(out)
	log.Info().
		Float64("min_m", sum.Min).
		Float64("max_m", sum.Max).
		Str("path", path).
		Msg("wrote synthetic elevation surface")
	return path, nil
}
