package ndvi

import (
	"math/rand"

	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

const exampleWidth = 1000

// Example writes a synthetic NDVI surface for working on the map without
// Planetary Computer access. Values sit in the 0.2 to 0.8 band typical of
// vegetation, seeded so reruns produce identical bytes.
func Example(cfg *config.Config) (string, error) {
	b := aoi.Bound(cfg)

	width := exampleWidth
	height := int((b.Max[1] - b.Min[1]) / (b.Max[0] - b.Min[0]) * float64(width))
	if height < 1 {
		height = 1
	}

	grid := geotiff.Grid{
		OriginX: b.Min[0],
		OriginY: b.Max[1],
		DX:      (b.Max[0] - b.Min[0]) / float64(width),
		DY:      (b.Max[1] - b.Min[1]) / float64(height),
		Width:   width,
		Height:  height,
		EPSG:    4326,
	}

	r := geotiff.New(grid, geotiff.Float32)
	r.SetNoData(noData)
	rng := rand.New(rand.NewSource(42))
	for i := range r.Pix {
		r.Pix[i] = rng.Float64()*0.6 + 0.2
	}

	path := OutputPath(cfg)
	if err := geotiff.Write(path, r, geotiff.EncodeOptions{Deflate: true}); err != nil {
		return "", err
	}

	log.Info().Int("width", width).Int("height", height).Str("path", path).
		Msg("wrote example NDVI surface")
	return path, nil
}
