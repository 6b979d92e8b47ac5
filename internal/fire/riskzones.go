package fire

import (
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/proj"
)

// riskLevels pair a label with a ring distance in metres. Narrower rings
// sit closer to the communities and rank higher.
var riskLevels = []struct {
	Level  string
	Meters float64
}{
	{"High", 1000},
	{"Medium", 3000},
	{"Low", 5000},
}

// RiskZones writes graduated buffer rings around the AOI as a stand-in
// hazard layer. A real assessment would weigh fuel types, slope and
// climate; the rings give the map something to shade until then. Buffers
// are computed in the projected CRS so the distances hold in metres.
func RiskZones(cfg *config.Config) (string, error) {
	g, err := aoi.Geometry(cfg)
	if err != nil {
		return "", err
	}
	utm, err := proj.ByCode(cfg.UTMCode())
	if err != nil {
		return "", err
	}

	fc := geojson.NewFeatureCollection()
	for _, rl := range riskLevels {
		buffered, err := geo.BufferMeters(g, rl.Meters, utm)
		if err != nil {
			return "", fmt.Errorf("failed to buffer the %s risk zone: %w", rl.Level, err)
		}
		ft := geojson.NewFeature(buffered)
		ft.Properties["risk_level"] = rl.Level
		ft.Properties["buffer_m"] = rl.Meters
		fc.Append(ft)
	}

	path := filepath.Join(cfg.Directories.Processed, "fire", "fire_risk_zones.geojson")
	if err := geo.WriteCollection(path, fc); err != nil {
		return "", err
	}

	log.Info().Int("zones", len(fc.Features)).Str("path", path).Msg("wrote fire risk zones")
	return path, nil
}
