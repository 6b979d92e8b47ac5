// Package aoi builds and loads the Williams Treaty area of interest. The
// boundary drives every clip in the pipeline: when the reserve boundaries
// layer exists the AOI is the buffered union of the seven reserves, otherwise
// it falls back to the configured bounding box covering the Lake Simcoe to
// Peterborough/Kawartha Lakes region.
package aoi

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/proj"
)

const Name = "Williams Treaty Territories"

// ReservesPath is where the reserve boundaries command leaves its output.
func ReservesPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "communities", "williams_treaty_reserves.geojson")
}

// Build writes the AOI boundary layer in WGS84 plus a projected copy for
// area work, and logs the resulting area.
func Build(cfg *config.Config) error {
	utm, err := proj.ByCode(cfg.UTMCode())
	if err != nil {
		return err
	}

	fc, err := fromReserves(cfg, utm)
	if err != nil {
		return err
	}
	if fc == nil {
		log.Warn().Msg("reserve boundaries not available, using configured bounding box")
		fc = fromBBox(cfg)
	}

	if err := geo.WriteCollection(cfg.AOIPath(), fc); err != nil {
		return err
	}
	log.Info().Str("path", cfg.AOIPath()).Msg("wrote AOI boundary")

	projected := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		pf := geojson.NewFeature(geo.ToProjected(f.Geometry, utm))
		pf.Properties = f.Properties
		projected.Append(pf)
	}
	if err := geo.WriteCollection(cfg.AOIUTMPath(), projected); err != nil {
		return err
	}
	log.Info().Str("path", cfg.AOIUTMPath()).Msg("wrote projected AOI boundary")

	var area float64
	for _, f := range fc.Features {
		area += geo.AreaSqKm(f.Geometry, utm)
	}
	log.Info().Float64("area_sqkm", area).Msg("AOI ready")

	return nil
}

// fromReserves returns the buffered union of the reserve boundaries, or nil
// when the layer has not been downloaded yet.
func fromReserves(cfg *config.Config, utm proj.Projection) (*geojson.FeatureCollection, error) {
	path := ReservesPath(cfg)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	reserves, err := geo.ReadCollection(path)
	if err != nil {
		return nil, err
	}
	if len(reserves.Features) == 0 {
		return nil, nil
	}

	var union orb.Geometry
	for _, f := range reserves.Features {
		if f.Geometry == nil {
			continue
		}
		buffered, err := geo.BufferMeters(f.Geometry, cfg.AOI.BufferMeters, utm)
		if err != nil {
			log.Warn().Err(err).Msg("failed to buffer reserve, skipping")
			continue
		}
		if union == nil {
			union = buffered
			continue
		}
		merged, err := geo.Union(union, buffered)
		if err != nil {
			log.Warn().Err(err).Msg("failed to merge reserve into union, skipping")
			continue
		}
		union = merged
	}
	if union == nil {
		return nil, nil
	}

	f := geojson.NewFeature(union)
	f.Properties["name"] = Name
	f.Properties["description"] = "Buffered union of the seven Williams Treaty First Nations reserves"
	f.Properties["source"] = "Reserve boundaries"
	f.Properties["buffer_applied"] = true

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, nil
}

func fromBBox(cfg *config.Config) *geojson.FeatureCollection {
	f := geojson.NewFeature(geo.BoundPolygon(geo.BoundFromSlice(cfg.AOI.BBox)))
	f.Properties["name"] = Name
	f.Properties["description"] = "Approximate area covering Williams Treaty First Nations territories"
	f.Properties["source"] = "Manual bounding box"
	f.Properties["buffer_applied"] = false

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc
}

// Load reads the AOI boundary written by Build.
func Load(cfg *config.Config) (*geojson.FeatureCollection, error) {
	fc, err := geo.ReadCollection(cfg.AOIPath())
	if err != nil {
		return nil, fmt.Errorf("AOI not found at %s, run the aoi command first: %w", cfg.AOIPath(), err)
	}
	return fc, nil
}

// Geometry returns the AOI as a single geometry for exact clipping.
func Geometry(cfg *config.Config) (orb.Geometry, error) {
	fc, err := Load(cfg)
	if err != nil {
		return nil, err
	}

	var union orb.Geometry
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if union == nil {
			union = f.Geometry
			continue
		}
		merged, err := geo.Union(union, f.Geometry)
		if err != nil {
			return nil, err
		}
		union = merged
	}
	if union == nil {
		return nil, fmt.Errorf("AOI at %s has no geometry", cfg.AOIPath())
	}
	return union, nil
}

// Bound returns the AOI bbox, falling back to the configured box when the
// boundary layer has not been built yet.
func Bound(cfg *config.Config) orb.Bound {
	fc, err := geo.ReadCollection(cfg.AOIPath())
	if err != nil || len(fc.Features) == 0 {
		return geo.BoundFromSlice(cfg.AOI.BBox)
	}
	return geo.CollectionBound(fc)
}

// BufferedBound expands the AOI envelope by a margin in kilometres, one
// degree of latitude taken as 111.32 km and longitude scaled at the centre
// latitude. Queries use it so features straddling the boundary survive
// until the exact clip.
func BufferedBound(cfg *config.Config, km float64) orb.Bound {
	b := Bound(cfg)
	lat := (b.Min[1] + b.Max[1]) / 2
	dLat := km / 111.32
	dLon := km / (111.32 * math.Cos(lat*math.Pi/180))
	return orb.Bound{
		Min: orb.Point{b.Min[0] - dLon, b.Min[1] - dLat},
		Max: orb.Point{b.Max[0] + dLon, b.Max[1] + dLat},
	}
}
