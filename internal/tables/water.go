package tables

import (
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// WaterAdvisoriesPath is the full advisory layer; the active subset sits
// next to it as water_advisories_active.geojson.
func WaterAdvisoriesPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "water", "water_advisories.geojson")
}

func activeAdvisoriesPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "water", "water_advisories_active.geojson")
}

// ProcessWater converts the drinking-water advisory export into advisory
// points. An advisory with no lifted date counts as active; lifted ones
// get a duration_days property. Returns the full layer path and the
// active-subset path, "" when every advisory has been lifted.
func ProcessWater(cfg *config.Config, input string) (string, string, error) {
	if input == "" {
		input = filepath.Join(cfg.Directories.Raw, "water_advisory_map_data.csv")
	}

	table, err := ReadTable(input, UTF8, ',')
	if err != nil {
		return "", "", err
	}

	logger := log.With().Str("dataset", "water_advisories").Logger()
	logger.Info().Int("rows", len(table.Rows)).Str("path", input).Msg("loaded advisory export")

	fc := geojson.NewFeatureCollection()
	active := 0
	for _, row := range table.Rows {
		if table.Get(row, "Region") != "ONTARIO" {
			continue
		}
		lon, okLon := parseCoord(table.Get(row, "Longitude"))
		lat, okLat := parseCoord(table.Get(row, "Latitude"))
		if !okLon || !okLat {
			continue
		}

		set, okSet := parseDate(table.Get(row, "Date Advisory Set"))
		longTerm, okLongTerm := parseDate(table.Get(row, "Long term advisory since"))
		lifted, okLifted := parseDate(table.Get(row, "Date Advisory Lifted"))

		f := geojson.NewFeature(orb.Point{lon, lat})
		if id := table.Get(row, "ID"); id != "" {
			if n, err := strconv.Atoi(id); err == nil {
				f.Properties["id"] = n
			} else {
				f.Properties["id"] = id
			}
		}
		f.Properties["first_nation"] = table.Get(row, "First Nation")
		f.Properties["water_system"] = table.Get(row, "Water System Name")
		f.Properties["advisory_type"] = table.Get(row, "Type of advisory")
		f.Properties["date_set"] = dateString(set, okSet)
		f.Properties["long_term_since"] = dateString(longTerm, okLongTerm)
		f.Properties["date_lifted"] = dateString(lifted, okLifted)
		if v, ok := parseCoord(table.Get(row, "Population")); ok {
			f.Properties["population"] = v
		}
		f.Properties["corrective_measure"] = table.Get(row, "Corrective Measure")
		f.Properties["project_phase"] = table.Get(row, "Project Phase")
		f.Properties["is_active"] = !okLifted
		if okSet && okLifted {
			f.Properties["duration_days"] = int(lifted.Sub(set).Hours() / 24)
		}
		f.Properties["latitude"] = lat
		f.Properties["longitude"] = lon
		fc.Append(f)

		if !okLifted {
			active++
		}
	}
	logger.Info().
		Int("advisories", len(fc.Features)).
		Int("active", active).
		Int("lifted", len(fc.Features)-active).
		Msg("kept Ontario advisories with coordinates")

	out, err := filterToAOI(cfg, fc, logger)
	if err != nil {
		return "", "", err
	}

	path := WaterAdvisoriesPath(cfg)
	if err := geo.WriteCollection(path, out); err != nil {
		return "", "", err
	}
	logger.Info().Int("advisories", len(out.Features)).Str("path", path).Msg("wrote water advisories")

	activeFC := geojson.NewFeatureCollection()
	for _, f := range out.Features {
		if on, ok := f.Properties["is_active"].(bool); ok && on {
			activeFC.Append(f)
		}
	}
	if len(activeFC.Features) == 0 {
		return path, "", nil
	}

	activePath := activeAdvisoriesPath(cfg)
	if err := geo.WriteCollection(activePath, activeFC); err != nil {
		return "", "", err
	}
	logger.Info().Int("advisories", len(activeFC.Features)).Str("path", activePath).Msg("wrote active advisories")
	return path, activePath, nil
}
