package tables

import (
	"path/filepath"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// InfrastructurePath is the project point layer written by
// ProcessInfrastructure.
func InfrastructurePath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "infrastructure", "infrastructure_projects.geojson")
}

// ProcessInfrastructure converts the Indigenous Community Infrastructure
// Management export into project points. The export is UTF-16 and
// tab-separated; rows outside Ontario or without coordinates are dropped.
func ProcessInfrastructure(cfg *config.Config, input string) (string, error) {
	if input == "" {
		input = filepath.Join(cfg.Directories.Raw, "ICIM_Data_Export.csv")
	}

	table, err := ReadTable(input, UTF16, '\t')
	if err != nil {
		return "", err
	}

	logger := log.With().Str("dataset", "infrastructure").Logger()
	logger.Info().Int("rows", len(table.Rows)).Str("path", input).Msg("loaded infrastructure export")

	fc := geojson.NewFeatureCollection()
	for _, row := range table.Rows {
		if table.Get(row, "Province/Territory") != "Ontario" {
			continue
		}
		lon, okLon := parseCoord(table.Get(row, "Longitude"))
		lat, okLat := parseCoord(table.Get(row, "Latitude"))
		if !okLon || !okLat {
			continue
		}

		f := geojson.NewFeature(orb.Point{lon, lat})
		f.Properties["community"] = table.Get(row, "Community")
		if v := table.Get(row, "Community Number"); v != "" {
			f.Properties["community_number"] = v
		}
		// The export misspells its own category column.
		f.Properties["category"] = table.Get(row, "Infrastucture Category")
		f.Properties["project_name"] = table.Get(row, "Project Name")
		f.Properties["description"] = table.Get(row, "Description")
		f.Properties["status"] = table.Get(row, "Project Status")
		if v, ok := parseMoney(table.Get(row, "Departmental Investment")); ok {
			f.Properties["investment"] = v
		} else if raw := table.Get(row, "Departmental Investment"); raw != "" {
			f.Properties["investment"] = raw
		}
		f.Properties["latitude"] = lat
		f.Properties["longitude"] = lon
		fc.Append(f)
	}
	logger.Info().Int("projects", len(fc.Features)).Msg("kept Ontario projects with coordinates")

	out, err := filterToAOI(cfg, fc, logger)
	if err != nil {
		return "", err
	}

	path := InfrastructurePath(cfg)
	if err := geo.WriteCollection(path, out); err != nil {
		return "", err
	}

	counts := make(map[string]int)
	for _, f := range out.Features {
		counts[geo.StringProp(f.Properties, "category")]++
	}
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		logger.Info().Str("category", c).Int("projects", counts[c]).Msg("projects by category")
	}

	logger.Info().Int("projects", len(out.Features)).Str("path", path).Msg("wrote infrastructure projects")
	return path, nil
}
