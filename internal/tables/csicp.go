package tables

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/communities"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// CSICPPath is the funding point layer written by ProcessCSICP.
func CSICPPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "csicp", "csicp_funding.geojson")
}

// ProcessCSICP geolocates the Cultural and Social Infrastructure Capital
// Program awards. The export carries no coordinates, so each Ontario award
// is matched by group name against the treaty community points, then
// against the census First Nations subdivisions; polygon matches collapse
// to their centroid.
func ProcessCSICP(cfg *config.Config, input string) (string, error) {
	if input == "" {
		input = filepath.Join(cfg.Directories.Raw, "CSICP_Funding.csv")
	}

	table, err := ReadTable(input, UTF8, ',')
	if err != nil {
		return "", err
	}

	logger := log.With().Str("dataset", "csicp").Logger()
	logger.Info().Int("rows", len(table.Rows)).Str("path", input).Msg("loaded funding export")

	comms, err := geo.ReadCollection(communities.CommunitiesPath(cfg))
	if err != nil {
		return "", fmt.Errorf("community locations are required for matching: %w", err)
	}
	nations, err := geo.ReadCollection(cwbFirstNationsPath(cfg))
	if err != nil {
		logger.Warn().Err(err).Msg("well-being layer unavailable; matching against treaty communities only")
		nations = geojson.NewFeatureCollection()
	}

	out := geojson.NewFeatureCollection()
	totals := make(map[string]float64)
	for _, row := range table.Rows {
		if table.Get(row, "Province") != "Ontario" {
			continue
		}
		group := table.Get(row, "Indigenous Group Name")

		name, geom, ok := matchGroup(group, comms, nations)
		if !ok {
			logger.Warn().Str("group", group).Msg("no location match")
			continue
		}

		f := geojson.NewFeature(geo.Centroid(geom))
		f.Properties["group_name"] = group
		f.Properties["project_name"] = table.Get(row, "Project Name")
		f.Properties["project_type"] = table.Get(row, "Project Type")
		if v, ok := parseMoney(table.Get(row, "Total Funding")); ok {
			f.Properties["funding"] = v
			totals[group] += v
		}
		f.Properties["matched_community"] = name
		out.Append(f)
	}

	if len(out.Features) == 0 {
		return "", fmt.Errorf("no funded project matched a community location")
	}

	path := CSICPPath(cfg)
	if err := geo.WriteCollection(path, out); err != nil {
		return "", err
	}

	groups := make([]string, 0, len(totals))
	for g := range totals {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if totals[groups[i]] != totals[groups[j]] {
			return totals[groups[i]] > totals[groups[j]]
		}
		return groups[i] < groups[j]
	})
	var total float64
	for _, g := range groups {
		logger.Info().Str("group", g).Float64("funding", totals[g]).Msg("funding by group")
		total += totals[g]
	}

	logger.Info().
		Int("projects", len(out.Features)).
		Float64("total_funding", total).
		Str("path", path).
		Msg("wrote funding layer")
	return path, nil
}

// matchGroup finds a location for an awarded group: the treaty communities
// first, then the census First Nations with their naming variants.
func matchGroup(group string, comms, nations *geojson.FeatureCollection) (string, orb.Geometry, bool) {
	lower := strings.ToLower(strings.TrimSpace(group))
	if lower == "" {
		return "", nil, false
	}

	for _, f := range comms.Features {
		name := geo.StringProp(f.Properties, "name")
		n := strings.ToLower(name)
		if n != "" && (strings.Contains(lower, n) || strings.Contains(n, lower)) {
			return name, f.Geometry, true
		}
	}

	groupClean := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(group, " First Nation", "")))
	for _, f := range nations.Features {
		name := geo.StringProp(f.Properties, "name")
		if name == "" {
			continue
		}
		// Moose Deer Point appears as Moose Point in the census layer.
		if strings.Contains(lower, "moose") && strings.Contains(strings.ToLower(name), "moose") {
			return name, f.Geometry, true
		}
		clean := cleanCensusName(name)
		if clean != "" && (strings.Contains(groupClean, clean) || strings.Contains(clean, groupClean)) {
			return name, f.Geometry, true
		}
	}
	return "", nil, false
}

// cleanCensusName strips the suffixes census subdivision names carry so
// "Curve Lake First Nation 35" matches "Curve Lake".
func cleanCensusName(s string) string {
	r := strings.NewReplacer(" First Nation", "", " Indian Reserve", "", " No.", "")
	out := strings.TrimSpace(r.Replace(s))
	for len(out) > 0 {
		last := out[len(out)-1]
		if (last >= '0' && last <= '9') || last == ' ' {
			out = out[:len(out)-1]
			continue
		}
		break
	}
	return strings.ToLower(out)
}
