// Package communities publishes the seven Williams Treaty First Nations as
// map layers: community locations with population, reserve boundaries and a
// demographics summary.
package communities

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// Nation is one member First Nation. Coordinates and populations are
// approximate, from public sources.
type Nation struct {
	Name       string
	Reserve    string
	Lon, Lat   float64
	Population int
	AreaSqKm   float64
}

// Nations lists the seven Williams Treaty First Nations.
var Nations = []Nation{
	{"Alderville First Nation", "Alderville 35", -78.086, 44.051, 1200, 12.5},
	{"Curve Lake First Nation", "Curve Lake 35", -78.279, 44.547, 2100, 16.8},
	{"Hiawatha First Nation", "Hiawatha 36", -78.272, 44.224, 700, 2.3},
	{"Mississaugas of Scugog Island First Nation", "Scugog Island 34", -78.968, 44.171, 300, 5.2},
	{"Chippewas of Beausoleil First Nation", "Chimnissing 1", -79.833, 44.780, 1800, 28.4},
	{"Chippewas of Georgina Island First Nation", "Georgina Island 33", -79.333, 44.450, 900, 8.9},
	{"Chippewas of Rama First Nation", "Rama 32", -79.315, 44.620, 2000, 9.1},
}

const treatyLabel = "Williams Treaty (1923)"

// CommunitiesPath is where the community point layer lands.
func CommunitiesPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "communities", "williams_treaty_communities.geojson")
}

// DemographicsPath is where the population summary lands.
func DemographicsPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "communities", "demographics_summary.json")
}

// WriteCommunities builds the community point layer from the fixed records.
func WriteCommunities(cfg *config.Config) (string, error) {
	fc := geojson.NewFeatureCollection()
	total := 0
	for _, n := range Nations {
		f := geojson.NewFeature(orb.Point{n.Lon, n.Lat})
		f.Properties["name"] = n.Name
		f.Properties["reserve_name"] = n.Reserve
		f.Properties["population"] = n.Population
		f.Properties["type"] = "First Nation Community"
		f.Properties["treaty"] = treatyLabel
		fc.Append(f)
		total += n.Population
	}

	path := CommunitiesPath(cfg)
	if err := geo.WriteCollection(path, fc); err != nil {
		return "", err
	}

	log.Info().
		Int("communities", len(fc.Features)).
		Int("population", total).
		Str("path", path).
		Msg("wrote community locations")
	return path, nil
}

// Demographics is one row of the population summary.
type Demographics struct {
	Name             string `json:"name"`
	Population       int    `json:"population"`
	PopulationSource string `json:"population_source"`
	CensusYear       string `json:"census_year"`
	Reserve          string `json:"reserve"`
	Treaty           string `json:"treaty"`
}

// WriteDemographics saves the per-nation population summary. Detailed census
// profiles need a manual lookup on the Statistics Canada site; this carries
// the approximate figures the map popups show.
func WriteDemographics(cfg *config.Config) (string, error) {
	rows := make([]Demographics, 0, len(Nations))
	for _, n := range Nations {
		rows = append(rows, Demographics{
			Name:             n.Name,
			Population:       n.Population,
			PopulationSource: "Approximate from public sources",
			CensusYear:       "2021 (approximate)",
			Reserve:          n.Reserve,
			Treaty:           treatyLabel,
		})
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal demographics: %w", err)
	}

	path := DemographicsPath(cfg)
	if err := geo.WriteFile(path, data); err != nil {
		return "", err
	}

	log.Info().Int("rows", len(rows)).Str("path", path).Msg("wrote demographics summary")
	return path, nil
}
