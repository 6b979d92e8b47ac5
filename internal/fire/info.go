package fire

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// Most CWFIS and NFIS fire products sit behind manual downloads. The info
// sidecars record the connection details and instructions next to where
// those downloads should land.

type wmsInfo struct {
	Service string   `json:"service"`
	URL     string   `json:"url"`
	Version string   `json:"version"`
	Layers  []string `json:"layers"`
}

type ontarioInfo struct {
	Source           string            `json:"source"`
	DataPortal       string            `json:"data_portal"`
	Datasets         map[string]string `json:"datasets"`
	TemporalCoverage string            `json:"temporal_coverage"`
	Access           string            `json:"access"`
}

type nbacInfo struct {
	Name          string   `json:"name"`
	Source        string   `json:"source"`
	URL           string   `json:"url"`
	Resolution    string   `json:"resolution"`
	TemporalRange yearSpan `json:"temporal_range"`
	AOIBBox       bboxJSON `json:"aoi_bbox"`
	Instructions  []string `json:"download_instructions"`
}

type yearSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type bboxJSON struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
}

// WriteInfo writes the reference sidecars for the fire datasets that need
// a manual download, scoped to the last historicalYears years.
func WriteInfo(cfg *config.Config, historicalYears int) error {
	dir := filepath.Join(cfg.Directories.Raw, "fire")
	endYear := time.Now().Year()
	b := aoi.Bound(cfg)

	docs := map[string]any{
		"cwfis_wms_info.json": wmsInfo{
			Service: "WMS",
			URL:     cwfisBase + "/public/wms",
			Version: "1.1.1",
			Layers:  []string{"public:fwi_current", "public:fire_danger_rating"},
		},
		"ontario_fire_data_info.json": ontarioInfo{
			Source:     "Ontario Ministry of Natural Resources and Forestry",
			DataPortal: "https://geohub.lio.gov.on.ca/",
			Datasets: map[string]string{
				"fire_regions":    "FIRE_REGION",
				"fire_points":     "Fire occurrences point dataset",
				"fire_perimeters": "Fire perimeters polygon dataset",
			},
			TemporalCoverage: fmt.Sprintf("Last %d years", historicalYears),
			Access:           "Manual download required from Ontario GeoHub",
		},
		"nbac_info.json": nbacInfo{
			Name:          "National Burned Area Composite",
			Source:        "Natural Resources Canada - Canadian Forest Service",
			URL:           nfisBase,
			Resolution:    "30m",
			TemporalRange: yearSpan{Start: endYear - historicalYears, End: endYear},
			AOIBBox:       bboxJSON{MinX: b.Min[0], MinY: b.Min[1], MaxX: b.Max[0], MaxY: b.Max[1]},
			Instructions: []string{
				"1. Visit https://opendata.nfis.org/",
				"2. Navigate to 'Burned Areas'",
				"3. Select 'National Burned Area Composite'",
				"4. Download annual files for your date range",
				"5. Clip to the AOI bounding box",
			},
		},
	}

	for name, doc := range docs {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := geo.WriteFile(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}

	log.Info().Str("dir", dir).Msg("wrote fire data source notes")
	return nil
}
