package landcover

import (
	"encoding/json"
	"fmt"

	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

// Legend maps land-cover class codes to display names, following the
// NALCMS classification the NRCan product uses.
var Legend = map[int]string{
	1:  "Temperate or sub-polar needleleaf forest",
	2:  "Sub-polar taiga needleleaf forest",
	3:  "Tropical or sub-tropical broadleaf evergreen forest",
	4:  "Tropical or sub-tropical broadleaf deciduous forest",
	5:  "Temperate or sub-polar broadleaf deciduous forest",
	6:  "Mixed forest",
	7:  "Tropical or sub-tropical shrubland",
	8:  "Temperate or sub-polar shrubland",
	9:  "Tropical or sub-tropical grassland",
	10: "Temperate or sub-polar grassland",
	11: "Sub-polar or polar shrubland-lichen-moss",
	12: "Sub-polar or polar grassland-lichen-moss",
	13: "Sub-polar or polar barren-lichen-moss",
	14: "Wetland",
	15: "Cropland",
	16: "Barren lands",
	17: "Urban",
	18: "Water",
	19: "Snow and Ice",
}

// ClassName resolves a class code to its legend entry.
func ClassName(code int) string {
	if name, ok := Legend[code]; ok {
		return name
	}
	return fmt.Sprintf("Class %d", code)
}

// Summarize tallies land-cover classes across the raster.
func Summarize(r *geotiff.Raster) raster.ClassSummary {
	return raster.SummarizeClasses(r, ClassName)
}

// WriteStats saves the class summary as indented JSON.
func WriteStats(path string, stats raster.ClassSummary) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal land-cover stats: %w", err)
	}
	return geo.WriteFile(path, data)
}
