package fuel

import (
	"encoding/json"
	"fmt"

	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

// Legend maps FBP fuel-type codes to display names.
var Legend = map[int]string{
	0:  "Non-fuel/Water",
	1:  "Coniferous (C-1)",
	2:  "Coniferous (C-2)",
	3:  "Coniferous (C-3)",
	4:  "Coniferous (C-4)",
	5:  "Coniferous (C-5)",
	6:  "Coniferous (C-6)",
	7:  "Coniferous (C-7)",
	11: "Deciduous (D-1)",
	18: "Deciduous (D-2)",
	21: "Mixedwood (M-1)",
	25: "Mixedwood (M-2)",
	31: "Slash (S-1)",
	32: "Slash (S-2)",
	40: "Grass (O-1a)",
	43: "Grass (O-1b)",
	99: "Non-fuel/Water",
}

// ClassName resolves a fuel code to its legend entry.
func ClassName(code int) string {
	if name, ok := Legend[code]; ok {
		return name
	}
	return fmt.Sprintf("Type %d", code)
}

// Summarize tallies fuel classes across the raster.
func Summarize(r *geotiff.Raster) raster.ClassSummary {
	return raster.SummarizeClasses(r, ClassName)
}

// WriteStats saves the class summary as indented JSON.
func WriteStats(path string, stats raster.ClassSummary) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fuel stats: %w", err)
	}
	return geo.WriteFile(path, data)
}
