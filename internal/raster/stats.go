package raster

import (
	"math"
	"sort"

	"github.com/williamstreaties/atlas/pkg/geotiff"
)

// Stats summarises the valid pixels of a raster.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	Valid  int
	NoData int
}

// Summary scans a raster once. NaN pixels count as nodata.
func Summary(r *geotiff.Raster) Stats {
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64

	for _, v := range r.Pix {
		if r.IsNoData(v) || math.IsNaN(v) {
			s.NoData++
			continue
		}
		s.Valid++
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}

	if s.Valid == 0 {
		return Stats{NoData: s.NoData}
	}
	s.Mean = sum / float64(s.Valid)
	return s
}

// ClassCounts tallies categorical pixel values, skipping nodata.
func ClassCounts(r *geotiff.Raster) map[int]int {
	counts := make(map[int]int)
	for _, v := range r.Pix {
		if r.IsNoData(v) || math.IsNaN(v) {
			continue
		}
		counts[int(math.Round(v))]++
	}
	return counts
}

// ClassStat is one value's share of a categorical raster.
type ClassStat struct {
	Value   int     `json:"value"`
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ClassSummary reports the distinct values of a categorical raster.
type ClassSummary struct {
	TotalPixels int         `json:"total_pixels"`
	ValidPixels int         `json:"valid_pixels"`
	Classes     []ClassStat `json:"classes"`
}

// SummarizeClasses counts distinct values and names them through the
// supplied legend. Percentages are of valid pixels; nodata cells count
// toward the total only. Classes come back largest first, value breaking
// ties.
func SummarizeClasses(r *geotiff.Raster, name func(int) string) ClassSummary {
	counts := ClassCounts(r)

	valid := 0
	for _, n := range counts {
		valid += n
	}

	summary := ClassSummary{
		TotalPixels: r.Grid.Width * r.Grid.Height,
		ValidPixels: valid,
	}
	for value, count := range counts {
		pct := 0.0
		if valid > 0 {
			pct = 100 * float64(count) / float64(valid)
		}
		summary.Classes = append(summary.Classes, ClassStat{
			Value:   value,
			Name:    name(value),
			Count:   count,
			Percent: pct,
		})
	}
	sort.Slice(summary.Classes, func(i, j int) bool {
		if summary.Classes[i].Count != summary.Classes[j].Count {
			return summary.Classes[i].Count > summary.Classes[j].Count
		}
		return summary.Classes[i].Value < summary.Classes[j].Value
	})
	return summary
}
