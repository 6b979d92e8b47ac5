package fire

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/proj"
	"github.com/williamstreaties/atlas/pkg/shp"
)

// yearFields are the attribute names checked, in order, when looking for a
// fire year on an unfamiliar archive.
var yearFields = []string{
	"YEAR", "Year", "year", "FIRE_YEAR", "fire_year",
	"FireYear", "YR", "yr", "DATE", "date",
}

var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// DefaultFilterBound covers the Williams Treaty study area, the Lake
// Simcoe and Kawartha Lakes country.
var DefaultFilterBound = orb.Bound{
	Min: orb.Point{-80, 44},
	Max: orb.Point{-78, 45},
}

// FilterOptions control the standardisation of an archive already on disk.
type FilterOptions struct {
	StartYear int
	EndYear   int
	// UseAOI swaps the default bound for the AOI envelope.
	UseAOI bool
	// Output overrides the processed/fire default path.
	Output string
}

// FilterPerimeters reduces a historical fire archive to the study area and
// year range and standardises its attributes for the map client. Archives
// arrive as GeoJSON or zipped shapefiles with wildly different schemas, so
// the year is hunted across the usual field names and identifier and area
// attributes are renamed where recognisable.
func FilterPerimeters(cfg *config.Config, input string, opts FilterOptions) (string, error) {
	fc, err := readVector(input)
	if err != nil {
		return "", err
	}

	logger := log.With().Str("input", filepath.Base(input)).Logger()
	logger.Info().Int("features", len(fc.Features)).Msg("loaded fire archive")

	bound := DefaultFilterBound
	if opts.UseAOI {
		bound = aoi.Bound(cfg)
	}

	field := yearField(fc)
	if field == "" {
		logger.Warn().Msg("no year field found, skipping the time filter")
	} else {
		logger.Info().Str("field", field).Msg("reading fire years")
	}

	out := geojson.NewFeatureCollection()
	for _, ft := range fc.Features {
		if ft.Geometry == nil || !bound.Intersects(ft.Geometry.Bound()) {
			continue
		}
		if field != "" {
			year, ok := ExtractYear(ft.Properties[field])
			if !ok || year < opts.StartYear || year > opts.EndYear {
				continue
			}
			ft.Properties["YEAR"] = year
		}
		standardize(ft)
		out.Append(ft)
	}

	if len(out.Features) == 0 {
		return "", fmt.Errorf("no fires between %d and %d intersect the study area", opts.StartYear, opts.EndYear)
	}

	// Archives without a usable area attribute get one computed in the
	// Statistics Canada Lambert CRS.
	lambert := proj.StatCanLambert()
	for _, ft := range out.Features {
		if _, ok := ft.Properties["area"]; ok {
			continue
		}
		switch ft.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			ft.Properties["area"] = geo.AreaHectares(ft.Geometry, lambert)
		}
	}

	path := opts.Output
	if path == "" {
		path = filepath.Join(cfg.Directories.Processed, "fire",
			fmt.Sprintf("fire_perimeters_%d_%d.geojson", opts.StartYear, opts.EndYear))
	}
	if err := geo.WriteCollection(path, out); err != nil {
		return "", err
	}

	logStats(logger, out, len(fc.Features), path)
	return path, nil
}

// ListFields returns the sorted set of attribute names in an archive, for
// inspecting unfamiliar data before a filter run.
func ListFields(input string) ([]string, error) {
	fc, err := readVector(input)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, ft := range fc.Features {
		for key := range ft.Properties {
			seen[key] = true
		}
	}

	fields := make([]string, 0, len(seen))
	for key := range seen {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return fields, nil
}

// ExtractYear pulls a four-digit year out of an attribute value. Numbers
// are taken as-is when plausible, strings are searched for a 19xx or 20xx
// match, anything else fails.
func ExtractYear(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return plausibleYear(val)
	case int64:
		return plausibleYear(int(val))
	case float64:
		return plausibleYear(int(val))
	case string:
		if m := yearPattern.FindString(val); m != "" {
			if year, err := strconv.Atoi(m); err == nil {
				return year, true
			}
		}
	}
	return 0, false
}

func plausibleYear(year int) (int, bool) {
	if year >= 1900 && year <= 2100 {
		return year, true
	}
	return 0, false
}

// yearField returns the first candidate attribute present anywhere in the
// collection.
func yearField(fc *geojson.FeatureCollection) string {
	for _, name := range yearFields {
		for _, ft := range fc.Features {
			if _, ok := ft.Properties[name]; ok {
				return name
			}
		}
	}
	return ""
}

// standardize renames recognisable identifier and area attributes so the
// map client reads one schema no matter which archive the data came from.
func standardize(ft *geojson.Feature) {
	renames := map[string]string{}
	for key := range ft.Properties {
		lower := strings.ToLower(key)
		switch {
		case strings.Contains(lower, "fire") && strings.Contains(lower, "id"):
			renames[key] = "FIRE_ID"
		case (strings.Contains(lower, "area") || strings.Contains(lower, "size")) &&
			(strings.Contains(lower, "ha") || strings.Contains(lower, "hectare")):
			renames[key] = "area"
		}
	}
	for old, std := range renames {
		if old == std {
			continue
		}
		ft.Properties[std] = ft.Properties[old]
		delete(ft.Properties, old)
	}
}

func readVector(path string) (*geojson.FeatureCollection, error) {
	if shp.IsArchive(path) {
		return shp.ReadZip(path)
	}
	return geo.ReadCollection(path)
}

func logStats(logger zerolog.Logger, fc *geojson.FeatureCollection, input int, path string) {
	var total, largest float64
	minYear, maxYear := 0, 0
	for _, ft := range fc.Features {
		if v, ok := geo.FloatProp(ft.Properties, "area"); ok {
			total += v
			if v > largest {
				largest = v
			}
		}
		if year, ok := ExtractYear(ft.Properties["YEAR"]); ok {
			if minYear == 0 || year < minYear {
				minYear = year
			}
			if year > maxYear {
				maxYear = year
			}
		}
	}

	ev := logger.Info().
		Int("input", input).
		Int("kept", len(fc.Features)).
		Str("path", path)
	if total > 0 {
		ev = ev.Float64("burned_ha", math.Round(total)).Float64("largest_ha", math.Round(largest))
	}
	if minYear > 0 {
		ev = ev.Int("first_year", minYear).Int("last_year", maxYear)
	}
	ev.Msg("wrote filtered fire perimeters")
}
