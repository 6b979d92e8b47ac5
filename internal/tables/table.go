// Package tables turns the manually downloaded open-data tables into map
// layers: infrastructure investments, drinking-water advisories, community
// well-being scores and cultural infrastructure funding. Each processor
// reads a CSV from the raw directory, keeps the Ontario rows, filters them
// against the study area and writes GeoJSON under data/processed.
package tables

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// Encoding selects the byte decoding applied before CSV parsing. The
// federal exports are inconsistent about this: ICIM ships UTF-16 with a
// BOM, the well-being index latin-1, the rest plain UTF-8.
type Encoding int

const (
	UTF8 Encoding = iota
	UTF16
	Latin1
)

func (e Encoding) decoder() *encoding.Decoder {
	switch e {
	case UTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case Latin1:
		return charmap.ISO8859_1.NewDecoder()
	default:
		return unicode.UTF8BOM.NewDecoder()
	}
}

// Table is a parsed delimited file addressed by header name.
type Table struct {
	columns map[string]int
	Rows    [][]string
}

// ReadTable parses a delimited text file. Header names are trimmed, so a
// padded "Community " addresses the same column as "Community". Rows with
// a stray field count are kept rather than rejected.
func ReadTable(path string, enc Encoding, comma rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(transform.NewReader(f, enc.decoder()))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}

	t := &Table{columns: make(map[string]int, len(records[0]))}
	for i, name := range records[0] {
		t.columns[strings.TrimSpace(name)] = i
	}
	t.Rows = records[1:]
	return t, nil
}

// HasColumn reports whether the header carries the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Get returns the trimmed cell under the named column, or "" when the
// column is missing or the row is short.
func (t *Table) Get(row []string, name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseMoney strips currency formatting before parsing.
func parseMoney(s string) (float64, bool) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if clean == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// parseDate tries the formats seen across the federal exports.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateString(t time.Time, ok bool) string {
	if !ok {
		return ""
	}
	return t.Format("2006-01-02")
}

// filterToAOI keeps the features touching the study area, their geometry
// intact. When none do, the full Ontario set goes through instead so a
// badly geocoded export still produces a layer.
func filterToAOI(cfg *config.Config, fc *geojson.FeatureCollection, logger zerolog.Logger) (*geojson.FeatureCollection, error) {
	mask, err := aoi.Geometry(cfg)
	if err != nil {
		return nil, err
	}

	filtered, err := geo.FilterIntersecting(fc, mask)
	if err != nil {
		return nil, err
	}
	if len(filtered.Features) == 0 {
		logger.Warn().Msg("nothing inside the study area; keeping every Ontario row")
		return fc, nil
	}

	logger.Info().
		Int("kept", len(filtered.Features)).
		Int("dropped", len(fc.Features)-len(filtered.Features)).
		Msg("filtered to the study area")
	return filtered, nil
}
