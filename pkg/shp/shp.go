// Package shp reads zipped shapefile archives into GeoJSON feature
// collections so the rest of the pipeline only deals with one vector
// format. Statistics Canada and the federal fire programs both ship
// their boundaries as zipped .shp/.dbf pairs.
package shp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/everystreet/go-shapefile"
	"github.com/paulmach/orb/geojson"
)

// ReadZip scans a zip archive holding a shapefile and returns its records
// with the attribute table carried as feature properties. Coordinates are
// rounded to six decimal places, roughly 0.1 m.
func ReadZip(path string) (*geojson.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	scanner, err := shapefile.NewZipScanner(f, stat.Size(), filepath.Base(path), shapefile.PointPrecision(6))
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile archive %s: %w", path, err)
	}

	if err := scanner.Scan(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	fc := geojson.NewFeatureCollection()
	for {
		record := scanner.Record()
		if record == nil {
			break
		}

		data, err := record.GeoJSONFeature().MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode record %d of %s: %w", len(fc.Features), path, err)
		}
		ft, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d of %s: %w", len(fc.Features), path, err)
		}
		if ft.Properties == nil {
			ft.Properties = geojson.Properties{}
		}
		fc.Append(ft)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return fc, nil
}

// IsArchive reports whether the path looks like a zipped shapefile.
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
