// Package fire assembles the wildfire hazard layers: historical burned-area
// perimeters from the CWFIS GeoServer, graduated risk rings around the AOI,
// and reference notes for the products that still need a manual download.
package fire

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/proj"
)

const (
	cwfisBase = "https://cwfis.cfs.nrcan.gc.ca/geoserver"
	nfisBase  = "https://opendata.nfis.org"
)

// Downloader pulls National Burned Area Composite perimeters from the
// CWFIS GeoServer one annual layer at a time.
type Downloader struct {
	cfg    *config.Config
	client *fetch.Client

	// BaseURL is the GeoServer root serving the public workspace.
	BaseURL string
}

func NewDownloader(cfg *config.Config, client *fetch.Client) *Downloader {
	return &Downloader{cfg: cfg, client: client, BaseURL: cwfisBase}
}

// Perimeters fetches nbac_<year> for every year in the range, stamps each
// feature with its year, clips the combined set to the AOI and writes one
// GeoJSON file. Years the server does not publish are skipped.
func (d *Downloader) Perimeters(ctx context.Context, startYear, endYear int) (string, error) {
	if endYear < startYear {
		return "", fmt.Errorf("end year %d precedes start year %d", endYear, startYear)
	}

	mask, err := aoi.Geometry(d.cfg)
	if err != nil {
		return "", err
	}
	bound := aoi.BufferedBound(d.cfg, 1)

	logger := log.With().Str("dataset", "fire_perimeters").Logger()

	combined := geojson.NewFeatureCollection()
	for year := startYear; year <= endYear; year++ {
		features, err := d.fetchYear(ctx, year, bound)
		if err != nil {
			logger.Warn().Int("year", year).Err(err).Msg("skipping year")
			continue
		}
		if len(features) == 0 {
			logger.Info().Int("year", year).Msg("no fires in the study area")
			continue
		}
		for _, ft := range features {
			if ft.Properties == nil {
				ft.Properties = geojson.Properties{}
			}
			ft.Properties["year"] = year
			combined.Append(ft)
		}
		logger.Info().Int("year", year).Int("features", len(features)).Msg("fetched perimeters")
	}

	if len(combined.Features) == 0 {
		return "", fmt.Errorf("no fire perimeters found between %d and %d; the archive at %s may need a manual download", startYear, endYear, nfisBase)
	}

	clipped, err := geo.ClipToGeometry(combined, mask)
	if err != nil {
		return "", fmt.Errorf("failed to clip fire perimeters: %w", err)
	}

	path := filepath.Join(d.cfg.Directories.Datasets,
		fmt.Sprintf("fire_perimeters_%d_%d.geojson", startYear, endYear))
	if err := geo.WriteCollection(path, clipped); err != nil {
		return "", err
	}

	utm, err := proj.ByCode(d.cfg.UTMCode())
	if err != nil {
		return "", err
	}
	var burned float64
	for _, ft := range clipped.Features {
		burned += geo.AreaHectares(ft.Geometry, utm)
	}

	logger.Info().
		Int("features", len(clipped.Features)).
		Float64("burned_ha", math.Round(burned)).
		Str("path", path).
		Msg("wrote fire perimeters")
	return path, nil
}

// fetchYear runs one WFS GetFeature request. GeoServer reports a missing
// annual layer as an XML exception with a 200 status, which surfaces here
// as an unmarshal error.
func (d *Downloader) fetchYear(ctx context.Context, year int, b orb.Bound) ([]*geojson.Feature, error) {
	q := url.Values{}
	q.Set("service", "WFS")
	q.Set("version", "2.0.0")
	q.Set("request", "GetFeature")
	q.Set("typeName", fmt.Sprintf("public:nbac_%d", year))
	q.Set("outputFormat", "application/json")
	q.Set("srsName", "EPSG:4326")
	q.Set("bbox", geo.BBoxString(b))

	body, err := d.client.Get(ctx, d.BaseURL+"/public/wfs?"+q.Encode())
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("no usable response for nbac_%d: %w", year, err)
	}
	return fc.Features, nil
}
