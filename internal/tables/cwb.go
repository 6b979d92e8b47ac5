package tables

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/proj"
	"github.com/williamstreaties/atlas/pkg/shp"
)

// Statistics Canada 2021 cartographic boundary file, census subdivisions.
const censusBoundaryURL = "https://www12.statcan.gc.ca/census-recensement/2021/geo/sip-pis/boundary-limites/files-fichiers/lcsd000b21a_e.zip"

// CWBPath is the joined well-being polygon layer; the First Nations
// subset sits next to it as community_wellbeing_first_nations.geojson.
func CWBPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "cwb", "community_wellbeing.geojson")
}

func cwbFirstNationsPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Processed, "cwb", "community_wellbeing_first_nations.geojson")
}

func censusBoundaryPath(cfg *config.Config) string {
	return filepath.Join(cfg.Directories.Raw, "census", "lcsd000b21a_e.zip")
}

// CensusDownloader fetches the census subdivision boundaries the
// well-being join needs.
type CensusDownloader struct {
	cfg    *config.Config
	client *fetch.Client

	// BaseURL is the full archive URL, swappable in tests.
	BaseURL string
}

func NewCensusDownloader(cfg *config.Config, client *fetch.Client) *CensusDownloader {
	return &CensusDownloader{cfg: cfg, client: client, BaseURL: censusBoundaryURL}
}

// Download fetches the boundary archive into raw/census, skipping the
// transfer when a previous run already has it.
func (d *CensusDownloader) Download(ctx context.Context) (string, error) {
	dest := censusBoundaryPath(d.cfg)
	if _, err := os.Stat(dest); err == nil {
		log.Info().Str("path", dest).Msg("census boundaries already downloaded")
		return dest, nil
	}

	written, err := d.client.Download(ctx, d.BaseURL, dest)
	if err != nil {
		return "", fmt.Errorf("failed to download census boundaries: %w", err)
	}
	log.Info().Int64("bytes", written).Str("path", dest).Msg("downloaded census boundaries")
	return dest, nil
}

// cwbScores are the index columns carried onto each subdivision.
var cwbScores = map[string]string{
	"Income 2021":                "income_score",
	"Education 2021":             "education_score",
	"Housing 2021":               "housing_score",
	"Labour Force Activity 2021": "labour_score",
	"CWB 2021":                   "cwb_score",
}

// ProcessCWB joins the Community Well-Being index to census subdivision
// polygons and keeps the subdivisions touching the study area. Both inputs
// default to the raw directory: the latin-1 CWB_2021.csv and the boundary
// archive (a GeoJSON file already in lon/lat is accepted in its place).
func ProcessCWB(cfg *config.Config, csvPath, boundaryPath string) (string, string, error) {
	if csvPath == "" {
		csvPath = filepath.Join(cfg.Directories.Raw, "CWB_2021.csv")
	}
	if boundaryPath == "" {
		boundaryPath = censusBoundaryPath(cfg)
	}

	logger := log.With().Str("dataset", "cwb").Logger()

	table, err := ReadTable(csvPath, Latin1, ',')
	if err != nil {
		return "", "", err
	}
	scores := make(map[string][]string)
	for _, row := range table.Rows {
		code := table.Get(row, "CSD Code 2021")
		if strings.HasPrefix(code, "35") {
			scores[code] = row
		}
	}
	logger.Info().Int("rows", len(table.Rows)).Int("ontario", len(scores)).Msg("loaded well-being index")

	boundaries, err := readBoundaries(boundaryPath)
	if err != nil {
		return "", "", err
	}
	logger.Info().Int("subdivisions", len(boundaries.Features)).Str("path", boundaryPath).Msg("loaded census subdivisions")

	joined := geojson.NewFeatureCollection()
	for _, f := range boundaries.Features {
		if geo.StringProp(f.Properties, "PRUID") != "35" {
			continue
		}
		row, ok := scores[geo.StringProp(f.Properties, "CSDUID")]
		if !ok {
			continue
		}

		nf := geojson.NewFeature(f.Geometry)
		nf.Properties["name"] = table.Get(row, "CSD Name 2021")
		nf.Properties["csd_code"] = table.Get(row, "CSD Code 2021")
		if v, ok := parseCoord(table.Get(row, "Census Population 2021")); ok {
			nf.Properties["population"] = v
		}
		for column, prop := range cwbScores {
			if v, ok := parseCoord(table.Get(row, column)); ok {
				nf.Properties[prop] = v
			}
		}
		nf.Properties["community_type"] = table.Get(row, "Community Type 2021")
		joined.Append(nf)
	}
	logger.Info().Int("communities", len(joined.Features)).Msg("joined scores to boundaries")

	mask, err := aoi.Geometry(cfg)
	if err != nil {
		return "", "", err
	}
	filtered, err := geo.FilterIntersecting(joined, mask)
	if err != nil {
		return "", "", err
	}

	path := CWBPath(cfg)
	if err := geo.WriteCollection(path, filtered); err != nil {
		return "", "", err
	}

	var sum, lowest, highest float64
	scored := 0
	for _, f := range filtered.Features {
		v, ok := geo.FloatProp(f.Properties, "cwb_score")
		if !ok {
			continue
		}
		if scored == 0 || v < lowest {
			lowest = v
		}
		if v > highest {
			highest = v
		}
		sum += v
		scored++
	}
	ev := logger.Info().Int("communities", len(filtered.Features)).Str("path", path)
	if scored > 0 {
		ev = ev.Float64("mean_score", sum/float64(scored)).Float64("min_score", lowest).Float64("max_score", highest)
	}
	ev.Msg("wrote community well-being layer")

	nations := geojson.NewFeatureCollection()
	for _, f := range filtered.Features {
		kind := strings.ToLower(geo.StringProp(f.Properties, "community_type"))
		if strings.Contains(kind, "first nation") {
			nations.Append(f)
		}
	}
	if len(nations.Features) == 0 {
		return path, "", nil
	}

	nationsPath := cwbFirstNationsPath(cfg)
	if err := geo.WriteCollection(nationsPath, nations); err != nil {
		return "", "", err
	}
	logger.Info().Int("communities", len(nations.Features)).Str("path", nationsPath).Msg("wrote First Nations subset")
	return path, nationsPath, nil
}

// readBoundaries loads the subdivision polygons. Zip archives hold the
// shapefile in the Statistics Canada Lambert grid and get reprojected;
// GeoJSON is taken as lon/lat already.
func readBoundaries(path string) (*geojson.FeatureCollection, error) {
	if !shp.IsArchive(path) {
		return geo.ReadCollection(path)
	}

	fc, err := shp.ReadZip(path)
	if err != nil {
		return nil, err
	}
	lambert, err := proj.ByCode(3347)
	if err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		f.Geometry = geo.ToGeographic(f.Geometry, lambert)
	}
	return fc, nil
}
