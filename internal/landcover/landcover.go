// Package landcover fetches the NRCan national land-cover product and clips
// it to the study area, one raster per survey year.
package landcover

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

const archiveBase = "https://ftp.maps.canada.ca/pub/nrcan_rncan/Land-cover_Couverture-du-sol/canada-landcover_canada-couverture-du-sol"

// archives names the distributed zip for each survey year.
var archives = map[int]string{
	2010: "CanadaLandcover2010.zip",
	2015: "CanadaLandcover2015.zip",
	2020: "CanadaLandcover2020.zip",
}

// Downloader fetches land-cover archives from the NRCan FTP mirror.
type Downloader struct {
	cfg    *config.Config
	client *fetch.Client

	// BaseURL is the directory holding the CanadaLandcover archives.
	BaseURL string
}

func NewDownloader(cfg *config.Config, client *fetch.Client) *Downloader {
	return &Downloader{cfg: cfg, client: client, BaseURL: archiveBase}
}

// ArchivePath is where a year's downloaded archive lands.
func ArchivePath(cfg *config.Config, year int) string {
	return filepath.Join(cfg.Directories.Raw, "landcover", fmt.Sprintf("landcover_%d.zip", year))
}

// RasterPath is where a year's extracted classification raster lands.
func RasterPath(cfg *config.Config, year int) string {
	return filepath.Join(cfg.Directories.Raw, "landcover", fmt.Sprintf("landcover_%d.tif", year))
}

// Download fetches the national archive for a survey year into raw/landcover.
// National coverage runs to several gigabytes, so years already on disk are
// skipped.
func (d *Downloader) Download(ctx context.Context, year int) (string, error) {
	name, ok := archives[year]
	if !ok {
		return "", fmt.Errorf("no land-cover product for %d (published years: 2010, 2015, 2020)", year)
	}

	path := ArchivePath(d.cfg, year)
	if _, err := os.Stat(path); err == nil {
		log.Info().Int("year", year).Str("path", path).Msg("land-cover archive already downloaded")
		return path, nil
	}

	url := d.BaseURL + "/" + name
	log.Info().Int("year", year).Str("url", url).Msg("downloading land-cover archive")

	n, err := d.client.Download(ctx, url, path)
	if err != nil {
		return "", fmt.Errorf("failed to download land cover %d: %w", year, err)
	}

	log.Info().Int64("bytes", n).Str("path", path).Msg("saved land-cover archive")
	return path, nil
}

// Extract stages the classification GeoTIFF out of a downloaded archive as
// raw/landcover/landcover_<year>.tif. An empty archive path means the
// default location for the year.
func Extract(cfg *config.Config, year int, archive string) (string, error) {
	if archive == "" {
		archive = ArchivePath(cfg, year)
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", fmt.Errorf("failed to open land-cover archive: %w", err)
	}
	defer zr.Close()

	var member *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".tif") {
			member = f
			break
		}
	}
	if member == nil {
		return "", fmt.Errorf("no GeoTIFF inside %s", archive)
	}

	dest := RasterPath(cfg, year)
	if err := copyMember(member, dest); err != nil {
		return "", err
	}

	log.Info().Str("member", member.Name).Str("path", dest).Msg("extracted land-cover raster")
	return dest, nil
}

// copyMember streams one archive member to dest through a temp file so a
// partial extraction never shadows a good raster.
func copyMember(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive member %s: %w", f.Name, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return nil
}

// Clip cuts a year's raster to the AOI and writes the dataset the map
// serves, with a class tally beside it. Class codes are categorical, so the
// optional warp to the geographic CRS samples nearest-neighbour.
func Clip(cfg *config.Config, year int, input string, toWGS84 bool) (string, error) {
	if input == "" {
		input = RasterPath(cfg, year)
	}

	src, err := geotiff.Read(input)
	if err != nil {
		return "", err
	}

	mask, err := aoi.Geometry(cfg)
	if err != nil {
		return "", err
	}

	clipped, err := raster.Clip(src, mask)
	if err != nil {
		return "", fmt.Errorf("failed to clip land cover %d: %w", year, err)
	}

	if toWGS84 {
		clipped, err = raster.ToGeographic(clipped, raster.Nearest)
		if err != nil {
			return "", fmt.Errorf("failed to reproject land cover %d: %w", year, err)
		}
	}

	output := filepath.Join(cfg.Directories.Datasets, fmt.Sprintf("landcover_%d_aoi.tif", year))
	if err := geotiff.Write(output, clipped, geotiff.EncodeOptions{Deflate: true}); err != nil {
		return "", err
	}

	stats := Summarize(clipped)
	statsPath := filepath.Join(cfg.Directories.Datasets, fmt.Sprintf("landcover_%d_stats.json", year))
	if err := WriteStats(statsPath, stats); err != nil {
		return "", err
	}

	log.Info().
		Int("year", year).
		Int("width", clipped.Grid.Width).
		Int("height", clipped.Grid.Height).
		Int("classes", len(stats.Classes)).
		Str("path", output).
		Msg("wrote clipped land-cover raster")
	return output, nil
}
