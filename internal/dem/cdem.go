package dem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/raster"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

// leapBase serves the 2009 LEAP 2 m DTM tiles for Ontario, organised by
// UTM zone.
const leapBase = "https://ftp.maps.canada.ca/pub/elevation/dem_mne/highresolution_hauteresolution/dtm_mnt/2m/ON/2009_LEAP"

type tile struct {
	zone int
	name string
}

// utmZones lists the UTM zones a geographic bound touches. Zone 17 covers
// 84°W to 78°W, zone 18 the band east of it.
func utmZones(b orb.Bound) []int {
	var zones []int
	if b.Min[0] < -78 {
		zones = append(zones, 17)
	}
	if b.Max[0] > -78 {
		zones = append(zones, 18)
	}
	return zones
}

// tileList enumerates the LEAP tiles that can cover the bound. The grid
// indices come from the published tile listing for the Kawartha Lakes and
// Lake Simcoe area; tiles outside the actual coverage 404 and get skipped.
func tileList(b orb.Bound) []tile {
	var tiles []tile
	for _, zone := range utmZones(b) {
		switch zone {
		case 17:
			tiles = append(tiles, tile{17, "dtm_2m_utm17_e_12_43.tif"})
		case 18:
			for x := 2; x <= 7; x++ {
				for y := 43; y <= 46; y++ {
					tiles = append(tiles, tile{18, fmt.Sprintf("dtm_2m_utm18_w_%d_%d.tif", x, y)})
				}
			}
		}
	}
	return tiles
}

// CDEMOptions tunes the tile pipeline.
type CDEMOptions struct {
	// Downsample is the block size for average resampling. 1 keeps the
	// full 2 m resolution, which is heavy for web delivery.
	Downsample int
	// BaseURL overrides the tile server.
	BaseURL string
}

// FetchCDEM downloads the 2 m DTM tiles covering the AOI, mosaics them,
// clips the mosaic to the AOI envelope and reprojects to EPSG:4326.
// Unavailable tiles are skipped; the pipeline fails only when nothing
// could be fetched at all.
func FetchCDEM(ctx context.Context, cfg *config.Config, client *fetch.Client, opts CDEMOptions) (string, error) {
	base := opts.BaseURL
	if base == "" {
		base = leapBase
	}

	b := aoi.Bound(cfg)
	tiles := tileList(b)
	if len(tiles) == 0 {
		return "", fmt.Errorf("no elevation tiles cover the area")
	}

	logger := log.With().Str("dataset", "cdem_2m").Logger()
	rawDir := filepath.Join(cfg.Directories.Raw, "dem", "cdem_2m")

	var rasters []*geotiff.Raster
	for _, tl := range tiles {
		path := filepath.Join(rawDir, tl.name)
		if _, err := os.Stat(path); err != nil {
			url := fmt.Sprintf("%s/utm%d/%s", base, tl.zone, tl.name)
			if _, err := client.Download(ctx, url, path); err != nil {
				// The enumeration over-covers; most misses are tiles that
				// simply do not exist.
				logger.Debug().Str("tile", tl.name).Err(err).Msg("tile unavailable")
				continue
			}
		}

		r, err := geotiff.Read(path)
		if err != nil {
			logger.Warn().Str("tile", tl.name).Err(err).Msg("skipping unreadable tile")
			continue
		}
		rasters = append(rasters, r)
	}
	if len(rasters) == 0 {
		return "", fmt.Errorf("no elevation tiles could be fetched; the LEAP grid may not cover the area")
	}

	// Tiles straddling the zone boundary come back in different CRSs. Keep
	// the zone with the most coverage rather than refusing to merge.
	groups := map[int][]*geotiff.Raster{}
	for _, r := range rasters {
		groups[r.Grid.EPSG] = append(groups[r.Grid.EPSG], r)
	}
	best := 0
	for epsg, g := range groups {
		if len(g) > len(groups[best]) {
			best = epsg
		}
	}
	if len(groups) > 1 {
		logger.Warn().Int("epsg", best).Msg("tiles span UTM zones, keeping the dominant zone")
	}

	logger.Info().Int("tiles", len(groups[best])).Msg("merging elevation tiles")
	mosaic, err := raster.Merge(groups[best])
	if err != nil {
		return "", err
	}

	if opts.Downsample > 1 {
		mosaic, err = raster.Downsample(mosaic, opts.Downsample, true)
		if err != nil {
			return "", err
		}
	}

	envelope, err := raster.BoundInCRS(b, mosaic.Grid.EPSG)
	if err != nil {
		return "", err
	}
	clipped, err := raster.Window(mosaic, envelope)
	if err != nil {
		return "", fmt.Errorf("elevation tiles do not overlap the area: %w", err)
	}

	out, err := raster.ToGeographic(clipped, raster.Bilinear)
	if err != nil {
		return "", err
	}

	path := OutputPath(cfg)
	if err := geotiff.Write(path, out, geotiff.EncodeOptions{Deflate: true}); err != nil {
		return "", err
	}

	sum := raster.Summary(out)
	logger.Info().
		Int("width", out.Grid.Width).
		Int("height", out.Grid.Height).
		Float64("min_m", sum.Min).
		Float64("max_m", sum.Max).
		Str("path", path).
		Msg("wrote elevation raster")
	return path, nil
}
