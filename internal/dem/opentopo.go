package dem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

const (
	openTopoBase = "https://portal.opentopography.org/API/globaldem"

	// demoKey is OpenTopography's public demonstration key. It covers small
	// extents; set OPENTOPO_API_KEY for a personal one.
	demoKey = "demoapikeyot2022"
)

// FetchOpenTopo streams the SRTM GL1 surface for the AOI envelope to the
// output path. SRTMGL1 already ships in EPSG:4326 at ~30 m, so the file is
// served as downloaded.
func FetchOpenTopo(ctx context.Context, cfg *config.Config, client *fetch.Client, baseURL string) (string, error) {
	if baseURL == "" {
		baseURL = openTopoBase
	}
	b := aoi.Bound(cfg)

	key := os.Getenv("OPENTOPO_API_KEY")
	if key == "" {
		key = demoKey
	}

	q := url.Values{}
	q.Set("demtype", "SRTMGL1")
	q.Set("west", formatCoord(b.Min[0]))
	q.Set("south", formatCoord(b.Min[1]))
	q.Set("east", formatCoord(b.Max[0]))
	q.Set("north", formatCoord(b.Max[1]))
	q.Set("outputFormat", "GTiff")
	q.Set("API_Key", key)

	log.Info().Str("demtype", "SRTMGL1").Msg("requesting elevation from OpenTopography")

	path := OutputPath(cfg)
	n, err := client.Download(ctx, baseURL+"?"+q.Encode(), path)
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) {
			switch se.Status {
			case http.StatusBadRequest:
				return "", fmt.Errorf("elevation request rejected, the area may be too large: %w", err)
			case http.StatusUnauthorized, http.StatusForbidden:
				return "", fmt.Errorf("API key rejected, register at https://opentopography.org/ and set OPENTOPO_API_KEY: %w", err)
			}
		}
		return "", err
	}

	if err := verifyTIFF(path); err != nil {
		os.Remove(path)
		return "", err
	}

	log.Info().Int64("bytes", n).Str("path", path).Msg("saved elevation raster")
	return path, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func verifyTIFF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil || !geotiff.IsTIFF(magic) {
		return fmt.Errorf("%s is not a GeoTIFF", path)
	}
	return nil
}
