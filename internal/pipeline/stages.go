package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/communities"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/dem"
	"github.com/williamstreaties/atlas/internal/demo"
	"github.com/williamstreaties/atlas/internal/fire"
	"github.com/williamstreaties/atlas/internal/fuel"
	"github.com/williamstreaties/atlas/internal/geohub"
	"github.com/williamstreaties/atlas/internal/landcover"
	"github.com/williamstreaties/atlas/internal/ndvi"
	"github.com/williamstreaties/atlas/internal/tables"
	"github.com/williamstreaties/atlas/pkg/esri"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

// clientTimeout bounds single requests, not whole stages. The landcover
// archives run to hundreds of megabytes on a slow federal mirror.
const clientTimeout = 5 * time.Minute

func runAOI(ctx context.Context, cfg *config.Config) error {
	return aoi.Build(cfg)
}

func runLayers(ctx context.Context, cfg *config.Config) error {
	d := geohub.NewDownloader(cfg, esri.NewClient(fetch.New(clientTimeout)))
	results := d.DownloadAll(ctx)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == len(results) {
		return fmt.Errorf("all %d catalogue layers failed", failed)
	}
	if failed > 0 {
		log.Warn().Int("failed", failed).Int("total", len(results)).Msg("some catalogue layers failed")
	}
	return nil
}

func runFire(ctx context.Context, cfg *config.Config) error {
	endYear := time.Now().Year()
	d := fire.NewDownloader(cfg, fetch.New(clientTimeout))
	if _, err := d.Perimeters(ctx, cfg.Datasets.Fire.StartYear, endYear); err != nil {
		return err
	}
	if _, err := fire.RiskZones(cfg); err != nil {
		return err
	}
	return fire.WriteInfo(cfg, endYear-cfg.Datasets.Fire.StartYear)
}

func runFuel(ctx context.Context, cfg *config.Config) error {
	d := fuel.NewDownloader(cfg, fetch.New(clientTimeout))
	raw, err := d.Download(ctx)
	if err != nil {
		return err
	}
	_, err = fuel.Clip(cfg, raw, "")
	return err
}

// runDEM prefers the real surface and falls back to the synthetic one, so
// an offline run still produces a terrain layer the map can load.
func runDEM(ctx context.Context, cfg *config.Config) error {
	if _, err := dem.FetchOpenTopo(ctx, cfg, fetch.New(clientTimeout), ""); err != nil {
		log.Warn().Err(err).Msg("elevation download failed; writing the synthetic surface")
		_, err = dem.Synthetic(cfg)
		return err
	}
	return nil
}

func runNDVI(ctx context.Context, cfg *config.Config) error {
	p := ndvi.NewProcessor(cfg, fetch.New(clientTimeout))
	if _, err := p.Process(ctx); err != nil {
		log.Warn().Err(err).Msg("NDVI processing failed; writing the example surface")
		_, err = ndvi.Example(cfg)
		return err
	}
	return nil
}

// runLandcover works through the configured years and fails only when
// every year does. Single missing years are routine, the federal archive
// does not publish all of them.
func runLandcover(ctx context.Context, cfg *config.Config) error {
	d := landcover.NewDownloader(cfg, fetch.New(clientTimeout))

	var errs []error
	for _, year := range cfg.Datasets.Landcover.Years {
		if err := landcoverYear(ctx, cfg, d, year); err != nil {
			log.Error().Err(err).Int("year", year).Msg("landcover year failed")
			errs = append(errs, fmt.Errorf("year %d: %w", year, err))
		}
	}
	if len(errs) > 0 && len(errs) == len(cfg.Datasets.Landcover.Years) {
		return errors.Join(errs...)
	}
	return nil
}

func landcoverYear(ctx context.Context, cfg *config.Config, d *landcover.Downloader, year int) error {
	archive, err := d.Download(ctx, year)
	if err != nil {
		return err
	}
	extracted, err := landcover.Extract(cfg, year, archive)
	if err != nil {
		return err
	}
	_, err = landcover.Clip(cfg, year, extracted, true)
	return err
}

func runCommunities(ctx context.Context, cfg *config.Config) error {
	if _, err := communities.WriteCommunities(cfg); err != nil {
		return err
	}
	if _, err := communities.WriteDemographics(cfg); err != nil {
		return err
	}
	d := communities.NewReserveDownloader(cfg, fetch.New(clientTimeout))
	_, err := d.Build(ctx, "")
	return err
}

// runTables processes the manually exported spreadsheets. Each one is
// attempted regardless of the others; the stage fails only when none of
// them could be processed, which on a fresh checkout means the exports
// have not been downloaded yet.
func runTables(ctx context.Context, cfg *config.Config) error {
	var errs []error

	if _, err := tables.ProcessInfrastructure(cfg, ""); err != nil {
		log.Warn().Err(err).Msg("infrastructure projects skipped")
		errs = append(errs, fmt.Errorf("infrastructure: %w", err))
	}
	if _, _, err := tables.ProcessWater(cfg, ""); err != nil {
		log.Warn().Err(err).Msg("water advisories skipped")
		errs = append(errs, fmt.Errorf("water: %w", err))
	}

	d := tables.NewCensusDownloader(cfg, fetch.New(clientTimeout))
	if _, err := d.Download(ctx); err != nil {
		log.Warn().Err(err).Msg("census boundaries unavailable")
	}
	if _, _, err := tables.ProcessCWB(cfg, "", ""); err != nil {
		log.Warn().Err(err).Msg("community well-being skipped")
		errs = append(errs, fmt.Errorf("cwb: %w", err))
	}

	if _, err := tables.ProcessCSICP(cfg, ""); err != nil {
		log.Warn().Err(err).Msg("climate funding skipped")
		errs = append(errs, fmt.Errorf("csicp: %w", err))
	}

	if len(errs) == 4 {
		return errors.Join(errs...)
	}
	return nil
}

func runDemo(ctx context.Context, cfg *config.Config) error {
	if _, err := demo.Fires(cfg); err != nil {
		return err
	}
	_, err := demo.Fuel(cfg)
	return err
}
