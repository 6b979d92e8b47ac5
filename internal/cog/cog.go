// Package cog rewrites the published rasters as cloud-optimised GeoTIFFs,
// so range requests against the bucket can read single tiles instead of
// whole files.
package cog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/cogger"
	"github.com/rs/zerolog/log"

	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/pkg/geotiff"
)

const tileSize = 256

type Options struct {
	// Replace overwrites each source raster instead of writing a _cog
	// sibling next to it.
	Replace bool
}

// Result names one rewritten raster.
type Result struct {
	Source string
	Output string
}

// RewriteAll converts every raster under the datasets directory. Outputs
// of earlier runs are left alone. Failures are collected so one broken
// file does not stop the rest.
func RewriteAll(ctx context.Context, cfg *config.Config, opts Options) ([]Result, error) {
	matches, err := filepath.Glob(filepath.Join(cfg.Directories.Datasets, "*.tif"))
	if err != nil {
		return nil, err
	}

	var results []Result
	var errs []error
	for _, src := range matches {
		if strings.HasSuffix(src, "_cog.tif") {
			continue
		}
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		out, err := Rewrite(src, opts)
		if err != nil {
			log.Error().Err(err).Str("source", src).Msg("cog rewrite failed")
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(src), err))
			continue
		}
		results = append(results, Result{Source: src, Output: out})
		log.Info().Str("source", src).Str("output", out).Msg("rewrote as cloud-optimised")
	}

	if len(results) == 0 && len(errs) == 0 {
		log.Warn().Str("dir", cfg.Directories.Datasets).Msg("no rasters to rewrite")
	}
	return results, errors.Join(errs...)
}

// Rewrite converts one GeoTIFF. The raster is first re-encoded with
// internal tiling, then cogger rearranges the tiles into COG layout.
func Rewrite(src string, opts Options) (string, error) {
	r, err := geotiff.Read(src)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", src, err)
	}

	tiled, err := os.CreateTemp(filepath.Dir(src), "."+filepath.Base(src)+".tiled.*")
	if err != nil {
		return "", fmt.Errorf("failed to create tiling scratch file: %w", err)
	}
	tiledPath := tiled.Name()
	tiled.Close()
	defer os.Remove(tiledPath)

	if err := geotiff.Write(tiledPath, r, geotiff.EncodeOptions{Deflate: true, TileSize: tileSize}); err != nil {
		return "", fmt.Errorf("failed to tile %s: %w", src, err)
	}

	out := src
	if !opts.Replace {
		ext := filepath.Ext(src)
		out = strings.TrimSuffix(src, ext) + "_cog" + ext
	}
	if err := assemble(tiledPath, out); err != nil {
		return "", err
	}
	return out, nil
}

// assemble runs cogger over the tiled scratch file and renames the result
// into place, so a crash never leaves a half-written raster behind.
func assemble(tiledPath, out string) error {
	in, err := os.Open(tiledPath)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := cogger.Rewrite(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to assemble COG layout: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), out)
}
