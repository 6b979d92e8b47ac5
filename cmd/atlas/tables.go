package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/tables"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	tablesInfrastructure string
	tablesWater          string
	tablesCWB            string
	tablesBoundaries     string
	tablesCSICP          string

	tablesCmd = &cobra.Command{
		Use:   "tables",
		Short: "Process the tabular community datasets",
		Long: `Process the non-spatial datasets, infrastructure projects, drinking
		water advisories, community well-being scores and climate funding,
		into the JSON documents the map client reads. Each dataset accepts a
		local input file; without one the curated fallback records are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error

			if _, err := tables.ProcessInfrastructure(cfg, tablesInfrastructure); err != nil {
				errs = append(errs, fmt.Errorf("infrastructure: %w", err))
			}
			if _, _, err := tables.ProcessWater(cfg, tablesWater); err != nil {
				errs = append(errs, fmt.Errorf("water: %w", err))
			}

			d := tables.NewCensusDownloader(cfg, fetch.New(downloadTimeout))
			if _, err := d.Download(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("census boundaries unavailable")
			}
			if _, _, err := tables.ProcessCWB(cfg, tablesCWB, tablesBoundaries); err != nil {
				errs = append(errs, fmt.Errorf("cwb: %w", err))
			}

			if _, err := tables.ProcessCSICP(cfg, tablesCSICP); err != nil {
				errs = append(errs, fmt.Errorf("csicp: %w", err))
			}
			return errors.Join(errs...)
		},
	}
)

func init() {
	tablesCmd.Flags().StringVar(&tablesInfrastructure, "infrastructure", "", "Local infrastructure projects CSV.")
	tablesCmd.Flags().StringVar(&tablesWater, "water", "", "Local drinking water advisories CSV.")
	tablesCmd.Flags().StringVar(&tablesCWB, "cwb", "", "Local community well-being CSV.")
	tablesCmd.Flags().StringVar(&tablesBoundaries, "boundaries", "", "Local census subdivision boundary file for the CWB join.")
	tablesCmd.Flags().StringVar(&tablesCSICP, "csicp", "", "Local climate funding CSV.")
}
