package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/landcover"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	landcoverYearFlag int
	landcoverToWGS84  bool

	landcoverCmd = &cobra.Command{
		Use:   "landcover",
		Short: "Download and clip the national land cover rasters",
		Long: `Download the 30 m national land cover archives for each configured
		epoch, extract the rasters and clip them to the study area in WGS84.
		--year restricts the run to a single epoch; --to-wgs84=false keeps the
		clip on the product's Lambert grid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			years := cfg.Datasets.Landcover.Years
			if landcoverYearFlag != 0 {
				years = []int{landcoverYearFlag}
			}

			d := landcover.NewDownloader(cfg, fetch.New(downloadTimeout))
			for _, year := range years {
				archive, err := d.Download(cmd.Context(), year)
				if err != nil {
					return fmt.Errorf("year %d: %w", year, err)
				}
				extracted, err := landcover.Extract(cfg, year, archive)
				if err != nil {
					return fmt.Errorf("year %d: %w", year, err)
				}
				if _, err := landcover.Clip(cfg, year, extracted, landcoverToWGS84); err != nil {
					return fmt.Errorf("year %d: %w", year, err)
				}
			}
			return nil
		},
	}
)

func init() {
	landcoverCmd.Flags().IntVar(&landcoverYearFlag, "year", 0, "Process a single epoch instead of every configured year.")
	landcoverCmd.Flags().BoolVar(&landcoverToWGS84, "to-wgs84", true, "Reproject the clip from the Lambert grid to EPSG:4326.")
}
