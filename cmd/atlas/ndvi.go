package main

import (
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/ndvi"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	ndviExample bool

	ndviCmd = &cobra.Command{
		Use:   "ndvi",
		Short: "Compute the vegetation index raster",
		Long: `Search the Sentinel-2 STAC catalogue for a recent low-cloud scene over
		the study area and compute NDVI from the red and near-infrared bands.
		--example writes a plausible synthetic surface instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ndviExample {
				_, err := ndvi.Example(cfg)
				return err
			}
			p := ndvi.NewProcessor(cfg, fetch.New(downloadTimeout))
			_, err := p.Process(cmd.Context())
			return err
		},
	}
)

func init() {
	ndviCmd.Flags().BoolVar(&ndviExample, "example", false, "Write the synthetic example surface without downloading.")
}
