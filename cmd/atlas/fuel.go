package main

import (
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/fuel"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	fuelInput string

	fuelCmd = &cobra.Command{
		Use:   "fuel",
		Short: "Download and clip the national fuel type raster",
		Long: `Download the CWFIS FBP fuel type raster, clip it to the study area and
		write the class statistics alongside. With --input the download is
		skipped and an existing raster is clipped instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := fuelInput
			if input == "" {
				d := fuel.NewDownloader(cfg, fetch.New(downloadTimeout))
				path, err := d.Download(cmd.Context())
				if err != nil {
					return err
				}
				input = path
			}
			_, err := fuel.Clip(cfg, input, "")
			return err
		},
	}
)

func init() {
	fuelCmd.Flags().StringVar(&fuelInput, "input", "", "Clip an existing raster instead of downloading.")
}
