package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/dem"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	demSynthetic  bool
	demOpenTopo   bool
	demCDEM       bool
	demDownsample int
	demBaseURL    string

	demCmd = &cobra.Command{
		Use:   "dem",
		Short: "Fetch the elevation model",
		Long: `Fetch a digital elevation model for the study area. The default tries
		the OpenTopography global DEM and falls back to a synthetic surface.
		--cdem fetches the provincial 2 m DTM tiles instead, --synthetic skips
		the network entirely.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case demSynthetic:
				_, err := dem.Synthetic(cfg)
				return err
			case demCDEM:
				_, err := dem.FetchCDEM(cmd.Context(), cfg, fetch.New(downloadTimeout), dem.CDEMOptions{
					Downsample: demDownsample,
					BaseURL:    demBaseURL,
				})
				return err
			case demOpenTopo:
				_, err := dem.FetchOpenTopo(cmd.Context(), cfg, fetch.New(downloadTimeout), demBaseURL)
				return err
			}

			if _, err := dem.FetchOpenTopo(cmd.Context(), cfg, fetch.New(downloadTimeout), ""); err != nil {
				log.Warn().Err(err).Msg("elevation download failed; writing the synthetic surface")
				_, err = dem.Synthetic(cfg)
				return err
			}
			return nil
		},
	}
)

func init() {
	demCmd.Flags().BoolVar(&demSynthetic, "synthetic", false, "Generate the synthetic surface without downloading.")
	demCmd.Flags().BoolVar(&demOpenTopo, "opentopo", false, "Fetch from OpenTopography, no synthetic fallback.")
	demCmd.Flags().BoolVar(&demCDEM, "cdem", false, "Fetch the provincial 2 m DTM tiles.")
	demCmd.Flags().IntVar(&demDownsample, "downsample", 4, "Block size for averaging the 2 m DTM, 1 keeps full resolution.")
	demCmd.Flags().StringVar(&demBaseURL, "base-url", "", "Override the elevation service endpoint.")
	demCmd.MarkFlagsMutuallyExclusive("synthetic", "opentopo", "cdem")
}
