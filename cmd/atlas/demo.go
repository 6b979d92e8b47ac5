package main

import (
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/demo"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Generate the synthetic demonstration layers",
	Long: `Generate plausible synthetic fire perimeters and a fuel type raster so
	the map has something to show before the real downloads finish.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := demo.Fires(cfg); err != nil {
			return err
		}
		_, err := demo.Fuel(cfg)
		return err
	},
}
