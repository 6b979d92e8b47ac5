package main

import (
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/aoi"
)

var aoiCmd = &cobra.Command{
	Use:   "aoi",
	Short: "Build the study area boundary",
	Long: `Build the Williams Treaty study area polygon from the signatory First
	Nation reserve locations, buffered and unioned into a single boundary,
	plus the bounding box used to clip every other dataset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return aoi.Build(cfg)
	},
}
