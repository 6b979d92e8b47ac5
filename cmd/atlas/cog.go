package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/cog"
)

var (
	cogReplace bool

	cogCmd = &cobra.Command{
		Use:   "cog",
		Short: "Rewrite the dataset rasters as cloud optimized GeoTIFFs",
		Long: `Rewrite every GeoTIFF under the datasets directory as a tiled, deflate
		compressed cloud optimized GeoTIFF, so clients can range request tiles
		straight from a bucket. Outputs get a _cog suffix unless --replace
		overwrites the originals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := cog.RewriteAll(cmd.Context(), cfg, cog.Options{Replace: cogReplace})
			for _, r := range results {
				fmt.Printf("%s -> %s\n", r.Source, r.Output)
			}
			return err
		},
	}
)

func init() {
	cogCmd.Flags().BoolVar(&cogReplace, "replace", false, "Overwrite the source rasters in place.")
}
