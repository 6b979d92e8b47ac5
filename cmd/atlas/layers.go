package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/geohub"
	"github.com/williamstreaties/atlas/pkg/esri"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	layersList    bool
	layersLayer   string
	layersAll     bool
	layersWorkers int

	layersCmd = &cobra.Command{
		Use:   "layers",
		Short: "Download Ontario GeoHub catalogue layers",
		Long: `Download vector layers from the Ontario GeoHub ArcGIS REST services,
		clipped to the study area bounding box and written as GeoJSON.
		Without flags every catalogue layer is fetched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if layersList {
				return listLayers()
			}

			d := geohub.NewDownloader(cfg, esri.NewClient(fetch.New(downloadTimeout)))
			d.Workers = layersWorkers

			if layersLayer != "" {
				layer, ok := geohub.Find(layersLayer)
				if !ok {
					return fmt.Errorf("unknown layer %q, try --list", layersLayer)
				}
				n, err := d.Download(cmd.Context(), layer)
				if err != nil {
					return err
				}
				log.Info().Str("layer", layer.ID).Int("features", n).Msg("layer downloaded")
				return nil
			}

			results := d.DownloadAll(cmd.Context())
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			if failed == len(results) {
				return fmt.Errorf("all %d catalogue layers failed", len(results))
			}
			if failed > 0 {
				log.Warn().Int("failed", failed).Int("total", len(results)).Msg("some layers failed")
			}
			return nil
		},
	}
)

func init() {
	layersCmd.Flags().BoolVar(&layersList, "list", false, "List the catalogue layers and exit.")
	layersCmd.Flags().StringVar(&layersLayer, "layer", "", "Download a single layer by id.")
	layersCmd.Flags().BoolVar(&layersAll, "all", false, "Download every catalogue layer, the default.")
	layersCmd.Flags().IntVar(&layersWorkers, "workers", 3, "Concurrent downloads.")
	layersCmd.MarkFlagsMutuallyExclusive("list", "layer", "all")
}

func listLayers() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY")
	for _, layer := range geohub.Catalogue {
		fmt.Fprintf(w, "%s\t%s\t%s\n", layer.ID, layer.Name, layer.Category)
	}
	return w.Flush()
}
