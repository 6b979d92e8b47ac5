package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/fire"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	fireStart int
	fireEnd   int

	fireCmd = &cobra.Command{
		Use:   "fire",
		Short: "Download historical fire perimeters",
		Long: `Download CWFIS fire perimeters intersecting the study area, derive the
		demonstration risk zones and write the fire metadata document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := fireStart
			if start == 0 {
				start = cfg.Datasets.Fire.StartYear
			}
			end := fireEnd
			if end == 0 {
				end = time.Now().Year()
			}

			d := fire.NewDownloader(cfg, fetch.New(downloadTimeout))
			if _, err := d.Perimeters(cmd.Context(), start, end); err != nil {
				return err
			}
			if _, err := fire.RiskZones(cfg); err != nil {
				return err
			}
			return fire.WriteInfo(cfg, end-start)
		},
	}
)

var (
	fireFilterStart  int
	fireFilterEnd    int
	fireFilterAOI    bool
	fireFilterOutput string
	fireFilterFields bool

	fireFilterCmd = &cobra.Command{
		Use:   "filter <input>",
		Short: "Standardise a fire archive already on disk",
		Long: `Filter a historical fire archive, GeoJSON or zipped shapefile, to the
		study area and year range and standardise its attributes for the map
		client. Use --list-fields to inspect an unfamiliar schema first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fireFilterFields {
				fields, err := fire.ListFields(args[0])
				if err != nil {
					return err
				}
				for _, f := range fields {
					fmt.Println(f)
				}
				return nil
			}

			out, err := fire.FilterPerimeters(cfg, args[0], fire.FilterOptions{
				StartYear: fireFilterStart,
				EndYear:   fireFilterEnd,
				UseAOI:    fireFilterAOI,
				Output:    fireFilterOutput,
			})
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
)

func init() {
	fireCmd.Flags().IntVar(&fireStart, "start", 0, "First year to fetch, defaults to the configured start year.")
	fireCmd.Flags().IntVar(&fireEnd, "end", 0, "Last year to fetch, defaults to the current year.")

	fireFilterCmd.Flags().IntVar(&fireFilterStart, "start", 0, "Drop features before this year.")
	fireFilterCmd.Flags().IntVar(&fireFilterEnd, "end", 0, "Drop features after this year.")
	fireFilterCmd.Flags().BoolVar(&fireFilterAOI, "use-aoi", false, "Filter to the AOI envelope instead of the default bbox.")
	fireFilterCmd.Flags().StringVar(&fireFilterOutput, "output", "", "Output path, defaults under the processed directory.")
	fireFilterCmd.Flags().BoolVar(&fireFilterFields, "list-fields", false, "Print the attribute names and exit.")

	fireCmd.AddCommand(fireFilterCmd)
}
