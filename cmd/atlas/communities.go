package main

import (
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/communities"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

var (
	communitiesReserves string

	communitiesCmd = &cobra.Command{
		Use:   "communities",
		Short: "Write the First Nation community layers",
		Long: `Write the signatory community points, the demographic records and the
		reserve boundary polygons. Reserve boundaries come from the Crown land
		registry download, or from --reserves when the archive is already on
		disk, with approximate circles as the fallback.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := communities.WriteCommunities(cfg); err != nil {
				return err
			}
			if _, err := communities.WriteDemographics(cfg); err != nil {
				return err
			}
			d := communities.NewReserveDownloader(cfg, fetch.New(downloadTimeout))
			_, err := d.Build(cmd.Context(), communitiesReserves)
			return err
		},
	}
)

func init() {
	communitiesCmd.Flags().StringVar(&communitiesReserves, "reserves", "", "Use a local boundary archive instead of downloading.")
}
