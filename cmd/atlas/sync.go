package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/bucket"
)

var (
	syncBucket string
	syncDir    string
	syncDryRun bool

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Upload the data directory to an S3 bucket",
		Long: `Upload the data tree to an S3 compatible bucket, skipping objects whose
		size already matches. Credentials come from the usual AWS environment.
		The bucket URL takes the form s3://name/prefix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := syncDir
			if dir == "" {
				dir = cfg.Directories.Data
			}

			s, err := bucket.New(cmd.Context(), syncBucket)
			if err != nil {
				return err
			}
			s.DryRun = syncDryRun

			res, err := s.Sync(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d uploads failed", res.Failed)
			}
			return nil
		},
	}
)

func init() {
	syncCmd.Flags().StringVar(&syncBucket, "bucket", "", "Target bucket as s3://name/prefix.")
	syncCmd.Flags().StringVar(&syncDir, "dir", "", "Directory to upload, defaults to the data directory.")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Log what would upload without touching the bucket.")
	syncCmd.MarkFlagRequired("bucket")
}
