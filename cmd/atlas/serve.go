package main

import (
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/server"
)

var (
	serveAddr        string
	serveData        string
	serveBucketURL   string
	serveNoRedirect  bool
	servePreferLocal bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the datasets and the layer inventory",
		Long: `Serve the data directory, the layer inventory API and the web client.
		With a bucket URL dataset requests become redirects into the public
		bucket. Basic auth credentials and the bucket URL can also come from
		ATLAS_USERNAME, ATLAS_PASSWORD and ATLAS_BUCKET_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := server.OptionsFromEnv()
			if serveAddr != "" {
				opts.Addr = serveAddr
			}
			if serveBucketURL != "" {
				opts.BucketURL = serveBucketURL
			}
			if serveNoRedirect {
				opts.NoRedirect = true
			}
			if servePreferLocal {
				opts.PreferLocal = true
			}
			if serveData != "" {
				cfg.Directories.Data = serveData
			}

			return server.New(cfg, opts).Run(cmd.Context())
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, defaults to the configured host and port.")
	serveCmd.Flags().StringVar(&serveData, "data", "", "Serve a different data directory.")
	serveCmd.Flags().StringVar(&serveBucketURL, "bucket-url", "", "Public bucket base URL for dataset redirects.")
	serveCmd.Flags().BoolVar(&serveNoRedirect, "no-redirect", false, "Serve locally even when a bucket URL is set.")
	serveCmd.Flags().BoolVar(&servePreferLocal, "prefer-local", false, "Serve files that exist on disk, redirect the rest.")
}
