package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/williamstreaties/atlas/internal/config"
)

// downloadTimeout bounds a single upstream request, not a whole command.
const downloadTimeout = 5 * time.Minute

var (
	cfg        *config.Config
	configFile string
	envFile    string
	logLevel   string

	// The root command of our program
	rootCmd = &cobra.Command{
		Use:   "atlas",
		Short: "Geospatial data pipeline for the Williams Treaty territories.",
		Long: `Atlas downloads, clips and reformats public Canadian datasets into the
		GeoJSON and GeoTIFF layers behind the Williams Treaty territories web map.
		Each subcommand covers one dataset; run executes the whole pipeline.`,
		SilenceUsage: true,
	}
)

// Go, go, go
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Bind our args to the command
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "The config file to read.")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "The env file to read.")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "The logging level to use.")

	rootCmd.AddCommand(aoiCmd)
	rootCmd.AddCommand(layersCmd)
	rootCmd.AddCommand(fireCmd)
	rootCmd.AddCommand(fuelCmd)
	rootCmd.AddCommand(demCmd)
	rootCmd.AddCommand(ndviCmd)
	rootCmd.AddCommand(landcoverCmd)
	rootCmd.AddCommand(communitiesCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cogCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	setLogLevel()

	if err := godotenv.Load(envFile); err != nil {
		log.Info().Err(err).Msg("failed to load env file")
	}

	c, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg = c
}

func setLogLevel() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		log.Warn().Str("level", logLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
