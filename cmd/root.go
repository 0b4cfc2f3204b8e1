// Package cmd implements the command-line interface of the crawler.
package cmd

import (
	"context"
	"io"

	"github.com/Glyph8/navermapCrawling/common"
	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/Glyph8/navermapCrawling/common/logger"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// cfg is loaded from the environment before any subcommand runs
	cfg       config.Config
	logCloser io.Closer
	logLevel  string

	rootCmd = &cobra.Command{
		Use:           common.AppName,
		Short:         "Crawls place listings and details from map search pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.DefaultConfig()
			cfg.LoadFromEnv()
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}

			closer, err := logger.Setup(cfg)
			if err != nil {
				return err
			}
			logCloser = closer
			return cfg.Validate()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides LOG_LEVEL")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(crawlCommand())
	rootCmd.AddCommand(extractCommand())
}

// Execute runs the root command
func Execute() error {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file, using environment variables")
	}
	return rootCmd.ExecuteContext(context.Background())
}
