package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/david/scholarship-finder/internal/app"
	"github.com/david/scholarship-finder/internal/config"
	"github.com/david/scholarship-finder/internal/logger"
)

var (
	cfgFile   string
	debugLogs bool
	jsonLogs  bool

	rootCmd = &cobra.Command{
		Use:           "scholarctl",
		Short:         "scholarctl operates the scholarship ingestion pipeline and matcher",
		SilenceUsage:  true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is scholarships.yaml in current directory)")
	rootCmd.PersistentFlags().BoolVarP(&debugLogs, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")

	rootCmd.AddCommand(ingestCmd, runsCmd, verifyLinksCmd, matchCmd)
}

// openApp loads configuration and builds the application graph.
func openApp(ctx context.Context, opts app.Options) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(jsonLogs || cfg.Log.JSON, debugLogs || cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		return nil, nil, err
	}
	return a, log, nil
}
