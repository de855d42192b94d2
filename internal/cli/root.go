package cli

import (
	"context"

	"github.com/spf13/cobra"

	"DailyBriefing/internal/app"
	"DailyBriefing/internal/config"
	"DailyBriefing/internal/logging"
)

var Version = "dev"

// NewRootCommand assembles the dailybriefing command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "dailybriefing",
		Short:         "Daily briefing: calendar + weather summarized and delivered every morning",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(scheduleCmd(&configPath))
	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(historyCmd(&configPath))

	return rootCmd
}

// bootstrap loads configuration and builds the application for one command.
func bootstrap(ctx context.Context, configPath string) (*app.Application, error) {
	cfg := config.LoadFrom(configPath)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return app.New(ctx, cfg, logger)
}
