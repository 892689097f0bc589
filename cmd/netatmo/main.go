// Command netatmo is a small CLI for the Netatmo API: log in, list weather
// stations and camera homes, and manage the event webhook.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	authcmd "github.com/cgtobi/netatmo-api-go/cmd/netatmo/auth"
	homescmd "github.com/cgtobi/netatmo-api-go/cmd/netatmo/homes"
	stationscmd "github.com/cgtobi/netatmo-api-go/cmd/netatmo/stations"
	webhookcmd "github.com/cgtobi/netatmo-api-go/cmd/netatmo/webhook"
)

// Global flags
var (
	configPath string
	verbose    bool
)

// newRootCommand creates the root cobra command.
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "netatmo",
		Short:         "CLI for the Netatmo weather and security API",
		Long:          `A command line interface for Netatmo weather stations, cameras and webhooks.`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors (main handles it)
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()
			return nil
		},
	}

	rootCmd.AddCommand(authcmd.NewAuthCmd())
	rootCmd.AddCommand(stationscmd.NewStationsCmd())
	rootCmd.AddCommand(homescmd.NewHomesCmd())
	rootCmd.AddCommand(webhookcmd.NewWebhookCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default ~/.config/netatmo/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log API requests and token refreshes to stderr")

	return rootCmd
}

// setupLogging configures the global logger based on the verbose flag.
func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
