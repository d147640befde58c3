// Command server runs the Beatpost API and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"beatpost/internal/config"
	"beatpost/internal/logging"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "beatpost",
	Short: "Beatpost content-publishing API server",
	Long: `Beatpost serves the posts, ratings, comments and follows API along with
the frontpage, ranks and author directory views.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// loadConfig reads the configuration and initialises logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return cfg, nil
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, recomputeCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
