// Package cli is the stockscan command line: serve the scanner view, or run a
// scan or export directly against the backend.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raysh454/stockscan/internal/app"
	"github.com/raysh454/stockscan/internal/logging"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// Options are the persistent flags shared by every subcommand.
type Options struct {
	ConfigPath string
	Backend    string
	LogLevel   string
	HistoryDB  string
}

// NewRootCommand builds the command tree. It keeps no package state so tests
// can build as many as they like.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "stockscan",
		Short: "Stock scanner front-end",
		Long: `A front-end for the stock scanning service.
Run ranked stock scans, export them as CSV, or serve the scanner view
in a browser with live notifications.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	pf.StringVar(&opts.Backend, "backend", "", "backend origin, e.g. http://localhost:8000 (overrides api.base_url and server.backend_url)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&opts.HistoryDB, "history-db", "", "SQLite scan history path; empty disables history")

	root.AddCommand(
		newServeCommand(opts),
		newScanCommand(opts),
		newExportCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// Execute runs the root command with os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, opts *Options) (*app.Config, error) {
	cfg, err := app.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		backend := strings.TrimRight(opts.Backend, "/")
		cfg.API.BaseURL = backend + "/api"
		cfg.Server.BackendURL = backend
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if cmd.Flags().Changed("history-db") {
		cfg.Storage.HistoryDB = opts.HistoryDB
	}
	return cfg, nil
}

// newApplication wires the services for one command run. Logs go to stderr so
// stdout stays clean for results.
func newApplication(cmd *cobra.Command, cfg *app.Config) (*app.Application, error) {
	logger := logging.NewLogger(cmd.ErrOrStderr(), "stockscan", cfg.Log.Level)
	a, err := app.NewApplication(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("starting: %w", err)
	}
	return a, nil
}
