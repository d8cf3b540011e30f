package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"tagfinder/pkg/config"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	verbose       bool
)

// errSilent marks errors the command has already reported
var errSilent = errors.New("")

var rootCmd = &cobra.Command{
	Use:   "tagfinder",
	Short: "Find Tumblr blogs by theme and location",
	Long: `tagfinder searches Tumblr tags for blogs that post about a theme, keeps the
ones whose posts or profile mention a target region, and exports them.

Features:
  - OAuth 1.0a signed API access with stored credentials
  - Hourly and daily call budgets that pause or stop the run in time
  - Resumable progress saved while the run goes
  - Follower and activity thresholds
  - JSON, CSV, SQLite and PostgreSQL exports
  - Plain progress output or a full-screen dashboard

Running tagfinder without a subcommand starts a search.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runSearch,
}

// Execute runs the root command and exits non-zero on any failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			ui.PrintError("Error", err)
		}
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal: isSearch reads rootCmd, which
	// would otherwise form an initialization cycle.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColor()
		}
		if isSearch(cmd) && !useTUI {
			ui.PrintLogo()
		}
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./tagfinder.yaml or ~/.config/tagfinder/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "shorthand for --log-level debug")

	rootCmd.SetVersionTemplate(`tagfinder {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	addSearchFlags(rootCmd)
}

func isSearch(cmd *cobra.Command) bool {
	return cmd == rootCmd || cmd == searchCmd
}

// globalFlags collects the persistent flags the user actually set
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	f := cmd.Flags()
	if f.Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if verbose {
		flags["log-level"] = "debug"
	}
	if f.Changed("notifications") {
		flags["notifications"] = notifications
	}
	return flags
}

// loadConfig loads configuration and starts the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
