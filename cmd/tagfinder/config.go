package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tagfinder/pkg/config"
	"tagfinder/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage tagfinder configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (TUMBLR_*, TAGFINDER_*) and .env files
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to 'tagfinder.yaml' in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging every source. Credentials are masked.`,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration and report every problem found.

This checks:
  - YAML syntax
  - Value ranges and export formats
  - Whether Tumblr credentials are present
  - Whether the output and progress locations are writable`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# tagfinder configuration
#
# Values here are overridden by environment variables and flags.
# Credentials are better kept out of this file: use 'tagfinder auth oauth'
# or TUMBLR_CONSUMER_KEY, TUMBLR_CONSUMER_SECRET, TUMBLR_OAUTH_TOKEN and
# TUMBLR_OAUTH_SECRET.

tumblr:
  consumer_key: ""
  consumer_secret: ""
  oauth_token: ""
  oauth_secret: ""
  base_url: "https://api.tumblr.com"
  user_agent: "tagfinder/1.0"
  timeout: 30s

search:
  # Tags to search, in order
  themes:
    - photography
    - film photography
    - zine
  # Stop paging a theme after this many posts
  max_posts_per_theme: 500
  min_followers: 10
  max_days_inactive: 90
  # Posts per request, 1-20
  page_size: 20
  # Courtesy delays between pages and between blog lookups
  page_delay: 2s
  candidate_delay: 2s
  # Save progress after this many blog lookups
  save_every: 10

rate_limit:
  enabled: true
  hourly_limit: 1000
  daily_limit: 5000
  # Pause or stop this many calls before a limit
  safety_margin: 10
  # Extra wait after the hour rolls over
  wait_buffer: 10s
  # Client-side cap per minute, 0 for none
  burst_per_minute: 0

location:
  # Replaces the built-in California and Bay Area terms when set
  terms: []

output:
  base_name: "results"
  # json, csv, sqlite, postgres
  formats: [json, csv]
  # Defaults to <base_name>.db
  sqlite_path: ""
  postgres_dsn: ""

progress:
  file: "search_progress.json"
  resume: false

notifications:
  enabled: false
  on_complete: true
  on_rate_limit: true

logging:
  # debug, info, warn, error
  level: "info"
  # text or json
  format: "text"
  file: ""
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "tagfinder.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return errSilent
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store credentials with 'tagfinder auth oauth'")
	fmt.Println("2. Edit the themes and thresholds")
	fmt.Println("3. Run 'tagfinder config validate'")
	fmt.Println("4. Start searching with 'tagfinder search'")
	return nil
}

// masked returns a copy of cfg that is safe to print
func masked(cfg *config.Config) config.Config {
	out := *cfg
	mask := func(s string) string {
		switch {
		case s == "":
			return ""
		case len(s) > 8:
			return s[:4] + "..." + s[len(s)-4:]
		default:
			return "***"
		}
	}
	out.Tumblr.ConsumerKey = mask(out.Tumblr.ConsumerKey)
	out.Tumblr.ConsumerSecret = mask(out.Tumblr.ConsumerSecret)
	out.Tumblr.OAuthToken = mask(out.Tumblr.OAuthToken)
	out.Tumblr.OAuthSecret = mask(out.Tumblr.OAuthSecret)
	if out.Output.PostgresDSN != "" {
		out.Output.PostgresDSN = "***"
	}
	return out
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	display := masked(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (TUMBLR_*, TAGFINDER_*)")
	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source != "" {
		fmt.Printf("3. Configuration file: %s\n", source)
	} else {
		fmt.Println("3. Configuration file: (none found)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		ui.PrintWarning("No configuration file found, checking defaults and environment")
	} else {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", "")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  - %s\n", line)
		}
		return errSilent
	}

	var warnings, problems []string

	if err := cfg.ValidateCredentials(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			warnings = append(warnings, line+" (or store an account with 'tagfinder auth oauth')")
		}
	}
	if !cfg.RateLimit.Enabled {
		warnings = append(warnings, "rate limiting is disabled; the API may lock the app out")
	}

	for _, p := range []string{cfg.Output.BaseName, cfg.Progress.File, cfg.Logging.File} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create directory for %s: %v", p, err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return errSilent
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Themes: %s\n", strings.Join(cfg.Search.Themes, ", "))
	fmt.Printf("  Max posts per theme: %d\n", cfg.Search.MaxPostsPerTheme)
	fmt.Printf("  Min followers: %d\n", cfg.Search.MinFollowers)
	fmt.Printf("  Max days inactive: %d\n", cfg.Search.MaxDaysInactive)
	fmt.Printf("  Rate limit: %d/hour, %d/day\n", cfg.RateLimit.HourlyLimit, cfg.RateLimit.DailyLimit)
	fmt.Printf("  Output: %s (%s)\n", cfg.Output.BaseName, strings.Join(cfg.Output.Formats, ", "))
	fmt.Printf("  Progress file: %s\n", cfg.Progress.File)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
