package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tagfinder/pkg/auth"
	"tagfinder/pkg/config"
	"tagfinder/pkg/finder"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/scraper"
	"tagfinder/pkg/ui"
	"tagfinder/pkg/ui/tui"
)

var (
	// Search command flags
	themes           string
	outputBase       string
	maxPostsPerTheme int
	minFollowers     int
	maxDaysInactive  int
	hourlyLimit      int
	dailyLimit       int
	noRateLimit      bool
	resumeRun        bool
	forceRestart     bool
	progressFile     string
	formats          string
	accountName      string
	useTUI           bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search themes for blogs in the target region",
	Long: `Search Tumblr tags for blogs and keep those that mention the target region.

For every theme the tagged-post search is paged until the post cap is reached
or the tag runs dry. Each blog found is then checked once: it must meet the
follower and activity thresholds and mention a location, either in one of its
posts or in its profile.

Credentials are taken from, in order:
  - the account named with --account
  - the configuration file or TUMBLR_* environment variables
  - the default stored account (see 'tagfinder auth')

Progress is saved as the run goes. After an interrupt or when the daily
budget runs out, continue with --resume.`,
	Example: `  # Search the default themes
  tagfinder search

  # Search two themes with a higher follower threshold
  tagfinder search --themes "film photography,zine" --min-followers 100

  # Continue yesterday's run
  tagfinder search --resume

  # Write SQLite as well, watching the dashboard
  tagfinder search --format json,csv,sqlite --tui`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	addSearchFlags(searchCmd)
}

// addSearchFlags registers the search flags; the root command carries them
// too so a bare 'tagfinder --resume' works
func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&themes, "themes", "", "comma-separated themes to search (default: built-in list)")
	f.StringVarP(&outputBase, "output", "o", "", "output file base name (default: results)")
	f.IntVar(&maxPostsPerTheme, "max-posts-per-theme", 500, "maximum posts to scan per theme")
	f.IntVar(&minFollowers, "min-followers", 10, "minimum follower count")
	f.IntVar(&maxDaysInactive, "max-days-inactive", 90, "maximum days since the last post")
	f.IntVar(&hourlyLimit, "hourly-limit", 1000, "API calls allowed per hour")
	f.IntVar(&dailyLimit, "daily-limit", 5000, "API calls allowed per day")
	f.BoolVar(&noRateLimit, "no-rate-limit", false, "do not budget API calls")
	f.BoolVar(&resumeRun, "resume", false, "resume from the saved progress file")
	f.BoolVar(&forceRestart, "force-restart", false, "delete saved progress and start over")
	f.StringVar(&progressFile, "progress-file", "", "progress file path (default: search_progress.json)")
	f.StringVar(&formats, "format", "", "comma-separated export formats: json, csv, sqlite, postgres")
	f.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	f.BoolVar(&useTUI, "tui", false, "show the full-screen dashboard")
}

// searchFlags maps the flags the user set onto config keys. Unset flags are
// left out so the config file and environment keep precedence over defaults.
func searchFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	f := cmd.Flags()

	strs := map[string]*string{
		"themes":        &themes,
		"output":        &outputBase,
		"progress-file": &progressFile,
		"format":        &formats,
	}
	for name, v := range strs {
		if f.Changed(name) {
			flags[name] = *v
		}
	}

	ints := map[string]*int{
		"max-posts-per-theme": &maxPostsPerTheme,
		"min-followers":       &minFollowers,
		"max-days-inactive":   &maxDaysInactive,
		"hourly-limit":        &hourlyLimit,
		"daily-limit":         &dailyLimit,
	}
	for name, v := range ints {
		if f.Changed(name) {
			flags[name] = *v
		}
	}

	for name, v := range map[string]*bool{"no-rate-limit": &noRateLimit, "resume": &resumeRun} {
		if f.Changed(name) {
			flags[name] = *v
		}
	}
	return flags
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(searchFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return errSilent
	}
	log := logger.GetLogger()

	if err := resolveCredentials(cfg); err != nil {
		ui.PrintError("Missing Tumblr credentials", err)
		fmt.Println("\nStore credentials with:")
		fmt.Println("  tagfinder auth oauth")
		auth.ShowEnvHint()
		return errSilent
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := scraper.RunOptions{Resume: cfg.Progress.Resume, ForceRestart: forceRestart}

	var report *scraper.Report
	if useTUI {
		report, err = searchWithDashboard(ctx, cancel, cfg, opts)
	} else {
		ui.PrintInfo("Themes", fmt.Sprintf("%d", len(cfg.Search.Themes)))
		ui.PrintInfo("Thresholds", fmt.Sprintf("%d followers, active within %d days", cfg.Search.MinFollowers, cfg.Search.MaxDaysInactive))
		var s *scraper.Scraper
		s, err = scraper.New(cfg)
		if err == nil {
			report, err = s.Run(ctx, opts)
		}
	}

	if report != nil {
		printReport(report)
	}
	switch {
	case errors.Is(err, scraper.ErrInterrupted):
		log.Warn("Run interrupted, progress saved")
		ui.PrintWarning("Interrupted. Continue with", "tagfinder search --resume")
		return errSilent
	case err != nil:
		log.WithError(err).Error("Search failed")
		return err
	}
	return nil
}

// searchWithDashboard runs the search behind the full-screen dashboard. Logs
// are dropped unless a log file is configured, since the console belongs to
// the dashboard.
func searchWithDashboard(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, opts scraper.RunOptions) (*scraper.Report, error) {
	if cfg.Logging.File == "" {
		cfg.Logging.Level = "disabled"
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}

	out := ui.Out
	ui.Out = io.Discard
	defer func() { ui.Out = out }()

	dash := tui.NewTUI(cancel)
	s, err := scraper.New(cfg, scraper.WithView(dash))
	if err != nil {
		return nil, err
	}

	type result struct {
		report *scraper.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := s.Run(ctx, opts)
		if ctx.Err() != nil {
			dash.Stop()
		} else if err != nil {
			dash.LogError("%v", err)
		}
		done <- result{report, err}
	}()

	if err := dash.Start(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("dashboard failed: %w", err)
	}

	// the dashboard stays up after the run until the user quits, and quitting
	// early cancels the run
	res := <-done
	if res.report != nil {
		view := ui.NewProgressDisplay(false)
		view.SetOutput(out)
		view.Finish(res.report.Summary)
	}
	return res.report, res.err
}

// resolveCredentials fills cfg.Tumblr from the credential store when the
// config and environment did not provide a complete set
func resolveCredentials(cfg *config.Config) error {
	if accountName == "" && cfg.ValidateCredentials() == nil {
		logger.Info("Using credentials from configuration")
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q: %w (see 'tagfinder auth list')", accountName, err)
		}
	} else if account, err = manager.RetrieveDefault(); err != nil {
		return cfg.ValidateCredentials()
	}

	cfg.Tumblr.ConsumerKey = account.ConsumerKey
	cfg.Tumblr.ConsumerSecret = account.ConsumerSecret
	cfg.Tumblr.OAuthToken = account.Token
	cfg.Tumblr.OAuthSecret = account.TokenSecret
	logger.WithField("account", account.Name).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Name)

	return cfg.ValidateCredentials()
}

func printReport(r *scraper.Report) {
	fmt.Fprintln(ui.Out)
	ui.PrintInfo("Run", r.RunID)
	if r.Resumed > 0 {
		ui.PrintInfo("Resumed with", fmt.Sprintf("%d qualified blogs", r.Resumed))
	}
	ui.PrintInfo("Progress saved to", r.ProgressFile)
	for _, dest := range r.Exported {
		ui.PrintInfo("Exported", dest)
	}
	switch r.Summary.Reason {
	case finder.Completed:
		ui.PrintSuccess(fmt.Sprintf("Search complete: %d qualified blogs", len(r.Profiles)))
	case finder.BudgetExhausted:
		ui.PrintWarning(fmt.Sprintf("Daily budget reached with %d qualified blogs. Continue tomorrow with", len(r.Profiles)),
			"tagfinder search --resume")
	}
}
