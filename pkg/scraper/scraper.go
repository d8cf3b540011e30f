package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tagfinder/internal/crawl"
	"tagfinder/pkg/checkpoint"
	"tagfinder/pkg/config"
	"tagfinder/pkg/eligibility"
	"tagfinder/pkg/export"
	"tagfinder/pkg/finder"
	"tagfinder/pkg/location"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
	"tagfinder/pkg/tumblr"
	"tagfinder/pkg/ui"
)

// ErrInterrupted is returned when the run was cancelled. Progress is saved
// and partial results are exported before it is returned.
var ErrInterrupted = errors.New("run interrupted")

// Scraper runs configured searches
type Scraper struct {
	config   *config.Config
	client   TumblrClient
	governor ratelimit.Governor
	progress *checkpoint.Manager
	view     ui.RunView
	notifier *ui.Notifier
	clock    ratelimit.Clock
	logger   logger.Logger
}

// Option customizes a Scraper
type Option func(*Scraper)

// WithClient replaces the signed API client, e.g. with a fake
func WithClient(c TumblrClient) Option {
	return func(s *Scraper) { s.client = c }
}

// WithView sets where run progress is reported. The default prints to stdout.
func WithView(v ui.RunView) Option {
	return func(s *Scraper) { s.view = v }
}

func WithNotifier(n *ui.Notifier) Option {
	return func(s *Scraper) { s.notifier = n }
}

// WithClock sets the governor's clock
func WithClock(c ratelimit.Clock) Option {
	return func(s *Scraper) { s.clock = c }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// RunOptions control how a run treats an existing progress file
type RunOptions struct {
	// Resume loads the progress file. Without it an existing file is backed
	// up and overwritten.
	Resume bool
	// ForceRestart deletes the progress file first.
	ForceRestart bool
}

// Report describes a finished run
type Report struct {
	RunID        string
	Resumed      int
	Summary      finder.RunSummary
	Profiles     []models.Profile
	Exported     []string
	ProgressFile string
}

// New wires a Scraper from cfg. Credentials are expected to be validated.
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	s := &Scraper{config: cfg}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	if s.view == nil {
		s.view = ui.NewProgressDisplay(strings.EqualFold(cfg.Logging.Level, "debug"))
	}
	if s.notifier == nil {
		s.notifier = ui.NewNotifier(cfg.Notifications.Enabled)
	}
	if s.client == nil {
		s.client = newClient(cfg, s.logger)
	}

	progress, err := checkpoint.NewManager(cfg.Progress.File, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress manager: %w", err)
	}
	s.progress = progress
	s.governor = s.newGovernor()

	return s, nil
}

func newClient(cfg *config.Config, log logger.Logger) *tumblr.Client {
	opts := []tumblr.Option{
		tumblr.WithBaseURL(cfg.Tumblr.BaseURL),
		tumblr.WithUserAgent(cfg.Tumblr.UserAgent),
	}
	if cfg.RateLimit.BurstPerMinute > 0 {
		opts = append(opts, tumblr.WithLimiter(ratelimit.NewSlidingWindow(cfg.RateLimit.BurstPerMinute, time.Minute)))
	}
	creds := tumblr.Credentials{
		ConsumerKey:    cfg.Tumblr.ConsumerKey,
		ConsumerSecret: cfg.Tumblr.ConsumerSecret,
		Token:          cfg.Tumblr.OAuthToken,
		TokenSecret:    cfg.Tumblr.OAuthSecret,
	}
	return tumblr.NewClient(creds, cfg.Tumblr.Timeout, log, opts...)
}

func (s *Scraper) newGovernor() ratelimit.Governor {
	rl := s.config.RateLimit
	if !rl.Enabled {
		s.logger.Warn("Rate limiting disabled; calls are not budgeted")
		return &ratelimit.NopGovernor{}
	}

	g := ratelimit.NewWindowGovernor(ratelimit.Limits{
		Hourly:       rl.HourlyLimit,
		Daily:        rl.DailyLimit,
		SafetyMargin: rl.SafetyMargin,
		WaitBuffer:   rl.WaitBuffer,
	}, s.clock, s.logger)
	g.OnEvent(s.onRateEvent)
	return g
}

func (s *Scraper) onRateEvent(e ratelimit.Event) {
	s.view.RateEvent(e)
	if n := s.config.Notifications; !n.Enabled || !n.OnRateLimit {
		return
	}
	switch e.Kind {
	case ratelimit.EventHourPause:
		s.notifier.SendNotification("Hourly limit reached", fmt.Sprintf("Pausing until %s", e.Until.Format("15:04")))
	case ratelimit.EventDayExhausted:
		s.notifier.SendError("Daily limit reached", "Progress saved. Resume tomorrow with --resume.")
	}
}

// ProgressPath is where the run saves its progress
func (s *Scraper) ProgressPath() string {
	return s.progress.Path()
}

// Governor exposes the call budget, mostly for status output
func (s *Scraper) Governor() ratelimit.Governor {
	return s.governor
}

// loadProgress applies the resume and restart options. It returns the saved
// progress to restore, or nil for a fresh run.
func (s *Scraper) loadProgress(opts RunOptions) (*checkpoint.Progress, error) {
	switch {
	case opts.ForceRestart:
		if s.progress.Exists() {
			if err := s.progress.Delete(); err != nil {
				return nil, fmt.Errorf("failed to delete progress file: %w", err)
			}
			s.logger.WithField("path", s.progress.Path()).Info("Force restart, progress file deleted")
		}
		return nil, nil

	case opts.Resume:
		saved, err := s.progress.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load progress: %w", err)
		}
		if saved == nil {
			s.logger.Info("No progress file found, starting fresh")
		}
		return saved, nil

	case s.progress.Exists():
		if err := s.progress.Backup(); err != nil {
			s.logger.WithError(err).Warn("Failed to back up existing progress file")
		}
		s.logger.WithField("path", s.progress.Path()).Warn("Existing progress will be overwritten; use --resume to continue it")
	}
	return nil, nil
}

// Run searches every configured theme. It returns ErrInterrupted (wrapping
// the context error) when ctx is cancelled; the report is filled in either way.
func (s *Scraper) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	cfg := s.config

	saved, err := s.loadProgress(opts)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString(), ProgressFile: s.progress.Path()}
	if saved != nil && saved.RunID != "" {
		report.RunID = saved.RunID
	}
	log := s.logger.WithField("run_id", report.RunID)

	terms := cfg.Location.Terms
	if len(terms) == 0 {
		terms = location.DefaultGazetteer
	}
	matcher := location.NewMatcher(terms)

	crawler := crawl.NewController(s.client, s.governor, matcher, crawl.Options{
		PageSize:  cfg.Search.PageSize,
		PageDelay: cfg.Search.PageDelay,
		OnPage:    s.view.PageFetched,
	}, log)

	filter := eligibility.Filter{
		MinFollowers:    cfg.Search.MinFollowers,
		MaxInactiveDays: cfg.Search.MaxDaysInactive,
	}

	f := finder.New(s.client, crawler, s.governor, matcher, filter, s.progress, s.view, finder.Options{
		MaxPostsPerTheme: cfg.Search.MaxPostsPerTheme,
		SaveEvery:        cfg.Search.SaveEvery,
		CandidateDelay:   cfg.Search.CandidateDelay,
		RunID:            report.RunID,
	}, log)

	if saved != nil {
		f.Restore(saved)
		report.Resumed = len(saved.DiscoveredBlogs)
		if pd, ok := s.view.(*ui.ProgressDisplay); ok {
			pd.Tracker().SetResumed(report.Resumed)
		}
		log.WithFields(map[string]interface{}{
			"qualified":   report.Resumed,
			"daily_calls": saved.RateLimitStatus.DailyCalls,
			"saved_at":    saved.Timestamp,
		}).Info("Resumed from saved progress")
	}

	log.WithFields(map[string]interface{}{
		"themes":        len(cfg.Search.Themes),
		"min_followers": cfg.Search.MinFollowers,
		"max_inactive":  cfg.Search.MaxDaysInactive,
		"terms":         len(matcher.Terms()),
	}).Info("Starting search")

	summary, runErr := f.Run(ctx, cfg.Search.Themes)
	report.Summary = summary
	report.Profiles = f.Results()
	s.view.Finish(summary)
	s.notifyFinished(summary)

	// an interrupted run still exports what it has
	exported, exportErr := export.Run(context.WithoutCancel(ctx), cfg.Output.Formats, cfg.Output.BaseName,
		report.Profiles, export.Options{SQLitePath: cfg.Output.SQLitePath, PostgresDSN: cfg.Output.PostgresDSN}, log)
	report.Exported = exported

	switch {
	case summary.Reason == finder.Interrupted:
		if runErr == nil {
			runErr = ctx.Err()
		}
		return report, errors.Join(fmt.Errorf("%w: %w", ErrInterrupted, runErr), exportErr)
	case runErr != nil:
		return report, errors.Join(runErr, exportErr)
	case exportErr != nil:
		return report, exportErr
	}
	return report, nil
}

func (s *Scraper) notifyFinished(sum finder.RunSummary) {
	if n := s.config.Notifications; !n.Enabled || !n.OnComplete {
		return
	}
	msg := fmt.Sprintf("%d qualified blogs, %d API calls", sum.Qualified, sum.Status.TotalCalls)
	switch sum.Reason {
	case finder.Completed:
		s.notifier.SendSuccess("Search complete", msg)
	case finder.BudgetExhausted:
		s.notifier.SendNotification("Search stopped at daily limit", msg)
	}
}
