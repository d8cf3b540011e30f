package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagfinder/pkg/checkpoint"
	"tagfinder/pkg/config"
	apierrors "tagfinder/pkg/errors"
	"tagfinder/pkg/finder"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/tumblr"
	"tagfinder/pkg/ui"
)

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }

func recent() *int64 {
	ts := time.Now().AddDate(0, 0, -2).Unix()
	return &ts
}

// fakeTumblr serves one page per tag and a fixed set of blogs
type fakeTumblr struct {
	mu       sync.Mutex
	posts    map[string][]tumblr.Post
	blogs    map[string]*tumblr.BlogInfo
	calls    map[string]int
	onFetch  func(blog string)
	tagCalls int
}

func newFakeTumblr() *fakeTumblr {
	return &fakeTumblr{
		posts: map[string][]tumblr.Post{
			"plants": {
				{ID: 1, BlogName: "moss", Timestamp: 300, Body: strPtr("<p>sunny day in Oakland</p>")},
				{ID: 2, BlogName: "fern", Timestamp: 200, Body: strPtr("repotting")},
				{ID: 3, BlogName: "dust", Timestamp: 100, Caption: strPtr("nothing here")},
			},
		},
		blogs: map[string]*tumblr.BlogInfo{
			"moss": {Name: "moss", URL: "https://moss.tumblr.com/", Title: "moss", Posts: 40, TotalFollowers: intPtr(80), Updated: recent()},
			"fern": {Name: "fern", URL: "https://fern.tumblr.com/", Title: "fern", Description: "plants from the Bay Area", Posts: 12, Followers: intPtr(30), Updated: recent(), Tags: []string{"garden"}},
			"dust": {Name: "dust", URL: "https://dust.tumblr.com/", Title: "dust", Posts: 3, TotalFollowers: intPtr(500), Updated: recent()},
		},
		calls: make(map[string]int),
	}
}

func (f *fakeTumblr) Tagged(ctx context.Context, tag string, before int64, limit int) ([]tumblr.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagCalls++
	if before > 0 {
		return nil, nil
	}
	return f.posts[tag], nil
}

func (f *fakeTumblr) BlogInfo(ctx context.Context, blog string) (*tumblr.BlogInfo, error) {
	f.mu.Lock()
	f.calls[blog]++
	info, ok := f.blogs[blog]
	hook := f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(blog)
	}
	if !ok {
		return nil, apierrors.New(apierrors.ErrorTypeNotFound, 404, "not found")
	}
	return info, nil
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Search.Themes = []string{"plants"}
	cfg.Search.PageDelay = 0
	cfg.Search.CandidateDelay = 0
	cfg.Output.BaseName = filepath.Join(dir, "results")
	cfg.Progress.File = filepath.Join(dir, "progress.json")
	return cfg
}

func newTestScraper(t *testing.T, cfg *config.Config, client TumblrClient, opts ...Option) *Scraper {
	t.Helper()
	ui.Out = io.Discard

	view := ui.NewProgressDisplay(false)
	view.SetOutput(io.Discard)

	opts = append([]Option{
		WithClient(client),
		WithView(view),
		WithLogger(logger.NewTestLogger()),
	}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s
}

func readExport(t *testing.T, path string) []models.Profile {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var profiles []models.Profile
	require.NoError(t, json.Unmarshal(data, &profiles))
	return profiles
}

func TestRunQualifiesAndExports(t *testing.T) {
	cfg := testConfig(t)
	s := newTestScraper(t, cfg, newFakeTumblr())

	report, err := s.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, finder.Completed, report.Summary.Reason)
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Profiles, 2)

	assert.Equal(t, "moss", report.Profiles[0].BlogName)
	assert.Equal(t, "oakland", report.Profiles[0].LocationMatchTerm)
	assert.Equal(t, finder.SourcePostContent, report.Profiles[0].LocationMatchSource)
	assert.Equal(t, "fern", report.Profiles[1].BlogName)
	assert.Equal(t, "bay area", report.Profiles[1].LocationMatchTerm)
	assert.Equal(t, "plants", report.Profiles[1].ThemeMatched)

	assert.ElementsMatch(t, []string{cfg.Output.BaseName + ".json", cfg.Output.BaseName + ".csv"}, report.Exported)
	assert.Len(t, readExport(t, cfg.Output.BaseName+".json"), 2)
	assert.FileExists(t, cfg.Output.BaseName+".csv")

	saved, err := checkpoint.NewManager(cfg.Progress.File, nil)
	require.NoError(t, err)
	p, err := saved.Load()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Len(t, p.DiscoveredBlogs, 2)
	assert.Equal(t, report.RunID, p.RunID)
	assert.Equal(t, 4, p.RateLimitStatus.TotalCalls)
}

func TestResumeNeverRefetchesQualified(t *testing.T) {
	cfg := testConfig(t)
	api := newFakeTumblr()

	first, err := newTestScraper(t, cfg, api).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	second, err := newTestScraper(t, cfg, api).Run(context.Background(), RunOptions{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, 2, second.Resumed)
	assert.Len(t, second.Profiles, 2)
	assert.Equal(t, 1, api.calls["moss"])
	assert.Equal(t, 1, api.calls["fern"])
	// rejected blogs are not remembered
	assert.Equal(t, 2, api.calls["dust"])
	// 4 calls from the first run carried over, plus 1 search and 1 fetch
	assert.Equal(t, 6, second.Summary.Status.TotalCalls)
}

func TestExistingProgressIsBackedUpWithoutResume(t *testing.T) {
	cfg := testConfig(t)
	api := newFakeTumblr()

	_, err := newTestScraper(t, cfg, api).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	report, err := newTestScraper(t, cfg, api).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.FileExists(t, cfg.Progress.File+".backup")
	assert.Zero(t, report.Resumed)
	assert.Equal(t, 2, api.calls["moss"])
}

func TestForceRestartDeletesProgress(t *testing.T) {
	cfg := testConfig(t)
	api := newFakeTumblr()

	first, err := newTestScraper(t, cfg, api).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	second, err := newTestScraper(t, cfg, api).Run(context.Background(), RunOptions{Resume: true, ForceRestart: true})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Zero(t, second.Resumed)
	assert.Equal(t, 2, api.calls["moss"])
}

func TestInterruptExportsPartialResults(t *testing.T) {
	cfg := testConfig(t)
	api := newFakeTumblr()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api.onFetch = func(blog string) {
		if blog == "moss" {
			cancel()
		}
	}

	report, err := newTestScraper(t, cfg, api).Run(ctx, RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.True(t, errors.Is(err, context.Canceled))

	assert.Equal(t, finder.Interrupted, report.Summary.Reason)
	require.Len(t, report.Profiles, 1)
	assert.Equal(t, "moss", report.Profiles[0].BlogName)
	assert.Len(t, readExport(t, cfg.Output.BaseName+".json"), 1)
	assert.FileExists(t, cfg.Progress.File)
	assert.Zero(t, api.calls["fern"])
}

func TestDailyBudgetStopsRunAndNotifies(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.DailyLimit = 13
	cfg.RateLimit.SafetyMargin = 10
	cfg.Notifications.Enabled = true
	api := newFakeTumblr()
	sender := &recordingSender{}

	report, err := newTestScraper(t, cfg, api, WithNotifier(ui.NewNotifierWithSender(sender))).
		Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, finder.BudgetExhausted, report.Summary.Reason)
	assert.Len(t, report.Profiles, 2)
	assert.Zero(t, api.calls["dust"])
	assert.Equal(t, 3, report.Summary.Status.DailyCalls)
	assert.Equal(t, []string{"Daily limit reached", "Search stopped at daily limit"}, sender.titles)
}

func TestDisabledRateLimitUsesNopGovernor(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Enabled = false
	s := newTestScraper(t, cfg, newFakeTumblr())

	report, err := s.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Summary.Status.HourlyLimit)
	assert.Equal(t, 4, report.Summary.Status.TotalCalls)
}

func TestNothingQualifiedWritesNoExport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.MinFollowers = 10000
	report, err := newTestScraper(t, cfg, newFakeTumblr()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Empty(t, report.Profiles)
	assert.Empty(t, report.Exported)
	assert.NoFileExists(t, cfg.Output.BaseName+".json")
}
