package finder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagfinder/internal/crawl"
	"tagfinder/pkg/checkpoint"
	"tagfinder/pkg/eligibility"
	apierrors "tagfinder/pkg/errors"
	"tagfinder/pkg/location"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
	"tagfinder/pkg/tumblr"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func updatedDaysAgo(days int) *int64 {
	ts := now.AddDate(0, 0, -days).Unix()
	return &ts
}

// info builds a blog that passes the default thresholds
func info(name string) *tumblr.BlogInfo {
	return &tumblr.BlogInfo{
		Name:           name,
		URL:            "https://" + name + ".tumblr.com/",
		Title:          name,
		Posts:          120,
		TotalFollowers: intPtr(50),
		Updated:        updatedDaysAgo(3),
		Tags:           []string{"film"},
	}
}

type fakeFetcher struct {
	blogs map[string]*tumblr.BlogInfo
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) BlogInfo(ctx context.Context, blog string) (*tumblr.BlogInfo, error) {
	f.calls = append(f.calls, blog)
	if err, ok := f.errs[blog]; ok {
		return nil, err
	}
	if b, ok := f.blogs[blog]; ok {
		return b, nil
	}
	return nil, apierrors.New(apierrors.ErrorTypeNotFound, 404, "no such blog")
}

type fakeCrawler struct {
	results map[string]crawl.Result
	err     error
	themes  []string
}

func (c *fakeCrawler) SearchTheme(ctx context.Context, theme string, maxPosts int) (crawl.Result, error) {
	c.themes = append(c.themes, theme)
	if c.err != nil {
		return crawl.Result{Theme: theme, State: crawl.Cancelled}, c.err
	}
	res, ok := c.results[theme]
	if !ok {
		return crawl.Result{Theme: theme, Candidates: map[string]*crawl.Candidate{}, State: crawl.Exhausted}, nil
	}
	return res, nil
}

type memStore struct {
	saves []*checkpoint.Progress
}

func (m *memStore) Save(p *checkpoint.Progress) error {
	m.saves = append(m.saves, p)
	return nil
}

func (m *memStore) last() *checkpoint.Progress {
	if len(m.saves) == 0 {
		return nil
	}
	return m.saves[len(m.saves)-1]
}

// allowance lets n calls through and then denies
type allowance struct {
	left     int
	recorded int
}

func (a *allowance) BeforeCall(ctx context.Context) (bool, error) {
	if a.left <= 0 {
		return false, nil
	}
	a.left--
	return true, nil
}
func (a *allowance) RecordCall()              { a.recorded++ }
func (a *allowance) Status() ratelimit.Status { return ratelimit.Status{TotalCalls: a.recorded} }

// result builds a crawl result; evidence maps blog -> terms found in posts
func result(theme string, blogs []string, evidence map[string][]string) crawl.Result {
	res := crawl.Result{Theme: theme, Candidates: map[string]*crawl.Candidate{}, State: crawl.Exhausted}
	for _, b := range blogs {
		c := &crawl.Candidate{BlogID: b, Evidence: map[crawl.Evidence]struct{}{}}
		for _, term := range evidence[b] {
			c.Add(crawl.Evidence{Term: term, Source: "post_body"})
		}
		res.Candidates[b] = c
		res.Order = append(res.Order, b)
	}
	return res
}

type harness struct {
	fetcher  *fakeFetcher
	crawler  *fakeCrawler
	store    *memStore
	governor ratelimit.Governor
	finder   *Finder
	log      *logger.TestLogger
}

func newHarness(gov ratelimit.Governor, opts Options) *harness {
	if gov == nil {
		gov = &ratelimit.NopGovernor{}
	}
	h := &harness{
		fetcher:  &fakeFetcher{blogs: map[string]*tumblr.BlogInfo{}, errs: map[string]error{}},
		crawler:  &fakeCrawler{results: map[string]crawl.Result{}},
		store:    &memStore{},
		governor: gov,
		log:      logger.NewTestLogger(),
	}
	filter := eligibility.Filter{MinFollowers: 10, MaxInactiveDays: 90, Now: func() time.Time { return now }}
	matcher := location.NewMatcher([]string{"brooklyn", "new york", "queens"})
	h.finder = New(h.fetcher, h.crawler, gov, matcher, filter, h.store, nil, opts, h.log)
	return h
}

func TestProcessUsesPostEvidence(t *testing.T) {
	h := newHarness(nil, Options{})
	h.fetcher.blogs["alpha"] = info("alpha")

	out, err := h.finder.Process(context.Background(), "photography",
		result("photography", []string{"alpha"}, map[string][]string{"alpha": {"queens"}}))
	require.NoError(t, err)
	assert.Equal(t, Outcome{Processed: 1, Qualified: 1}, out)

	got := h.finder.Results()
	require.Len(t, got, 1)
	assert.Equal(t, "alpha", got[0].BlogName)
	assert.Equal(t, "queens", got[0].LocationMatchTerm)
	assert.Equal(t, SourcePostContent, got[0].LocationMatchSource)
	assert.Equal(t, now.AddDate(0, 0, -3).Format(models.LastPostDateLayout), got[0].LastPostDate)
	assert.Equal(t, 50, got[0].FollowerCount)
	assert.Equal(t, "photography", got[0].ThemeMatched)
}

func TestProcessFallsBackToProfile(t *testing.T) {
	h := newHarness(nil, Options{})
	b := info("beta")
	b.Description = "Shooting film around New York"
	h.fetcher.blogs["beta"] = b

	_, err := h.finder.Process(context.Background(), "film", result("film", []string{"beta"}, nil))
	require.NoError(t, err)

	got := h.finder.Results()
	require.Len(t, got, 1)
	assert.Equal(t, "new york", got[0].LocationMatchTerm)
	assert.Equal(t, "description", got[0].LocationMatchSource)
}

func TestProcessSkipsAndFailures(t *testing.T) {
	gov := &allowance{left: 100}
	h := newHarness(gov, Options{})

	lowFollowers := info("few")
	lowFollowers.TotalFollowers = intPtr(3)
	lowFollowers.Description = "brooklyn"
	h.fetcher.blogs["few"] = lowFollowers

	stale := info("stale")
	stale.Updated = updatedDaysAgo(91)
	stale.Description = "brooklyn"
	h.fetcher.blogs["stale"] = stale

	h.fetcher.blogs["nowhere"] = info("nowhere")
	h.fetcher.errs["broken"] = apierrors.New(apierrors.ErrorTypeServerError, 500, "boom")

	ok := info("ok")
	ok.Title = "Brooklyn daily"
	h.fetcher.blogs["ok"] = ok

	out, err := h.finder.Process(context.Background(), "art",
		result("art", []string{"few", "stale", "nowhere", "broken", "ok"}, nil))
	require.NoError(t, err)

	assert.Equal(t, Outcome{Processed: 5, Qualified: 1, Skipped: 3, Failed: 1}, out)
	assert.Equal(t, 5, gov.recorded, "every attempted fetch is recorded, failures included")
	assert.True(t, h.log.HasMessage("Failed to fetch blog info, skipping"))

	got := h.finder.Results()
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].BlogName)
	assert.Equal(t, "title", got[0].LocationMatchSource)
}

func TestTwoThemesDeduplicate(t *testing.T) {
	h := newHarness(nil, Options{})
	h.fetcher.blogs["alpha"] = info("alpha")

	ev := map[string][]string{"alpha": {"brooklyn"}}
	_, err := h.finder.Process(context.Background(), "zines", result("zines", []string{"alpha"}, ev))
	require.NoError(t, err)
	out, err := h.finder.Process(context.Background(), "art", result("art", []string{"alpha"}, ev))
	require.NoError(t, err)

	assert.Equal(t, Outcome{Known: 1}, out)
	assert.Equal(t, []string{"alpha"}, h.fetcher.calls, "a qualified blog is fetched once")

	got := h.finder.Results()
	require.Len(t, got, 1)
	assert.Equal(t, "art, zines", got[0].ThemeMatched)
	assert.Equal(t, []string{"art", "zines"}, h.finder.Themes("alpha"))
}

func TestProcessBudgetExhausted(t *testing.T) {
	gov := &allowance{left: 1}
	h := newHarness(gov, Options{})
	h.fetcher.blogs["a"] = info("a")
	h.fetcher.blogs["b"] = info("b")

	out, err := h.finder.Process(context.Background(), "t",
		result("t", []string{"a", "b"}, map[string][]string{"a": {"queens"}, "b": {"queens"}}))
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 1, out.Qualified)
	assert.Equal(t, []string{"a"}, h.fetcher.calls)

	require.NotNil(t, h.store.last(), "progress is saved when the budget runs out")
	assert.Contains(t, h.store.last().DiscoveredBlogs, "a")
}

func TestProcessSavesPeriodically(t *testing.T) {
	h := newHarness(nil, Options{SaveEvery: 2})
	blogs := []string{"a", "b", "c", "d", "e"}
	for _, b := range blogs {
		h.fetcher.blogs[b] = info(b)
	}

	_, err := h.finder.Process(context.Background(), "t", result("t", blogs, nil))
	require.NoError(t, err)
	// after 2 and 4, then once at the end
	assert.Len(t, h.store.saves, 3)
}

func TestProcessCancelled(t *testing.T) {
	h := newHarness(nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.finder.Process(ctx, "t", result("t", []string{"a"}, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.fetcher.calls)
	assert.Len(t, h.store.saves, 1)
}

type stillClock struct{ t time.Time }

func (c stillClock) Now() time.Time                                   { return c.t }
func (c stillClock) Sleep(ctx context.Context, d time.Duration) error { return nil }

func TestRestoreNeverRequalifies(t *testing.T) {
	gov := ratelimit.NewWindowGovernor(ratelimit.DefaultLimits(), stillClock{now}, nil)
	gov.RecordCall()
	gov.RecordCall()
	h := newHarness(gov, Options{})
	h.fetcher.blogs["alpha"] = info("alpha")
	h.fetcher.blogs["beta"] = info("beta")

	saved := &checkpoint.Progress{
		DiscoveredBlogs: map[string]models.Profile{
			"alpha": {BlogName: "alpha", LocationMatchTerm: "queens", LocationMatchSource: "title", ThemeMatched: "zines"},
		},
		BlogThemes:      map[string][]string{"alpha": {"zines"}},
		RateLimitStatus: ratelimit.Status{HourlyCalls: 1, DailyCalls: 40, TotalCalls: 40, HourStart: now, DayStart: now},
		RunID:           "saved-run",
	}
	h.finder.Restore(saved)

	status := gov.Status()
	assert.Equal(t, 2, status.HourlyCalls, "restoring a lower count keeps the higher one")
	assert.Equal(t, 40, status.DailyCalls)

	ev := map[string][]string{"alpha": {"brooklyn"}, "beta": {"brooklyn"}}
	_, err := h.finder.Process(context.Background(), "art", result("art", []string{"alpha", "beta"}, ev))
	require.NoError(t, err)

	assert.Equal(t, []string{"beta"}, h.fetcher.calls)
	got := h.finder.Results()
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].BlogName)
	assert.Equal(t, "queens", got[0].LocationMatchTerm, "restored profile is kept as saved")
	assert.Equal(t, "art, zines", got[0].ThemeMatched)

	snap := h.finder.Snapshot()
	assert.Equal(t, "saved-run", snap.RunID)
	assert.Equal(t, []string{"art", "zines"}, snap.BlogThemes["alpha"])
	assert.Equal(t, 41, snap.RateLimitStatus.TotalCalls)
}

func TestRestoreDerivesThemesFromProfile(t *testing.T) {
	h := newHarness(nil, Options{})
	h.finder.Restore(&checkpoint.Progress{
		DiscoveredBlogs: map[string]models.Profile{"x": {ThemeMatched: "a, b"}},
	})
	assert.Equal(t, []string{"a", "b"}, h.finder.Themes("x"))
	assert.Equal(t, "x", h.finder.Results()[0].BlogName)
}

type recordingObserver struct {
	NopObserver
	started   []string
	finished  []ThemeSummary
	qualified []string
}

func (r *recordingObserver) ThemeStarted(theme string, index, total int) {
	r.started = append(r.started, theme)
}
func (r *recordingObserver) ThemeFinished(s ThemeSummary) { r.finished = append(r.finished, s) }
func (r *recordingObserver) ProfileQualified(p models.Profile) {
	r.qualified = append(r.qualified, p.BlogName)
}

func TestRunCompletes(t *testing.T) {
	h := newHarness(nil, Options{MaxPostsPerTheme: 50})
	obs := &recordingObserver{}
	h.finder.observer = obs
	h.fetcher.blogs["a"] = info("a")
	h.fetcher.blogs["b"] = info("b")
	h.crawler.results["one"] = result("one", []string{"a"}, map[string][]string{"a": {"queens"}})
	h.crawler.results["two"] = result("two", []string{"a", "b"}, map[string][]string{"b": {"brooklyn"}})

	sum, err := h.finder.Run(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, Completed, sum.Reason)
	assert.Equal(t, 2, sum.ThemesDone)
	assert.Equal(t, 2, sum.Qualified)
	assert.Equal(t, 1, sum.Outcome.Known)

	assert.Equal(t, []string{"one", "two"}, obs.started)
	assert.Equal(t, []string{"a", "b"}, obs.qualified)
	require.Len(t, obs.finished, 2)
	assert.Equal(t, "exhausted", obs.finished[1].State)

	got := h.finder.Results()
	assert.Equal(t, "one, two", got[0].ThemeMatched)
	assert.Equal(t, "two", got[1].ThemeMatched)
}

func TestRunStopsWhenCrawlBudgetStops(t *testing.T) {
	h := newHarness(nil, Options{})
	stopped := result("one", nil, nil)
	stopped.State = crawl.BudgetStopped
	h.crawler.results["one"] = stopped

	sum, err := h.finder.Run(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, BudgetExhausted, sum.Reason)
	assert.Equal(t, []string{"one"}, h.crawler.themes)
}

func TestRunStopsWhenEnrichmentBudgetRunsOut(t *testing.T) {
	h := newHarness(&allowance{left: 0}, Options{})
	h.crawler.results["one"] = result("one", []string{"a"}, nil)

	sum, err := h.finder.Run(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, BudgetExhausted, sum.Reason)
	assert.Equal(t, 0, sum.ThemesDone)
	assert.Equal(t, []string{"one"}, h.crawler.themes)
}

func TestRunContinuesAfterCrawlError(t *testing.T) {
	h := newHarness(nil, Options{})
	failed := result("one", nil, nil)
	failed.State = crawl.ErrorStopped
	failed.Err = errors.New("503")
	h.crawler.results["one"] = failed

	sum, err := h.finder.Run(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, Completed, sum.Reason)
	assert.Equal(t, []string{"one", "two"}, h.crawler.themes)
}

func TestRunInterrupted(t *testing.T) {
	h := newHarness(nil, Options{})
	h.crawler.err = context.Canceled

	sum, err := h.finder.Run(context.Background(), []string{"one"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Interrupted, sum.Reason)
	assert.NotEmpty(t, h.store.saves, "progress is saved on interruption")
}
