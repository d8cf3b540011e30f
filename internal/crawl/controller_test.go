package crawl

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "tagfinder/pkg/errors"
	"tagfinder/pkg/location"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/ratelimit"
	"tagfinder/pkg/tumblr"
)

type call struct {
	tag    string
	before int64
	limit  int
}

// fakeSearcher serves posts newest first from a fixed timeline
type fakeSearcher struct {
	timeline []tumblr.Post
	calls    []call
	failOn   int
	err      error
}

func (f *fakeSearcher) Tagged(ctx context.Context, tag string, before int64, limit int) ([]tumblr.Post, error) {
	f.calls = append(f.calls, call{tag, before, limit})
	if f.err != nil && len(f.calls) == f.failOn {
		return nil, f.err
	}
	var page []tumblr.Post
	for _, p := range f.timeline {
		if before > 0 && p.Timestamp >= before {
			continue
		}
		page = append(page, p)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func timeline(n int, start int64) []tumblr.Post {
	posts := make([]tumblr.Post, n)
	for i := range posts {
		posts[i] = tumblr.Post{
			ID:        int64(i),
			BlogName:  fmt.Sprintf("blog%d", i%7),
			Timestamp: start - int64(i)*60,
		}
	}
	return posts
}

// budgetGovernor allows a fixed number of calls
type budgetGovernor struct {
	allowed  int
	recorded int
}

func (g *budgetGovernor) BeforeCall(ctx context.Context) (bool, error) {
	return g.recorded < g.allowed, ctx.Err()
}
func (g *budgetGovernor) RecordCall()              { g.recorded++ }
func (g *budgetGovernor) Status() ratelimit.Status { return ratelimit.Status{TotalCalls: g.recorded} }

func newController(src Searcher, gov ratelimit.Governor, opts Options) *Controller {
	return NewController(src, gov, location.NewMatcher([]string{"california", "sf"}), opts, logger.NewNopLogger())
}

func TestSearchThemePaginates(t *testing.T) {
	src := &fakeSearcher{timeline: timeline(50, 1_700_000_000)}
	gov := &ratelimit.NopGovernor{}

	res, err := newController(src, gov, Options{}).SearchTheme(context.Background(), "zine", 45)
	require.NoError(t, err)

	assert.Equal(t, Exhausted, res.State)
	assert.Equal(t, 45, res.Posts)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, src.calls, 3)
	assert.Equal(t, call{"zine", 0, 20}, src.calls[0])
	assert.Equal(t, int64(1_700_000_000-19*60), src.calls[1].before, "cursor is the oldest timestamp so far")
	assert.Equal(t, 5, src.calls[2].limit, "last page is capped by the remaining quota")
	assert.Equal(t, 3, gov.Status().TotalCalls)
	assert.Len(t, res.Candidates, 7)
	assert.Equal(t, "blog0", res.Order[0])
}

func TestSearchThemeShortPageEnds(t *testing.T) {
	src := &fakeSearcher{timeline: timeline(25, 1_700_000_000)}

	res, err := newController(src, &ratelimit.NopGovernor{}, Options{}).SearchTheme(context.Background(), "zine", 500)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.State)
	assert.Equal(t, 25, res.Posts)
	assert.Len(t, src.calls, 2)
}

func TestSearchThemeEmptyFirstPage(t *testing.T) {
	src := &fakeSearcher{}
	res, err := newController(src, &ratelimit.NopGovernor{}, Options{}).SearchTheme(context.Background(), "nothing", 100)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.State)
	assert.Empty(t, res.Candidates)
}

func TestSearchThemeCollectsEvidence(t *testing.T) {
	body := "Living in SF now"
	caption := "<p>sunset over <b>California</b></p>"
	src := &fakeSearcher{timeline: []tumblr.Post{
		{ID: 1, BlogName: "x", Timestamp: 300, Body: &body},
		{ID: 2, BlogName: "x", Timestamp: 200, Caption: &caption},
		{ID: 3, BlogName: "y", Timestamp: 150},
		{ID: 4, Timestamp: 100, Body: &body},
	}}

	res, err := newController(src, &ratelimit.NopGovernor{}, Options{}).SearchTheme(context.Background(), "a", 20)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 2)
	x := res.Candidates["x"]
	assert.Equal(t, map[Evidence]struct{}{
		{Term: "sf", Source: "post_body"}:            {},
		{Term: "california", Source: "post_caption"}: {},
	}, x.Evidence)
	assert.False(t, res.Candidates["y"].HasEvidence(), "blogs without evidence are still candidates")
	assert.Equal(t, 1, res.Malformed)
	assert.Equal(t, 1, res.WithLocation())
}

func TestSearchThemeBudgetStop(t *testing.T) {
	src := &fakeSearcher{timeline: timeline(100, 1_700_000_000)}
	gov := &budgetGovernor{allowed: 2}

	res, err := newController(src, gov, Options{}).SearchTheme(context.Background(), "zine", 100)
	require.NoError(t, err)
	assert.Equal(t, BudgetStopped, res.State)
	assert.Equal(t, 40, res.Posts, "partial results are kept")
	assert.NotEmpty(t, res.Candidates)
	assert.True(t, res.Partial())
}

func TestSearchThemeUpstreamError(t *testing.T) {
	src := &fakeSearcher{
		timeline: timeline(100, 1_700_000_000),
		failOn:   2,
		err:      apierrors.New(apierrors.ErrorTypeServerError, 503, "down"),
	}
	gov := &ratelimit.NopGovernor{}
	tl := logger.NewTestLogger()
	c := NewController(src, gov, location.NewMatcher(location.DefaultGazetteer), Options{}, tl)

	res, err := c.SearchTheme(context.Background(), "zine", 100)
	require.NoError(t, err, "upstream errors are not raised")
	assert.Equal(t, ErrorStopped, res.State)
	assert.Equal(t, 20, res.Posts)
	assert.Error(t, res.Err)
	assert.Equal(t, 2, gov.Status().TotalCalls, "failed calls still count against the budget")
	assert.True(t, tl.HasMessage("Error searching tag"))
}

func TestSearchThemeCancelled(t *testing.T) {
	src := &fakeSearcher{timeline: timeline(100, 1_700_000_000)}
	ctx, cancel := context.WithCancel(context.Background())

	opts := Options{OnPage: func(theme string, posts, blogs, withLocation int) {
		if posts >= 20 {
			cancel()
		}
	}}

	res, err := newController(src, &ratelimit.NopGovernor{}, opts).SearchTheme(ctx, "zine", 100)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cancelled, res.State)
	assert.Equal(t, 20, res.Posts)
}

func TestSearchThemeStalledCursor(t *testing.T) {
	// every post carries the same timestamp, so "before" can never move
	posts := make([]tumblr.Post, 20)
	for i := range posts {
		posts[i] = tumblr.Post{BlogName: "same", Timestamp: 500}
	}
	src := &stuckSearcher{page: posts}

	res, err := newController(src, &ratelimit.NopGovernor{}, Options{}).SearchTheme(context.Background(), "zine", 100)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.State)
	assert.Equal(t, 2, src.calls)
}

type stuckSearcher struct {
	page  []tumblr.Post
	calls int
}

func (s *stuckSearcher) Tagged(ctx context.Context, tag string, before int64, limit int) ([]tumblr.Post, error) {
	s.calls++
	return s.page[:limit], nil
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "budget_stopped", BudgetStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}
