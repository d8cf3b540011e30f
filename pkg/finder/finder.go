// Package finder enriches crawl candidates with their blog profile, keeps the
// ones that qualify and drives whole runs theme by theme.
package finder

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

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

// ErrBudgetExhausted ends a run once the governor refuses further calls
var ErrBudgetExhausted = errors.New("call budget exhausted")

// SourcePostContent marks a location found in a blog's posts during the crawl
const SourcePostContent = "post_content"

// ProfileFetcher is the upstream blog info call
type ProfileFetcher interface {
	BlogInfo(ctx context.Context, blog string) (*tumblr.BlogInfo, error)
}

// Crawler runs one theme search
type Crawler interface {
	SearchTheme(ctx context.Context, theme string, maxPosts int) (crawl.Result, error)
}

// ProgressStore persists snapshots
type ProgressStore interface {
	Save(p *checkpoint.Progress) error
}

// restorer is implemented by governors that can resume saved window state
type restorer interface {
	Restore(ratelimit.Status)
}

// Options tunes a Finder
type Options struct {
	MaxPostsPerTheme int
	// SaveEvery saves progress after that many fetched candidates; 0 saves
	// only at the end of each batch.
	SaveEvery      int
	CandidateDelay time.Duration
	RunID          string
}

// Outcome counts what happened to a batch of candidates
type Outcome struct {
	Processed int
	Qualified int
	Skipped   int
	Failed    int
	// Known counts candidates that were already qualified and only gained a theme.
	Known int
}

func (o *Outcome) add(other Outcome) {
	o.Processed += other.Processed
	o.Qualified += other.Qualified
	o.Skipped += other.Skipped
	o.Failed += other.Failed
	o.Known += other.Known
}

// Finder owns the qualified set for one run. It is not safe for concurrent use.
type Finder struct {
	client   ProfileFetcher
	crawler  Crawler
	governor ratelimit.Governor
	matcher  *location.Matcher
	filter   eligibility.Filter
	store    ProgressStore
	observer Observer
	opts     Options
	log      logger.Logger

	pacer     *ratelimit.Pacer
	qualified map[string]*models.Profile
	order     []string
	themes    map[string]models.ThemeSet
}

// New creates a Finder. store and observer may be nil.
func New(client ProfileFetcher, crawler Crawler, governor ratelimit.Governor, matcher *location.Matcher,
	filter eligibility.Filter, store ProgressStore, observer Observer, opts Options, log logger.Logger) *Finder {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Finder{
		client:    client,
		crawler:   crawler,
		governor:  governor,
		matcher:   matcher,
		filter:    filter,
		store:     store,
		observer:  observer,
		opts:      opts,
		log:       log.WithField("component", "finder"),
		pacer:     ratelimit.NewPacer(opts.CandidateDelay),
		qualified: make(map[string]*models.Profile),
		themes:    make(map[string]models.ThemeSet),
	}
}

// Process enriches the candidates of one theme search in first-seen order.
// It returns ErrBudgetExhausted when the governor refuses a fetch; progress
// is saved before returning in every case.
func (f *Finder) Process(ctx context.Context, theme string, res crawl.Result) (Outcome, error) {
	var out Outcome
	log := f.log.WithField("theme", theme)
	total := len(res.Order)

	for i, blog := range res.Order {
		if err := ctx.Err(); err != nil {
			return out, f.finishBatch(err)
		}

		if _, ok := f.qualified[blog]; ok {
			f.themes[blog].Add(theme)
			out.Known++
			continue
		}

		if err := f.pacer.Wait(ctx); err != nil {
			return out, f.finishBatch(err)
		}
		ok, err := f.governor.BeforeCall(ctx)
		if err != nil {
			return out, f.finishBatch(err)
		}
		if !ok {
			log.WithField("remaining", total-i).Warn("Call budget exhausted, stopping enrichment")
			f.finishBatch(nil)
			return out, ErrBudgetExhausted
		}

		info, err := f.client.BlogInfo(ctx, blog)
		f.governor.RecordCall()
		out.Processed++

		switch {
		case err != nil && ctx.Err() != nil:
			return out, f.finishBatch(ctx.Err())
		case err != nil:
			out.Failed++
			log.WithError(err).WithFields(map[string]interface{}{
				"blog":      blog,
				"retryable": apierrors.Retryable(err),
			}).Warn("Failed to fetch blog info, skipping")
		default:
			if f.qualify(theme, blog, res.Candidates[blog], *info) {
				out.Qualified++
			} else {
				out.Skipped++
			}
		}

		status := f.governor.Status()
		f.observer.CandidateProcessed(theme, i+1, total, status)

		if f.opts.SaveEvery > 0 && out.Processed%f.opts.SaveEvery == 0 {
			log.WithFields(map[string]interface{}{
				"processed":    out.Processed,
				"candidates":   total,
				"qualified":    len(f.qualified),
				"hourly_calls": status.HourlyCalls,
				"daily_calls":  status.DailyCalls,
			}).Info("Enrichment progress")
			if err := f.Checkpoint(); err != nil {
				log.WithError(err).Error("Failed to save progress")
			}
		}
	}

	return out, f.finishBatch(nil)
}

// finishBatch saves progress and passes cause through. A save error is
// returned only when there is no other error to report.
func (f *Finder) finishBatch(cause error) error {
	err := f.Checkpoint()
	if err != nil {
		f.log.WithError(err).Error("Failed to save progress")
	}
	if cause != nil {
		return cause
	}
	return err
}

// qualify applies the eligibility and location checks and records the blog
// if both pass
func (f *Finder) qualify(theme, blog string, cand *crawl.Candidate, info tumblr.BlogInfo) bool {
	log := f.log.WithField("blog", blog)

	eligible, last := f.filter.Check(info)
	if !eligible {
		log.Debug("Blog not eligible")
		return false
	}

	match, ok := f.locate(cand, info)
	if !ok {
		log.Debug("No location match")
		return false
	}

	p := &models.Profile{
		BlogName:            blog,
		BlogURL:             info.URL,
		Title:               info.Title,
		Description:         info.Description,
		FollowerCount:       info.FollowerCount(),
		TotalPosts:          info.Posts,
		LocationMatchTerm:   match.Term,
		LocationMatchSource: match.Source,
		BlogTags:            info.Tags,
		ThemeMatched:        theme,
	}
	if last != nil {
		p.LastPostDate = last.Format(models.LastPostDateLayout)
	}
	if p.BlogTags == nil {
		p.BlogTags = []string{}
	}

	f.qualified[blog] = p
	f.order = append(f.order, blog)
	f.themes[blog] = models.NewThemeSet(theme)

	log.WithFields(map[string]interface{}{
		"term":      match.Term,
		"source":    match.Source,
		"followers": p.FollowerCount,
	}).Info("Found qualifying blog")
	f.observer.ProfileQualified(*p)
	return true
}

// locate prefers evidence from the crawl over the profile fields. With
// several evidence entries the one picked is not defined.
func (f *Finder) locate(cand *crawl.Candidate, info tumblr.BlogInfo) (location.Match, bool) {
	if cand != nil {
		if ev, ok := cand.AnyEvidence(); ok {
			return location.Match{Term: ev.Term, Source: SourcePostContent}, true
		}
	}
	return f.matcher.MatchProfile(info)
}

// StopReason says why a run ended
type StopReason int

const (
	Completed StopReason = iota
	BudgetExhausted
	Interrupted
)

func (r StopReason) String() string {
	switch r {
	case Completed:
		return "completed"
	case BudgetExhausted:
		return "budget_exhausted"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// RunSummary is returned by Run whether or not it finished every theme
type RunSummary struct {
	ThemesDone int
	Reason     StopReason
	Posts      int
	Outcome    Outcome
	Qualified  int
	Status     ratelimit.Status
	Duration   time.Duration
}

// Run searches each theme in order and enriches its candidates. It stops
// early when the call budget runs out (returning a nil error) or when ctx is
// cancelled (returning the context error). Progress is saved either way.
func (f *Finder) Run(ctx context.Context, themes []string) (RunSummary, error) {
	start := time.Now()
	var sum RunSummary
	finish := func(reason StopReason, err error) (RunSummary, error) {
		sum.Reason = reason
		sum.Qualified = len(f.qualified)
		sum.Status = f.governor.Status()
		sum.Duration = time.Since(start)
		logger.LogMetrics(f.log, "run", map[string]interface{}{
			"reason":      reason.String(),
			"themes_done": sum.ThemesDone,
			"posts":       sum.Posts,
			"processed":   sum.Outcome.Processed,
			"qualified":   sum.Qualified,
			"total_calls": sum.Status.TotalCalls,
		})
		return sum, err
	}

	logger.LogComponentStart(f.log, "finder", map[string]interface{}{
		"themes":    len(themes),
		"max_posts": f.opts.MaxPostsPerTheme,
		"resumed":   len(f.qualified),
		"run_id":    f.opts.RunID,
	})

	for i, theme := range themes {
		f.observer.ThemeStarted(theme, i+1, len(themes))

		res, err := f.crawler.SearchTheme(ctx, theme, f.opts.MaxPostsPerTheme)
		sum.Posts += res.Posts
		if err != nil {
			f.finishBatch(nil)
			return finish(Interrupted, err)
		}

		out, err := f.Process(ctx, theme, res)
		sum.Outcome.add(out)
		f.observer.ThemeFinished(ThemeSummary{
			Theme:        theme,
			State:        res.State.String(),
			Posts:        res.Posts,
			Candidates:   len(res.Candidates),
			WithLocation: res.WithLocation(),
			Outcome:      out,
		})

		switch {
		case errors.Is(err, ErrBudgetExhausted):
			return finish(BudgetExhausted, nil)
		case err != nil:
			return finish(Interrupted, err)
		}
		sum.ThemesDone++

		if res.State == crawl.BudgetStopped {
			return finish(BudgetExhausted, nil)
		}
	}

	return finish(Completed, nil)
}

// Results returns the qualified profiles in discovery order, each with its
// themes merged into ThemeMatched
func (f *Finder) Results() []models.Profile {
	out := make([]models.Profile, 0, len(f.order))
	for _, blog := range f.order {
		p := *f.qualified[blog]
		p.ThemeMatched = f.themes[blog].Joined()
		out = append(out, p)
	}
	return out
}

// Themes returns the sorted themes a qualified blog was found under
func (f *Finder) Themes(blog string) []string {
	return f.themes[blog].Sorted()
}

// Snapshot captures the qualified set and governor state
func (f *Finder) Snapshot() *checkpoint.Progress {
	p := &checkpoint.Progress{
		DiscoveredBlogs: make(map[string]models.Profile, len(f.qualified)),
		BlogThemes:      make(map[string][]string, len(f.themes)),
		RateLimitStatus: f.governor.Status(),
		RunID:           f.opts.RunID,
	}
	for _, prof := range f.Results() {
		p.DiscoveredBlogs[prof.BlogName] = prof
	}
	for blog, set := range f.themes {
		p.BlogThemes[blog] = set.Sorted()
	}
	return p
}

// Checkpoint saves a snapshot if a store is configured
func (f *Finder) Checkpoint() error {
	if f.store == nil {
		return nil
	}
	return f.store.Save(f.Snapshot())
}

// Restore loads a saved snapshot. Already-qualified blogs are never fetched
// again, and governor counters are only ever raised. Call before Run.
func (f *Finder) Restore(p *checkpoint.Progress) {
	if p == nil {
		return
	}

	names := make([]string, 0, len(p.DiscoveredBlogs))
	for name := range p.DiscoveredBlogs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prof := p.DiscoveredBlogs[name]
		set, ok := f.themes[name]
		if !ok {
			set = models.NewThemeSet()
			f.themes[name] = set
		}
		themes := p.BlogThemes[name]
		if len(themes) == 0 && prof.ThemeMatched != "" {
			themes = strings.Split(prof.ThemeMatched, ", ")
		}
		for _, t := range themes {
			set.Add(t)
		}

		if _, seen := f.qualified[name]; !seen {
			f.order = append(f.order, name)
		}
		prof.BlogName = name
		f.qualified[name] = &prof
	}

	if r, ok := f.governor.(restorer); ok {
		r.Restore(p.RateLimitStatus)
	}
	if f.opts.RunID == "" {
		f.opts.RunID = p.RunID
	}

	f.log.WithFields(map[string]interface{}{
		"blogs":       len(names),
		"total_calls": p.RateLimitStatus.TotalCalls,
		"run_id":      p.RunID,
	}).Info("Resumed from saved progress")
}
