// Package crawl pages through the tagged-post search for one theme at a time
// and collects candidate blogs with any location evidence found in posts.
package crawl

import (
	"context"
	"time"

	apierrors "tagfinder/pkg/errors"
	"tagfinder/pkg/location"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/ratelimit"
	"tagfinder/pkg/tumblr"
)

// Searcher is the upstream tagged-search call
type Searcher interface {
	Tagged(ctx context.Context, tag string, before int64, limit int) ([]tumblr.Post, error)
}

// Options tunes pagination
type Options struct {
	// PageSize caps each request; values outside 1..20 mean 20.
	PageSize int
	// PageDelay is the courtesy delay between consecutive pages.
	PageDelay time.Duration
	// OnPage is called after every page with the running totals.
	OnPage func(theme string, posts, blogs, withLocation int)
}

// Controller runs theme searches. All upstream calls go through the governor.
type Controller struct {
	source   Searcher
	governor ratelimit.Governor
	matcher  *location.Matcher
	opts     Options
	log      logger.Logger
}

func NewController(source Searcher, governor ratelimit.Governor, matcher *location.Matcher, opts Options, log logger.Logger) *Controller {
	if opts.PageSize <= 0 || opts.PageSize > tumblr.MaxPageSize {
		opts.PageSize = tumblr.MaxPageSize
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Controller{
		source:   source,
		governor: governor,
		matcher:  matcher,
		opts:     opts,
		log:      log.WithField("component", "crawl"),
	}
}

// SearchTheme collects up to maxPosts posts for theme. Budget denial and
// upstream errors end the search early without an error; partial results are
// always returned. Only cancellation returns a non-nil error.
func (c *Controller) SearchTheme(ctx context.Context, theme string, maxPosts int) (Result, error) {
	res := newResult(theme)
	log := c.log.WithField("theme", theme)
	log.Info("Searching theme")

	pacer := ratelimit.NewPacer(c.opts.PageDelay)
	var before int64

	for res.Posts < maxPosts {
		if err := pacer.Wait(ctx); err != nil {
			return res.stop(Cancelled), err
		}

		ok, err := c.governor.BeforeCall(ctx)
		if err != nil {
			return res.stop(Cancelled), err
		}
		if !ok {
			log.Warn("Call budget exhausted, stopping search")
			return res.stop(BudgetStopped), nil
		}

		limit := min(c.opts.PageSize, maxPosts-res.Posts)
		posts, err := c.source.Tagged(ctx, theme, before, limit)
		c.governor.RecordCall()
		if err != nil {
			if ctx.Err() != nil {
				return res.stop(Cancelled), ctx.Err()
			}
			log.WithError(err).WithFields(map[string]interface{}{
				"retryable": apierrors.Retryable(err),
				"posts":     res.Posts,
			}).Error("Error searching tag")
			res.Err = err
			return res.stop(ErrorStopped), nil
		}
		res.Pages++

		if len(posts) == 0 {
			log.Info("No more posts found")
			break
		}

		oldest := c.absorb(&res, posts)
		res.Posts += len(posts)
		c.report(log, res)

		if len(posts) < limit {
			break
		}
		if oldest == 0 || (before > 0 && oldest >= before) {
			log.WithField("before", before).Warn("Pagination cursor did not advance")
			break
		}
		before = oldest
	}

	res.State = Exhausted
	log.WithFields(map[string]interface{}{
		"blogs":         len(res.Candidates),
		"with_location": res.WithLocation(),
		"malformed":     res.Malformed,
	}).Info("Theme search finished")
	return res, nil
}

// absorb registers every valid post's blog and returns the page's oldest timestamp
func (c *Controller) absorb(res *Result, posts []tumblr.Post) int64 {
	var oldest int64
	for _, p := range posts {
		if p.Timestamp > 0 && (oldest == 0 || p.Timestamp < oldest) {
			oldest = p.Timestamp
		}
		if err := p.Validate(); err != nil {
			res.Malformed++
			c.log.WithError(err).Debug("Skipping malformed post")
			continue
		}

		cand := res.candidate(p.Author())
		if m, ok := c.matcher.MatchPost(p); ok {
			cand.Add(Evidence{Term: m.Term, Source: m.Source})
		}
	}
	return oldest
}

func (c *Controller) report(log logger.Logger, res Result) {
	withLocation := res.WithLocation()
	logger.LogThemeProgress(log, res.Theme, res.Posts, len(res.Candidates), withLocation)
	if c.opts.OnPage != nil {
		c.opts.OnPage(res.Theme, res.Posts, len(res.Candidates), withLocation)
	}
}
