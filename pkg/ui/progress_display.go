package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"tagfinder/pkg/finder"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
)

// ProgressDisplay prints a single updating status line while a run is
// going, and one line per qualified blog. Debug mode prints every page.
type ProgressDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	tracker *StatusTracker
	isDebug bool
}

func NewProgressDisplay(debug bool) *ProgressDisplay {
	return &ProgressDisplay{out: os.Stdout, tracker: NewStatusTracker(), isDebug: debug}
}

// SetOutput redirects the display, mostly for tests
func (p *ProgressDisplay) SetOutput(w io.Writer) {
	p.mu.Lock()
	p.out = w
	p.mu.Unlock()
}

func (p *ProgressDisplay) Tracker() *StatusTracker { return p.tracker }

func (p *ProgressDisplay) ThemeStarted(theme string, index, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.CurrentTheme = theme
	p.tracker.ThemesTotal = total
	fmt.Fprintf(p.out, "\n%s %s %s\n", Magenta("[THEME]"), Cyan(theme), Dim(fmt.Sprintf("(%d/%d)", index, total)))
}

func (p *ProgressDisplay) PageFetched(theme string, posts, blogs, withLocation int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isDebug {
		fmt.Fprintf(p.out, "  %s %d posts • %d blogs • %d with location\n", Dim("→"), posts, blogs, withLocation)
		return
	}
	p.line(fmt.Sprintf("%s %d posts • %d blogs • %d with location", Cyan("searching"), posts, blogs, withLocation))
}

func (p *ProgressDisplay) CandidateProcessed(theme string, done, total int, status ratelimit.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Status = status
	if p.isDebug {
		return
	}
	p.line(fmt.Sprintf("%s [%s] %d/%d • %d qualified • hour %d/%d",
		Cyan("checking"),
		Bar(done, total, 20),
		done, total,
		p.tracker.Qualified,
		status.HourlyCalls, status.HourlyLimit,
	))
}

func (p *ProgressDisplay) ProfileQualified(prof models.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.Qualified++
	fmt.Fprintf(p.out, "\r%s\r  %s %s %s\n",
		strings.Repeat(" ", 100),
		Green("✓"),
		prof.BlogName,
		Dim(fmt.Sprintf("%s via %s • %d followers", prof.LocationMatchTerm, prof.LocationMatchSource, prof.FollowerCount)),
	)
}

func (p *ProgressDisplay) ThemeFinished(s finder.ThemeSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.FinishTheme(s)
	state := Green(s.State)
	if s.State != "exhausted" {
		state = Yellow(s.State)
	}
	fmt.Fprintf(p.out, "\r%s\r  %s %d posts, %d blogs (%d with location), %d qualified, %d failed\n",
		strings.Repeat(" ", 100), state, s.Posts, s.Candidates, s.WithLocation, s.Outcome.Qualified, s.Outcome.Failed)
}

// RateEvent reports governor pauses and the daily stop
func (p *ProgressDisplay) RateEvent(e ratelimit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case ratelimit.EventHourPause:
		fmt.Fprintf(p.out, "\n%s Hourly budget nearly spent (%d/%d). Waiting %s, until %s...\n",
			Yellow("⚠"), e.Calls, e.Limit, FormatDuration(e.Wait), e.Until.Format("15:04:05"))
	case ratelimit.EventHourResume:
		fmt.Fprintf(p.out, "%s Hour window reset, resuming\n", Green("→"))
	case ratelimit.EventDayExhausted:
		fmt.Fprintf(p.out, "\n%s Daily budget reached (%d/%d). Resume tomorrow with --resume.\n",
			Red("■"), e.Calls, e.Limit)
	}
}

// Finish prints the final statistics
func (p *ProgressDisplay) Finish(sum finder.RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s\n", strings.Repeat("=", 60))
	fmt.Fprintf(p.out, "%s %s\n", Cyan("Run"), sum.Reason)
	fmt.Fprintf(p.out, "  %s %d qualified blogs\n", Dim("•"), sum.Qualified)
	fmt.Fprintf(p.out, "  %s %d themes, %d posts, %d candidates checked in %s\n",
		Dim("•"), sum.ThemesDone, sum.Posts, sum.Outcome.Processed, FormatDuration(sum.Duration))
	fmt.Fprintf(p.out, "  %s API calls: %d total, hour %d/%d, day %d/%d\n",
		Dim("•"), sum.Status.TotalCalls,
		sum.Status.HourlyCalls, sum.Status.HourlyLimit,
		sum.Status.DailyCalls, sum.Status.DailyLimit)
	if sum.Outcome.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %d profile fetches failed\n", Dim("•"), sum.Outcome.Failed)
	}
	fmt.Fprintf(p.out, "%s\n", strings.Repeat("=", 60))
}

// line rewrites the current status line. Caller holds mu.
func (p *ProgressDisplay) line(s string) {
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), s)
}

// FormatDuration renders d as 45s, 3m12s or 2h5m
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
