package finder

import (
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
)

// Observer receives progress from a run. Calls come from the run's goroutine
// and must not block for long.
type Observer interface {
	ThemeStarted(theme string, index, total int)
	PageFetched(theme string, posts, blogs, withLocation int)
	CandidateProcessed(theme string, done, total int, status ratelimit.Status)
	ProfileQualified(p models.Profile)
	ThemeFinished(summary ThemeSummary)
}

// ThemeSummary describes one finished theme
type ThemeSummary struct {
	Theme        string
	State        string
	Posts        int
	Candidates   int
	WithLocation int
	Outcome      Outcome
}

// NopObserver ignores everything. Embed it to implement only some methods.
type NopObserver struct{}

func (NopObserver) ThemeStarted(string, int, int)                         {}
func (NopObserver) PageFetched(string, int, int, int)                     {}
func (NopObserver) CandidateProcessed(string, int, int, ratelimit.Status) {}
func (NopObserver) ProfileQualified(models.Profile)                       {}
func (NopObserver) ThemeFinished(ThemeSummary)                            {}

// Observers fans every call out to each member in order
type Observers []Observer

func (o Observers) ThemeStarted(theme string, index, total int) {
	for _, ob := range o {
		ob.ThemeStarted(theme, index, total)
	}
}

func (o Observers) PageFetched(theme string, posts, blogs, withLocation int) {
	for _, ob := range o {
		ob.PageFetched(theme, posts, blogs, withLocation)
	}
}

func (o Observers) CandidateProcessed(theme string, done, total int, status ratelimit.Status) {
	for _, ob := range o {
		ob.CandidateProcessed(theme, done, total, status)
	}
}

func (o Observers) ProfileQualified(p models.Profile) {
	for _, ob := range o {
		ob.ProfileQualified(p)
	}
}

func (o Observers) ThemeFinished(summary ThemeSummary) {
	for _, ob := range o {
		ob.ThemeFinished(summary)
	}
}
