package ui

import (
	"fmt"
	"time"

	"tagfinder/pkg/finder"
	"tagfinder/pkg/ratelimit"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker accumulates run counters for the plain progress display
type StatusTracker struct {
	ThemesTotal  int
	ThemesDone   int
	CurrentTheme string
	Posts        int
	Candidates   int
	Processed    int
	Qualified    int
	Failed       int
	Status       ratelimit.Status
	StartTime    time.Time
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{StartTime: time.Now()}
}

// FinishTheme folds a finished theme into the totals
func (st *StatusTracker) FinishTheme(s finder.ThemeSummary) {
	st.ThemesDone++
	st.Posts += s.Posts
	st.Candidates += s.Candidates
	st.Processed += s.Outcome.Processed
	st.Failed += s.Outcome.Failed
}

// SetResumed seeds the qualified count from saved progress
func (st *StatusTracker) SetResumed(qualified int) {
	st.Qualified = qualified
}

func (st *StatusTracker) Elapsed() time.Duration {
	return time.Since(st.StartTime)
}

// CallRate is API calls per minute since the tracker started
func (st *StatusTracker) CallRate() float64 {
	minutes := st.Elapsed().Minutes()
	if minutes == 0 {
		return 0
	}
	return float64(st.Status.TotalCalls) / minutes
}

// HourBudget renders the hourly window usage
func (st *StatusTracker) HourBudget() string {
	return fmt.Sprintf("[%s] %d/%d", Bar(st.Status.HourlyCalls, st.Status.HourlyLimit, 20),
		st.Status.HourlyCalls, st.Status.HourlyLimit)
}

func (st *StatusTracker) DayBudget() string {
	return fmt.Sprintf("[%s] %d/%d", Bar(st.Status.DailyCalls, st.Status.DailyLimit, 20),
		st.Status.DailyCalls, st.Status.DailyLimit)
}
