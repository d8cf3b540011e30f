package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagfinder/pkg/finder"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
)

func send(m *Model, msgs ...tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func TestModelTracksRun(t *testing.T) {
	m := NewModel(nil)

	send(m,
		ThemeStartedMsg{Theme: "cottagecore", Index: 1, Total: 2},
		PageMsg{Theme: "cottagecore", Posts: 20, Blogs: 12, WithLocation: 3},
	)
	assert.Equal(t, PhaseSearching, m.Phase())
	assert.Equal(t, "cottagecore", m.theme)
	assert.Equal(t, 20, m.posts)

	status := ratelimit.Status{HourlyCalls: 5, HourlyLimit: 1000, DailyCalls: 5, DailyLimit: 5000, TotalCalls: 5}
	send(m,
		CandidateMsg{Theme: "cottagecore", Done: 1, Total: 12, Status: status},
		QualifiedMsg{Profile: models.Profile{BlogName: "moss", LocationMatchTerm: "oregon"}},
		ThemeFinishedMsg{Summary: finder.ThemeSummary{Theme: "cottagecore", State: "exhausted", Posts: 20}},
	)
	assert.Equal(t, PhaseChecking, m.Phase())
	assert.Equal(t, 1, m.Qualified())
	assert.Equal(t, 20, m.totalPosts)
	assert.Equal(t, status, m.status)

	// a new theme resets the per-theme counters but not the totals
	send(m, ThemeStartedMsg{Theme: "goblincore", Index: 2, Total: 2})
	assert.Zero(t, m.posts)
	assert.Zero(t, m.checked)
	assert.Equal(t, 1, m.Qualified())

	send(m, RunFinishedMsg{Summary: finder.RunSummary{ThemesDone: 2, Reason: finder.Completed, Qualified: 1, Status: status}})
	assert.Equal(t, PhaseDone, m.Phase())
	require.NotNil(t, m.summary)
	assert.Equal(t, 2, m.summary.ThemesDone)
}

func TestModelRateEvents(t *testing.T) {
	m := NewModel(nil)
	until := time.Now().Add(30 * time.Minute)

	send(m, RateEventMsg{Event: ratelimit.Event{Kind: ratelimit.EventHourPause, Calls: 990, Limit: 1000, Wait: 30 * time.Minute, Until: until}})
	assert.Equal(t, PhasePaused, m.Phase())
	assert.Equal(t, until, m.pauseUntil)

	send(m, RateEventMsg{Event: ratelimit.Event{Kind: ratelimit.EventHourResume, Limit: 1000}})
	assert.Equal(t, PhaseChecking, m.Phase())
	assert.True(t, m.pauseUntil.IsZero())

	send(m, RateEventMsg{Event: ratelimit.Event{Kind: ratelimit.EventDayExhausted, Calls: 4990, Limit: 5000}})
	require.NotEmpty(t, m.logMessages)
	last := m.logMessages[len(m.logMessages)-1]
	assert.Equal(t, "ERROR", last.Level)
	assert.Contains(t, last.Message, "4990/5000")
}

func TestQuitCancelsRun(t *testing.T) {
	cancelled := false
	m := NewModel(func() { cancelled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, cancelled)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRecentQualifiedIsBounded(t *testing.T) {
	m := NewModel(nil)
	for i := 0; i < m.maxRecent+5; i++ {
		send(m, QualifiedMsg{Profile: models.Profile{BlogName: "blog"}})
	}
	assert.Len(t, m.recent, m.maxRecent)
	assert.Equal(t, m.maxRecent+5, m.Qualified())
}

func TestLogIsBounded(t *testing.T) {
	m := NewModel(nil)
	for i := 0; i < m.maxLogs+10; i++ {
		m.AddLogMessage("INFO", "line")
	}
	assert.Len(t, m.logMessages, m.maxLogs)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.logMessages)
}

func TestViewRenders(t *testing.T) {
	m := NewModel(nil)
	assert.Equal(t, "Initializing...", m.View())

	send(m,
		tea.WindowSizeMsg{Width: 140, Height: 50},
		ThemeStartedMsg{Theme: "cottagecore", Index: 1, Total: 1},
		CandidateMsg{Done: 2, Total: 4, Status: ratelimit.Status{HourlyCalls: 950, HourlyLimit: 1000, DailyLimit: 5000, HourStart: time.Now()}},
		QualifiedMsg{Profile: models.Profile{BlogName: "moss", LocationMatchTerm: "oregon", LocationMatchSource: "description"}},
	)
	out := m.View()
	assert.Contains(t, out, "moss")
	assert.Contains(t, out, "950/1000")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", formatDuration(-time.Second))
	assert.Equal(t, "01:05", formatDuration(65*time.Second))
	assert.Equal(t, "02:00:01", formatDuration(2*time.Hour+time.Second))
}
