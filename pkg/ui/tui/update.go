package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"tagfinder/pkg/finder"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
)

// Messages the run sends to the dashboard

type ThemeStartedMsg struct {
	Theme string
	Index int
	Total int
}

type PageMsg struct {
	Theme        string
	Posts        int
	Blogs        int
	WithLocation int
}

type CandidateMsg struct {
	Theme  string
	Done   int
	Total  int
	Status ratelimit.Status
}

type QualifiedMsg struct {
	Profile models.Profile
}

type ThemeFinishedMsg struct {
	Summary finder.ThemeSummary
}

type RateEventMsg struct {
	Event ratelimit.Event
}

type RunFinishedMsg struct {
	Summary finder.RunSummary
}

type LogMsg struct {
	Level   string
	Message string
}

// TickMsg refreshes countdowns
type TickMsg time.Time

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.phase == PhaseDone {
			return m, nil
		}
		return m, tickCmd()

	case ThemeStartedMsg:
		m.phase = PhaseSearching
		m.theme, m.themeIndex, m.themeTotal = msg.Theme, msg.Index, msg.Total
		m.posts, m.blogs, m.withLocation, m.checked, m.toCheck = 0, 0, 0, 0, 0
		m.AddLogMessage("INFO", fmt.Sprintf("Searching #%s (%d/%d)", msg.Theme, msg.Index, msg.Total))
		return m, nil

	case PageMsg:
		m.posts, m.blogs, m.withLocation = msg.Posts, msg.Blogs, msg.WithLocation
		return m, nil

	case CandidateMsg:
		m.phase = PhaseChecking
		m.checked, m.toCheck = msg.Done, msg.Total
		m.status = msg.Status
		return m, nil

	case QualifiedMsg:
		m.addQualified(msg.Profile)
		m.AddLogMessage("SUCCESS", fmt.Sprintf("%s (%s)", msg.Profile.BlogName, msg.Profile.LocationMatchTerm))
		return m, nil

	case ThemeFinishedMsg:
		m.totalPosts += msg.Summary.Posts
		level := "INFO"
		if msg.Summary.State != "exhausted" {
			level = "WARN"
		}
		m.AddLogMessage(level, fmt.Sprintf("#%s %s: %d posts, %d qualified",
			msg.Summary.Theme, msg.Summary.State, msg.Summary.Posts, msg.Summary.Outcome.Qualified))
		return m, nil

	case RateEventMsg:
		m.applyRateEvent(msg.Event)
		return m, nil

	case RunFinishedMsg:
		m.phase = PhaseDone
		sum := msg.Summary
		m.summary = &sum
		m.status = sum.Status
		m.AddLogMessage("INFO", fmt.Sprintf("Run %s: %d qualified. Press q to exit.", sum.Reason, sum.Qualified))
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) applyRateEvent(e ratelimit.Event) {
	switch e.Kind {
	case ratelimit.EventHourPause:
		m.phase = PhasePaused
		m.pauseUntil = e.Until
		m.AddLogMessage("WARN", fmt.Sprintf("Hourly budget %d/%d, pausing %s", e.Calls, e.Limit, formatDuration(e.Wait)))
	case ratelimit.EventHourResume:
		m.phase = PhaseChecking
		m.pauseUntil = time.Time{}
		m.AddLogMessage("INFO", "Hour window reset, resuming")
	case ratelimit.EventDayExhausted:
		m.AddLogMessage("ERROR", fmt.Sprintf("Daily budget reached (%d/%d)", e.Calls, e.Limit))
	}
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.quit != nil {
			m.quit()
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}
	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
