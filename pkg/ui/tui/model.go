package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"tagfinder/pkg/finder"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
)

// Phase is what the run is doing right now
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseSearching
	PhaseChecking
	PhasePaused
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSearching:
		return "searching"
	case PhaseChecking:
		return "checking blogs"
	case PhasePaused:
		return "waiting for rate window"
	case PhaseDone:
		return "done"
	default:
		return "starting"
	}
}

// Model is the dashboard state. It is only touched from the program's
// goroutine; the run feeds it through messages.
type Model struct {
	spinner   spinner.Model
	themeBar  progress.Model
	hourBar   progress.Model
	dayBar    progress.Model
	checkBar  progress.Model
	quit      func()
	startTime time.Time

	phase        Phase
	theme        string
	themeIndex   int
	themeTotal   int
	posts        int
	blogs        int
	withLocation int
	checked      int
	toCheck      int

	totalPosts int
	qualified  int
	recent     []models.Profile
	status     ratelimit.Status
	pauseUntil time.Time
	summary    *finder.RunSummary

	width       int
	height      int
	showHelp    bool
	logMessages []LogMessage
	maxLogs     int
	maxRecent   int
}

// LogMessage is one line in the log panel
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates the dashboard. quit is called when the user presses q.
func NewModel(quit func()) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := func() progress.Model {
		p := progress.New(progress.WithDefaultGradient())
		p.Width = 40
		return p
	}

	return &Model{
		spinner:   s,
		themeBar:  bar(),
		hourBar:   bar(),
		dayBar:    bar(),
		checkBar:  bar(),
		quit:      quit,
		startTime: time.Now(),
		maxLogs:   50,
		maxRecent: 8,
	}
}

func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogs {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogs:]
	}
}

func (m *Model) addQualified(p models.Profile) {
	m.qualified++
	m.recent = append(m.recent, p)
	if len(m.recent) > m.maxRecent {
		m.recent = m.recent[len(m.recent)-m.maxRecent:]
	}
}

// Qualified returns how many blogs qualified so far
func (m *Model) Qualified() int { return m.qualified }

func (m *Model) Phase() Phase { return m.phase }

func ratio(n, of int) float64 {
	if of <= 0 {
		return 0
	}
	return min(float64(n)/float64(of), 1)
}
