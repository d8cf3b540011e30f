package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"tagfinder/pkg/finder"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
	"tagfinder/pkg/ui"
)

var _ ui.RunView = (*TUI)(nil)

// TUI is the full-screen dashboard for a search run. Its methods may be
// called from the run's goroutine; they only post messages to the program.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates the dashboard. quit runs when the user asks to stop,
// typically the run context's cancel func.
func NewTUI(quit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(quit)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the program until the user quits or Stop is called
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

func (t *TUI) Stop() {
	t.program.Quit()
}

func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) ThemeStarted(theme string, index, total int) {
	t.Send(ThemeStartedMsg{Theme: theme, Index: index, Total: total})
}

func (t *TUI) PageFetched(theme string, posts, blogs, withLocation int) {
	t.Send(PageMsg{Theme: theme, Posts: posts, Blogs: blogs, WithLocation: withLocation})
}

func (t *TUI) CandidateProcessed(theme string, done, total int, status ratelimit.Status) {
	t.Send(CandidateMsg{Theme: theme, Done: done, Total: total, Status: status})
}

func (t *TUI) ProfileQualified(p models.Profile) {
	t.Send(QualifiedMsg{Profile: p})
}

func (t *TUI) ThemeFinished(summary finder.ThemeSummary) {
	t.Send(ThemeFinishedMsg{Summary: summary})
}

func (t *TUI) RateEvent(e ratelimit.Event) {
	t.Send(RateEventMsg{Event: e})
}

func (t *TUI) Finish(summary finder.RunSummary) {
	t.Send(RunFinishedMsg{Summary: summary})
}

// Log sends a line to the log panel
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
