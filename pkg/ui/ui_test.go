package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tagfinder/pkg/finder"
	"tagfinder/pkg/models"
	"tagfinder/pkg/ratelimit"
)

func TestBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", Bar(5, 10, 10))
	assert.Equal(t, "██████████", Bar(15, 10, 10), "overflow is clamped")
	assert.Equal(t, "░░░░", Bar(3, 0, 4))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "3m12s", FormatDuration(3*time.Minute+12*time.Second))
	assert.Equal(t, "2h5m", FormatDuration(2*time.Hour+5*time.Minute))
}

func TestProgressDisplay(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(false)
	p.SetOutput(&buf)

	var _ RunView = p

	p.ThemeStarted("photography", 1, 3)
	p.PageFetched("photography", 20, 12, 2)
	p.ProfileQualified(models.Profile{BlogName: "alpha", LocationMatchTerm: "queens", LocationMatchSource: "post_content", FollowerCount: 40})
	p.CandidateProcessed("photography", 1, 12, ratelimit.Status{HourlyCalls: 3, HourlyLimit: 1000})
	p.ThemeFinished(finder.ThemeSummary{Theme: "photography", State: "exhausted", Posts: 20, Candidates: 12, Outcome: finder.Outcome{Processed: 12, Qualified: 1}})
	p.RateEvent(ratelimit.Event{Kind: ratelimit.EventHourPause, Calls: 990, Limit: 1000, Wait: 10 * time.Minute})
	p.Finish(finder.RunSummary{Reason: finder.Completed, Qualified: 1, ThemesDone: 1, Status: ratelimit.Status{TotalCalls: 13}})

	out := buf.String()
	assert.Contains(t, out, "photography")
	assert.Contains(t, out, "(1/3)")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "queens via post_content")
	assert.Contains(t, out, "hour 3/1000")
	assert.Contains(t, out, "Waiting 10m0s")
	assert.Contains(t, out, "API calls: 13 total")

	tr := p.Tracker()
	assert.Equal(t, 1, tr.Qualified)
	assert.Equal(t, 1, tr.ThemesDone)
	assert.Equal(t, 12, tr.Processed)
	assert.Equal(t, "[░░░░░░░░░░░░░░░░░░░░] 3/1000", tr.HourBudget())
}

type fakeSender struct{ sent []string }

func (f *fakeSender) Send(title, message string) error {
	f.sent = append(f.sent, title+"|"+message)
	return nil
}

func TestNotifier(t *testing.T) {
	var buf bytes.Buffer
	old := Out
	Out = &buf
	defer func() { Out = old }()

	s := &fakeSender{}
	n := NewNotifierWithSender(s)
	n.SendSuccess("Search complete", "12 blogs")
	n.SendError("Budget", "daily limit reached")

	assert.Equal(t, []string{"Search complete|12 blogs", "Budget|daily limit reached"}, s.sent)
	assert.Contains(t, buf.String(), "12 blogs")

	quiet := &Notifier{sender: s, enabled: false}
	quiet.SendNotification("x", "y")
	assert.Len(t, s.sent, 2, "disabled notifier only prints")
}

func TestAppleQuote(t *testing.T) {
	assert.Equal(t, `say \"hi\"`, appleQuote(`say "hi"`))
}

func TestDisableColor(t *testing.T) {
	saved := []func(string) string{Cyan, Yellow, Red, Green, Magenta, Dim}
	t.Cleanup(func() {
		Cyan, Yellow, Red, Green, Magenta, Dim = saved[0], saved[1], saved[2], saved[3], saved[4], saved[5]
	})

	assert.Contains(t, Red("x"), "\033[31m")
	DisableColor()
	assert.Equal(t, "x", Red("x"))

	var buf bytes.Buffer
	out := Out
	Out = &buf
	t.Cleanup(func() { Out = out })

	PrintInfo("Themes", "zine")
	assert.Equal(t, "Themes: zine\n", buf.String())
}
