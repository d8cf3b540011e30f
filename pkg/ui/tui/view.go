package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the whole dashboard
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to stop"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔════════════════════════════════════════════════════╗
║  ▀█▀ ▄▀█ █▀▀ █▀▀ █ █▄ █ █▀▄ █▀▀ █▀█                  ║
║   █  █▀█ █▄█ █▀  █ █ ▀█ █▄▀ ██▄ █▀▄                  ║
║        tumblr tag search / location filter          ║
╚════════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderSearchPanel(width),
		m.renderQualifiedPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRateLimitPanel(width),
		m.renderLogsPanel(width),
	)
}

func (m *Model) renderSearchPanel(width int) string {
	title := titleStyle.Render(" SEARCH ")

	phase := m.phase.String()
	if m.phase != PhaseDone {
		phase = m.spinner.View() + " " + phase
	}

	theme := "-"
	if m.theme != "" {
		theme = fmt.Sprintf("#%s (%d/%d)", m.theme, m.themeIndex, m.themeTotal)
	}

	barWidth := max(width-8, 10)
	m.themeBar.Width = barWidth
	m.checkBar.Width = barWidth

	themesDone := m.themeIndex - 1
	if m.phase == PhaseDone && m.summary != nil {
		themesDone = m.summary.ThemesDone
	}

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Status:"), statsValueStyle.Render(phase)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(time.Since(m.startTime)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Theme:"), statsValueStyle.Render(theme)),
		m.themeBar.ViewAs(ratio(themesDone, m.themeTotal)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Posts:"), statsValueStyle.Render(fmt.Sprintf("%d (%d total)", m.posts, m.totalPosts+m.posts))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Blogs:"), statsValueStyle.Render(fmt.Sprintf("%d, %d with location", m.blogs, m.withLocation))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Checked:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", m.checked, m.toCheck))),
		m.checkBar.ViewAs(ratio(m.checked, m.toCheck)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Qualified:"), successStyle.Render(fmt.Sprintf("%d", m.qualified))),
	}

	if m.phase == PhaseDone && m.summary != nil {
		stats = append(stats, "", successStyle.Render(fmt.Sprintf("Run %s in %s", m.summary.Reason, formatDuration(m.summary.Duration))))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderQualifiedPanel(width int) string {
	title := titleStyle.Render(" QUALIFIED BLOGS ")

	if len(m.recent) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("None yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	var items []string
	for i := len(m.recent) - 1; i >= 0; i-- {
		p := m.recent[i]
		detail := fmt.Sprintf("%s via %s, %d followers", p.LocationMatchTerm, p.LocationMatchSource, p.FollowerCount)
		items = append(items, blogItemStyle.Render("✓ "+p.BlogName)+" "+blogDetailStyle.Render(detail))
	}
	if hidden := m.qualified - len(m.recent); hidden > 0 {
		items = append(items, blogDetailStyle.Render(fmt.Sprintf("  ... and %d more", hidden)))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderRateLimitPanel(width int) string {
	title := titleStyle.Render(" API BUDGET ")

	s := m.status
	hourUsage := usagePercent(s.HourlyCalls, s.HourlyLimit)
	dayUsage := usagePercent(s.DailyCalls, s.DailyLimit)

	barWidth := max(width-8, 10)
	m.hourBar.Width = barWidth
	m.dayBar.Width = barWidth

	var content []string
	if s.HourlyLimit <= 0 {
		content = append(content, statsLabelStyle.Render("Unlimited")+" "+
			statsValueStyle.Render(fmt.Sprintf("%d calls", s.TotalCalls)))
	} else {
		content = append(content,
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Hour:"),
				GetRateLimitStyle(hourUsage).Render(fmt.Sprintf("%d/%d (%.0f%%)", s.HourlyCalls, s.HourlyLimit, hourUsage))),
			m.hourBar.ViewAs(hourUsage/100),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Day:"),
				GetRateLimitStyle(dayUsage).Render(fmt.Sprintf("%d/%d (%.0f%%)", s.DailyCalls, s.DailyLimit, dayUsage))),
			m.dayBar.ViewAs(dayUsage/100),
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Total calls:"), statsValueStyle.Render(fmt.Sprintf("%d", s.TotalCalls))),
		)
		if !s.HourStart.IsZero() {
			content = append(content, fmt.Sprintf("%s %s", statsLabelStyle.Render("Hour resets in:"),
				statsValueStyle.Render(formatDuration(time.Until(s.HourResetAt())))))
		}
	}

	if m.phase == PhasePaused && !m.pauseUntil.IsZero() {
		content = append(content, warningStyle.Render("⏸  paused, resuming in "+formatDuration(time.Until(m.pauseUntil))))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := max(len(m.logMessages)-10, 0)

	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))

		msg := entry.Message
		if maxLen := width - 25; maxLen > 3 && len(msg) > maxLen {
			msg = msg[:maxLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := max(m.height-35, 5)

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/ctrl+c - Stop the run (progress is saved)
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Budget colours:
    ` + successStyle.Render("Green") + `    - Under 70%
    ` + warningStyle.Render("Orange") + `   - 70% or more
    ` + errorStyle.Render("Red") + `      - 90% or more, a pause is close
`

	return panelStyle.Width(m.width).Render(help)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
