package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/planhaus/internal/tui/theme"
)

// Status is what the bottom bar reports.
type Status struct {
	// Toast is the current notification; empty hides it.
	Toast      string
	ToastError bool
	// Save is the autosave state of the open form, if any.
	Save string
	Live bool
	// Age describes how fresh the shown data is.
	Age string
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, s Status) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	left := base.Render(" [?]help  [p]roject  [r]efresh  [q]uit")

	var right []string
	if s.Toast != "" {
		color := t.Green
		if s.ToastError {
			color = t.Red
		}
		right = append(right, lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true).Render(s.Toast))
	}
	if s.Save != "" {
		right = append(right, dim.Render("form: "+s.Save))
	}
	if s.Live {
		right = append(right, lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface).Render("● live"))
	} else {
		right = append(right, dim.Render("○ offline"))
	}
	if s.Age != "" {
		right = append(right, dim.Render(s.Age))
	}
	r := strings.Join(right, dim.Render("  ")) + dim.Render(" ")

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(r), 0)
	return left + base.Render(strings.Repeat(" ", gap)) + r
}
