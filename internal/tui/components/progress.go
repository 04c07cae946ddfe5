package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/planhaus/internal/adapters"
	"github.com/theirongolddev/planhaus/internal/tui/theme"
)

// ProgressBar renders a visually appealing progress bar with percentage.
func ProgressBar(pct float64, width int) string {
	t := theme.Active
	filled := max(0, min(int(pct*float64(width)), width))

	// Color gradient based on progress
	var barColor lipgloss.Color
	switch {
	case pct >= 0.8:
		barColor = t.AccentBright
	case pct >= 0.5:
		barColor = t.Accent
	default:
		barColor = t.Cyan
	}

	filledStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	b.WriteString(filledStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(emptyStyle.Render(strings.Repeat("░", width-filled)))

	return b.String() + spaceStyle.Render(" ") + pctStyle.Render(fmt.Sprintf("%.0f%%", pct*100))
}

// BudgetBar renders spend against the budget, colored by its status. The
// bar fills at 100% while the label keeps the true percentage.
func BudgetBar(p adapters.BudgetProgress, labelW, barWidth int) string {
	t := theme.Active
	color := t.ForBudget(string(p.Status))

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(max(barWidth, 4)),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	ratio := max(0, min(p.Percentage/100, 1))
	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, "Budget")) +
		spaceStyle.Render(" ") +
		bar.ViewAs(ratio) +
		spaceStyle.Render(" ") +
		pctStyle.Render(fmt.Sprintf("%5.1f%%", p.Percentage)) +
		spaceStyle.Render(" ") +
		labelStyle.Render(string(p.Status))
}

// LabeledBar renders one bar of a breakdown: label, bar scaled to pct
// (0-100), count and percentage.
func LabeledBar(label string, count int, pct float64, color lipgloss.Color, labelW, barWidth int) string {
	t := theme.Active
	filled := max(0, min(int(pct/100*float64(barWidth)), barWidth))

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.SurfaceBright).Background(t.Surface)
	countStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	return labelStyle.Render(fmt.Sprintf("%-*s ", labelW, truncate(label, labelW))) +
		barStyle.Render(strings.Repeat("█", filled)) +
		emptyStyle.Render(strings.Repeat("·", barWidth-filled)) +
		countStyle.Render(fmt.Sprintf(" %4d", count)) +
		labelStyle.Render(fmt.Sprintf(" %5.1f%%", pct))
}

// StatusBars renders the task status breakdown.
func StatusBars(s adapters.StatusBreakdown, width int) string {
	t := theme.Active
	const labelW = 12
	barW := max(width-labelW-13, 4)

	lines := make([]string, 0, len(s.Bars)+1)
	for _, b := range s.Bars {
		lines = append(lines, LabeledBar(b.Label, b.Count, b.Percentage, t.ForTaskStatus(string(b.Status)), labelW, barW))
	}
	if s.Other > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
			Render(fmt.Sprintf("%d with another status", s.Other)))
	}
	return strings.Join(lines, "\n")
}

// FunnelBars renders the vendor funnel with bars centered so the stages
// narrow toward Booked.
func FunnelBars(f adapters.Funnel, width int) string {
	t := theme.Active
	const labelW = 15
	barW := max(width-labelW-8, 4)

	peak := 0
	for _, st := range f.Stages {
		peak = max(peak, st.Count)
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	lines := make([]string, 0, len(f.Stages)+1)
	for _, st := range f.Stages {
		n := 0
		if peak > 0 {
			n = st.Count * barW / peak
		}
		pad := (barW - n) / 2
		lines = append(lines,
			labelStyle.Render(fmt.Sprintf("%-*s ", labelW, st.Label))+
				spaceStyle.Render(strings.Repeat(" ", pad))+
				barStyle.Render(strings.Repeat("█", n))+
				spaceStyle.Render(strings.Repeat(" ", barW-n-pad))+
				labelStyle.Render(fmt.Sprintf(" %4d", st.Count)))
	}
	if f.Cancelled > 0 || f.Unknown > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
			Render(fmt.Sprintf("cancelled %d  unknown %d", f.Cancelled, f.Unknown)))
	}
	return strings.Join(lines, "\n")
}

// DonutLegend renders the spend-by-category breakdown with each segment's
// palette color.
func DonutLegend(d adapters.Donut, width int, money func(float64) string) string {
	t := theme.Active
	if len(d.Categories) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).Render("No categorized spend yet")
	}

	const labelW = 14
	barW := max(width-labelW-16, 4)
	peak := 0.0
	for _, c := range d.Categories {
		peak = max(peak, c.Value)
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	lines := make([]string, 0, len(d.Categories))
	for _, c := range d.Categories {
		n := 0
		if peak > 0 {
			n = int(c.Value / peak * float64(barW))
		}
		color := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Background(t.Surface)
		lines = append(lines,
			color.Render("● ")+
				labelStyle.Render(fmt.Sprintf("%-*s ", labelW, truncate(c.Name, labelW)))+
				color.Render(strings.Repeat("█", n))+
				spaceStyle.Render(strings.Repeat(" ", barW-n))+
				valueStyle.Render(fmt.Sprintf(" %12s", money(c.Value))))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
