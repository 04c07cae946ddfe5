package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/planhaus/internal/adapters"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorBlue      = lipgloss.Color("#4385BE")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	goodStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(ColorOrange)

	badStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	width := 55
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(width).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	// Calculate column widths
	numCols := len(t.Headers)
	if numCols == 0 && len(t.Rows) > 0 {
		numCols = len(t.Rows[0])
	}

	widths := make([]int, numCols)
	if t.Widths != nil {
		copy(widths, t.Widths)
	} else {
		for i, h := range t.Headers {
			if len(h) > widths[i] {
				widths[i] = len(h)
			}
		}
		for _, row := range t.Rows {
			for i, cell := range row {
				if i < numCols && len(cell) > widths[i] {
					widths[i] = len(cell)
				}
			}
		}
	}

	var b strings.Builder

	// Title above table if present
	if t.Title != "" {
		b.WriteString("  ")
		b.WriteString(headerStyle.Render(t.Title))
		b.WriteString("\n")
	}

	// Top border
	b.WriteString(dimStyle.Render("╭"))
	for i, w := range widths {
		b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if i < numCols-1 {
			b.WriteString(dimStyle.Render("┬"))
		}
	}
	b.WriteString(dimStyle.Render("╮"))
	b.WriteString("\n")

	// Header row
	if len(t.Headers) > 0 {
		b.WriteString(dimStyle.Render("│"))
		for i, h := range t.Headers {
			w := widths[i]
			padded := fmt.Sprintf(" %-*s ", w, h)
			b.WriteString(headerStyle.Render(padded))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")

		// Header separator
		b.WriteString(dimStyle.Render("├"))
		for i, w := range widths {
			b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("┼"))
			}
		}
		b.WriteString(dimStyle.Render("┤"))
		b.WriteString("\n")
	}

	// Data rows
	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "---" {
			// Separator row
			b.WriteString(dimStyle.Render("├"))
			for i, w := range widths {
				b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
				if i < numCols-1 {
					b.WriteString(dimStyle.Render("┼"))
				}
			}
			b.WriteString(dimStyle.Render("┤"))
			b.WriteString("\n")
			continue
		}

		b.WriteString(dimStyle.Render("│"))
		for i := 0; i < numCols; i++ {
			w := widths[i]
			cell := ""
			if i < len(row) {
				cell = row[i]
			}

			// Right-align numeric columns (all except first)
			var padded string
			if i == 0 {
				padded = fmt.Sprintf(" %-*s ", w, cell)
			} else {
				padded = fmt.Sprintf(" %*s ", w, cell)
			}
			b.WriteString(valueStyle.Render(padded))
			if i < numCols-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		b.WriteString(dimStyle.Render("│"))
		b.WriteString("\n")
	}

	// Bottom border
	b.WriteString(dimStyle.Render("╰"))
	for i, w := range widths {
		b.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if i < numCols-1 {
			b.WriteString(dimStyle.Render("┴"))
		}
	}
	b.WriteString(dimStyle.Render("╯"))
	b.WriteString("\n")

	return b.String()
}

// RenderProgressBar renders a simple text progress bar.
func RenderProgressBar(current, total int, width int) string {
	if total <= 0 {
		return ""
	}
	return fmt.Sprintf("[%s] %s/%s",
		mutedStyle.Render(bar(float64(current)/float64(total), width)),
		FormatNumber(int64(current)),
		FormatNumber(int64(total)),
	)
}

// bar draws a filled/empty block bar for a 0-1 ratio, clamped.
func bar(ratio float64, width int) string {
	if width <= 0 {
		return ""
	}
	if ratio < 0 || math.IsNaN(ratio) {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// RenderSparkline generates a unicode block sparkline from a series of values.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	hi := values[0]
	for _, v := range values[1:] {
		if v > hi {
			hi = v
		}
	}
	if hi == 0 {
		hi = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int(v / hi * float64(len(blocks)-1))
		idx = max(0, min(idx, len(blocks)-1))
		b.WriteRune(blocks[idx])
	}

	return b.String()
}

// RenderHorizontalBar renders one labeled bar scaled against maxValue.
func RenderHorizontalBar(label string, value, maxValue float64, labelWidth, maxWidth int) string {
	n := 0
	if maxValue > 0 {
		n = max(0, int(value/maxValue*float64(maxWidth)))
	}
	return fmt.Sprintf("  %-*s %s", labelWidth, Truncate(label, labelWidth),
		lipgloss.NewStyle().Foreground(ColorAccent).Render(strings.Repeat("█", n)))
}

// RenderBudgetProgress renders spend against the total with a status word.
func RenderBudgetProgress(p adapters.BudgetProgress, spent, total float64, width int) string {
	style := goodStyle
	switch p.Status {
	case adapters.StatusOnTrack:
		style = warnStyle
	case adapters.StatusOver:
		style = badStyle
	}
	return fmt.Sprintf("  %s %s  %s of %s  %s",
		style.Render(bar(p.Percentage/100, width)),
		valueStyle.Render(FormatPct(p.Percentage)),
		FormatMoney(spent), FormatMoney(total),
		style.Render(string(p.Status)))
}

// RenderDonutLegend lists donut segments with their share of the spend.
func RenderDonutLegend(d adapters.Donut, width int) string {
	var b strings.Builder
	labelWidth := 0
	hi := 0.0
	for _, c := range d.Categories {
		labelWidth = max(labelWidth, len([]rune(c.Name)))
		hi = max(hi, c.Value)
	}
	labelWidth = min(labelWidth, 20)
	for _, c := range d.Categories {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render("●")
		n := 0
		if hi > 0 {
			n = int(c.Value / hi * float64(width))
		}
		share := 0.0
		if d.Spent > 0 {
			share = c.Value / d.Spent
		}
		fmt.Fprintf(&b, "  %s %-*s %s %s %s\n", swatch, labelWidth, Truncate(c.Name, labelWidth),
			lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color)).Render(strings.Repeat("█", n)),
			valueStyle.Render(FormatMoney(c.Value)), mutedStyle.Render(FormatPercent(share)))
	}
	fmt.Fprintf(&b, "  %s %s   %s %s\n",
		mutedStyle.Render("spent"), valueStyle.Render(FormatMoney(d.Spent)),
		mutedStyle.Render("remaining"), valueStyle.Render(FormatMoney(d.Remaining)))
	return b.String()
}

// RenderStatus renders the task status bars.
func RenderStatus(s adapters.StatusBreakdown, width int) string {
	var b strings.Builder
	for _, sb := range s.Bars {
		fmt.Fprintf(&b, "  %-12s %s %4d  %s\n", sb.Label,
			headerStyle.Render(bar(sb.Percentage/100, width)),
			sb.Count, mutedStyle.Render(FormatPct(sb.Percentage)))
	}
	if s.Other > 0 {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(fmt.Sprintf("%d with another status", s.Other)))
	}
	return b.String()
}

// RenderFunnel renders the vendor funnel, one narrowing row per stage.
func RenderFunnel(f adapters.Funnel, width int) string {
	var b strings.Builder
	hi := 0
	for _, st := range f.Stages {
		hi = max(hi, st.Count)
	}
	for _, st := range f.Stages {
		n := 0
		if hi > 0 {
			n = st.Count * width / hi
		}
		pad := (width - n) / 2
		fmt.Fprintf(&b, "  %-15s %s%s%s %3d  %s\n", st.Label,
			strings.Repeat(" ", pad),
			headerStyle.Render(strings.Repeat("█", n)),
			strings.Repeat(" ", width-n-pad),
			st.Count, mutedStyle.Render(FormatPct(st.Percentage)))
	}
	if f.Cancelled > 0 || f.Unknown > 0 {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(
			fmt.Sprintf("cancelled %d  unknown %d", f.Cancelled, f.Unknown)))
	}
	return b.String()
}

// RenderBurndown renders open tasks per day as a sparkline with the ideal
// line underneath and a marker under today.
func RenderBurndown(bd adapters.Burndown) string {
	if len(bd.Points) == 0 {
		return ""
	}
	open := make([]float64, len(bd.Points))
	ideal := make([]float64, len(bd.Points))
	for i, p := range bd.Points {
		open[i] = float64(p.Open)
		ideal[i] = p.Ideal
	}
	var b strings.Builder
	first, last := bd.Points[0], bd.Points[len(bd.Points)-1]
	fmt.Fprintf(&b, "  open  %s\n", headerStyle.Render(RenderSparkline(open)))
	fmt.Fprintf(&b, "  ideal %s\n", dimStyle.Render(RenderSparkline(ideal)))
	if bd.TodayIndex >= 0 {
		fmt.Fprintf(&b, "        %s%s\n", strings.Repeat(" ", bd.TodayIndex), warnStyle.Render("^ today"))
	}
	fmt.Fprintf(&b, "  %s .. %s  open %d  closed %d\n",
		first.Date.Format("Jan 2"), last.Date.Format("Jan 2"), last.Open, last.Closed)
	return b.String()
}
