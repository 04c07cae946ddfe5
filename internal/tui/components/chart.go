package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/planhaus/internal/adapters"
	"github.com/theirongolddev/planhaus/internal/tui/theme"
)

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		peak = 1
	}

	style := lipgloss.NewStyle().Foreground(color).Background(t.Surface)

	var buf strings.Builder
	buf.Grow(len(values) * 4) // UTF-8 block chars are up to 3 bytes
	for _, v := range values {
		idx := max(0, min(int(v/peak*float64(len(blocks)-1)), len(blocks)-1))
		buf.WriteRune(blocks[idx]) //nolint:gosec // bounds checked above
	}

	return style.Render(buf.String())
}

// Burndown renders open tasks per day as a column chart with the ideal
// line overlaid and today's column highlighted. Long ranges are sampled
// down to the available width; narrow or short areas fall back to a
// sparkline.
func Burndown(bd adapters.Burndown, width, height int) string {
	if len(bd.Points) == 0 {
		return ""
	}
	t := theme.Active

	open := make([]float64, len(bd.Points))
	for i, p := range bd.Points {
		open[i] = float64(p.Open)
	}
	if width < 15 || height < 3 {
		return Sparkline(open, t.Accent)
	}

	peak := 0.0
	for i, p := range bd.Points {
		peak = max(peak, open[i], p.Ideal)
	}
	if peak == 0 {
		peak = 1
	}

	step := chartTickStep(peak)
	ceiling := math.Ceil(peak/step) * step
	yLabelW := max(len(formatChartLabel(ceiling))+1, 4)
	chartW := max(width-yLabelW-1, 5)

	// One column per point, sampled when the range is wider than the chart.
	cols := min(len(bd.Points), chartW)
	idx := make([]int, cols)
	for c := range idx {
		if cols == 1 {
			idx[c] = 0
			continue
		}
		idx[c] = c * (len(bd.Points) - 1) / (cols - 1)
	}
	todayCol := -1
	if bd.TodayIndex >= 0 {
		for c, i := range idx {
			if i <= bd.TodayIndex {
				todayCol = c
			}
		}
	}

	axisStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	barStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	todayStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
	idealStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	for row := height; row >= 1; row-- {
		top := ceiling * float64(row) / float64(height)
		bottom := ceiling * float64(row-1) / float64(height)

		label := ""
		if row == height {
			label = formatChartLabel(ceiling)
		}
		b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, label)))
		b.WriteString(axisStyle.Render("│"))

		for c, i := range idx {
			p := bd.Points[i]
			style := barStyle
			if c == todayCol {
				style = todayStyle
			}
			switch {
			case float64(p.Open) >= top:
				b.WriteString(style.Render("█"))
			case float64(p.Open) > bottom:
				b.WriteString(style.Render("▄"))
			case p.Ideal > bottom && p.Ideal <= top:
				b.WriteString(idealStyle.Render("·"))
			default:
				b.WriteString(spaceStyle.Render(" "))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(axisStyle.Render(fmt.Sprintf("%*s", yLabelW, "0")))
	b.WriteString(axisStyle.Render("└" + strings.Repeat("─", cols)))
	b.WriteString("\n")

	first := bd.Points[0].Date.Format("Jan 2")
	last := bd.Points[len(bd.Points)-1].Date.Format("Jan 2")
	gap := max(cols-len(first)-len(last), 1)
	b.WriteString(spaceStyle.Render(strings.Repeat(" ", yLabelW+1)))
	b.WriteString(axisStyle.Render(first + strings.Repeat(" ", gap) + last))

	return b.String()
}

// chartTickStep computes a nice tick interval targeting ~5 ticks.
func chartTickStep(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	rough := maxVal / 5
	exp := math.Floor(math.Log10(rough))
	base := math.Pow(10, exp)
	frac := rough / base

	switch {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	switch {
	case v >= 1e3:
		if v == math.Trunc(v/1e3)*1e3 {
			return fmt.Sprintf("%.0fk", v/1e3)
		}
		return fmt.Sprintf("%.1fk", v/1e3)
	case v >= 1:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
