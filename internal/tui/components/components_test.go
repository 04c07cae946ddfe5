package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/planhaus/internal/adapters"
	"github.com/theirongolddev/planhaus/internal/model"
)

func TestTabVisualWidthMatchesRender(t *testing.T) {
	for active := range Tabs {
		bar := RenderTabBar(active, "", 0)
		sum := 0
		for i, tab := range Tabs {
			sum += TabVisualWidth(tab, i == active)
		}
		sum += len(Tabs) - 1 // separators
		if got := lipgloss.Width(bar); got != sum {
			t.Errorf("active=%d: bar width %d, sum of tabs %d", active, got, sum)
		}
	}
}

func TestTabIdxByKey(t *testing.T) {
	if TabIdxByKey('b') != 2 {
		t.Error("b should select Budget")
	}
	if TabIdxByKey('z') != -1 {
		t.Error("unknown key should be -1")
	}
}

func TestStatusBarFillsWidth(t *testing.T) {
	bar := RenderStatusBar(100, Status{Toast: "Task saved", Save: "saved", Live: true, Age: "just now"})
	if w := lipgloss.Width(bar); w != 100 {
		t.Errorf("width = %d, want 100", w)
	}
	if !strings.Contains(bar, "Task saved") || !strings.Contains(bar, "live") {
		t.Errorf("missing content: %q", bar)
	}
}

func TestBudgetBarShowsTrueOverspend(t *testing.T) {
	p := adapters.CalculateBudgetProgress(adapters.BudgetData{Total: 100, Spent: 110})
	out := BudgetBar(p, 8, 20)
	if !strings.Contains(out, "110.0%") || !strings.Contains(out, "over") {
		t.Errorf("unexpected bar: %q", out)
	}
}

func TestStatusBarsAndFunnelLineCounts(t *testing.T) {
	s := adapters.ToStatus([]model.Task{{Status: model.TaskPending}, {Status: "blocked"}})
	if got := len(strings.Split(StatusBars(s, 60), "\n")); got != 4 {
		t.Errorf("status lines = %d, want 4 (3 bars + other)", got)
	}

	f := adapters.ToFunnel([]model.Vendor{{Status: model.VendorContacted}})
	if got := len(strings.Split(FunnelBars(f, 60), "\n")); got != 5 {
		t.Errorf("funnel lines = %d, want 5", got)
	}
}

func TestDonutLegendEmpty(t *testing.T) {
	out := DonutLegend(adapters.Donut{}, 50, func(float64) string { return "" })
	if !strings.Contains(out, "No categorized spend") {
		t.Errorf("got %q", out)
	}
}

func TestBurndownDimensions(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 6, d, 0, 0, 0, 0, time.UTC) }
	bd := adapters.Burndown{TodayIndex: 1}
	for d := 1; d <= 10; d++ {
		bd.Points = append(bd.Points, adapters.BurndownPoint{Date: day(d), Open: 10 - d, Ideal: float64(10 - d)})
	}

	out := Burndown(bd, 40, 6)
	lines := strings.Split(out, "\n")
	if len(lines) != 8 { // 6 rows + axis + labels
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[7], "Jun 1") || !strings.Contains(lines[7], "Jun 10") {
		t.Errorf("date labels: %q", lines[7])
	}

	if got := Burndown(bd, 10, 2); lipgloss.Width(got) != 10 {
		t.Errorf("narrow fallback should be a 10-wide sparkline, got %q", got)
	}
	if Burndown(adapters.Burndown{TodayIndex: -1}, 40, 6) != "" {
		t.Error("empty burndown should render empty")
	}
}
