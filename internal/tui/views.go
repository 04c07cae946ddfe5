package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/planhaus/internal/cli"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/tui/components"
	"github.com/theirongolddev/planhaus/internal/tui/theme"
)

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.err != nil && !a.loaded {
		return a.viewError()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  planhaus needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) centeredCard(body string, border lipgloss.Color) string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Background(t.Surface).
		Padding(2, 4).
		Render(body)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewLoading() string {
	t := theme.Active
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sub := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spin := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)

	what := " Loading projects..."
	if a.projectID != "" {
		what = " Loading planning data..."
	}

	var b strings.Builder
	b.WriteString(logo.Render("◈ planhaus"))
	b.WriteString(sub.Render(" · Wedding Planning"))
	b.WriteString("\n\n")
	b.WriteString(spin.Render(a.spinner.View()))
	b.WriteString(sub.Render(what))
	return a.centeredCard(b.String(), t.BorderAccent)
}

func (a App) viewError() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	sub := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var b strings.Builder
	b.WriteString(title.Render("Could not load PlanHaus data"))
	b.WriteString("\n\n")
	b.WriteString(sub.Render(errorText(a.err)))
	b.WriteString("\n\n")
	b.WriteString(sub.Render("[r] retry   [q] quit"))
	return a.centeredCard(b.String(), t.Red)
}

func (a App) viewHelp() string {
	t := theme.Active

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")

	sections := []struct {
		name     string
		bindings []struct{ key, desc string }
	}{
		{"Navigation", []struct{ key, desc string }{
			{"d t b g v a", "Jump to tab"},
			{"← →", "Previous / Next tab"},
			{"j k", "Move through lists"},
			{"p", "Next project"},
		}},
		{"Actions", []struct{ key, desc string }{
			{"n", "New task (Tasks tab)"},
			{"Tab", "Cycle task priority"},
			{"Enter", "Save task now"},
			{"Esc", "Save and close form"},
			{"r", "Refresh data"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sectionStyle.Render(sec.name))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-12s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return a.centeredCard(b.String(), t.BorderAccent)
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	header := components.RenderTabBar(a.activeTab, a.snap.Project.Name, w)
	statusBar := components.RenderStatusBar(w, a.status())

	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	var content string
	switch a.activeTab {
	case tabDashboard:
		content = a.renderDashboard(cw)
	case tabTasks:
		content = a.renderTasks(cw, contentH)
	case tabBudget:
		content = a.renderBudget(cw, contentH)
	case tabGuests:
		content = a.renderGuests(cw, contentH)
	case tabVendors:
		content = a.renderVendors(cw, contentH)
	case tabActivity:
		content = a.renderActivity(cw, contentH)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) status() components.Status {
	s := components.Status{
		Toast:      a.toast,
		ToastError: a.toastError,
		Live:       a.rt.connected(),
	}
	if a.form != nil {
		s.Save = a.form.ctl.State().String()
	}
	switch {
	case a.loading:
		s.Age = "refreshing…"
	case a.snap.Placeholder:
		s.Age = "cached"
	case !a.snap.LoadedAt.IsZero():
		s.Age = "updated " + cli.FormatRelative(a.snap.LoadedAt, a.now())
	}
	return s
}

func (a App) renderDashboard(cw int) string {
	t := theme.Active
	st := a.snap.Stats

	budgetColor := t.ForBudget(string(a.charts.progress.Status))
	metrics := []components.Metric{
		{Label: "Until the day", Value: cli.FormatDays(st.DaysUntilWedding), Delta: cli.FormatDate(a.snap.Project.WeddingDate)},
		{Label: "Tasks done", Value: fmt.Sprintf("%d/%d", st.Tasks.Completed, st.Tasks.Total), Delta: fmt.Sprintf("%d overdue", st.Tasks.Overdue)},
		{Label: "Guests confirmed", Value: fmt.Sprintf("%d/%d", st.Guests.Confirmed, st.Guests.Total), Delta: fmt.Sprintf("%d pending · %d declined", st.Guests.Pending, st.Guests.Declined)},
		{Label: "Spent", Value: cli.FormatMoneyShort(st.Budget.Spent), Delta: "of " + cli.FormatMoneyShort(st.Budget.Total), Color: budgetColor},
		{Label: "Vendors booked", Value: fmt.Sprintf("%d/%d", st.Vendors.Booked, st.Vendors.Total)},
	}
	if a.isCompactLayout() {
		metrics = metrics[:4]
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow(metrics, cw))
	b.WriteString("\n")

	halves := components.LayoutRow(cw, 2)
	inner := components.CardInnerWidth(halves[0])

	budget := components.BudgetBar(a.charts.progress, 7, inner-22) + "\n\n" +
		components.DonutLegend(a.charts.donut, inner, cli.FormatMoney)
	tasks := components.StatusBars(a.charts.status, inner)
	b.WriteString(components.CardRow([]string{
		components.ContentCard("Budget", budget, halves[0]),
		components.ContentCard("Tasks by status", tasks, halves[1]),
	}))
	b.WriteString("\n")

	burndown := components.Burndown(a.charts.burndown, components.CardInnerWidth(halves[0]), 6)
	if burndown == "" {
		burndown = "No tasks yet"
	}
	b.WriteString(components.CardRow([]string{
		components.ContentCard("Burndown", burndown, halves[0]),
		components.ContentCard("Vendor pipeline", components.FunnelBars(a.charts.funnel, inner), halves[1]),
	}))
	return b.String()
}

// listWindow returns the [start, end) slice of n rows to show with the
// cursor visible in a window of height rows.
func listWindow(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := max(0, min(cursor-height/2, n-height))
	return start, start + height
}

// renderList draws rows as a simple table with the cursor row highlighted.
func (a App) renderList(title string, headers []string, widths []int, rows [][]string, cw, height int) string {
	t := theme.Active
	headStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceHover).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	format := func(cells []string) string {
		parts := make([]string, len(widths))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = fmt.Sprintf("%-*s", w, cli.Truncate(cell, w))
		}
		return strings.Join(parts, "  ")
	}

	var b strings.Builder
	b.WriteString(headStyle.Render(format(headers)))
	b.WriteString("\n")
	if len(rows) == 0 {
		b.WriteString(dimStyle.Render("Nothing here yet"))
	}
	start, end := listWindow(len(rows), a.cursor, height-5)
	for i := start; i < end; i++ {
		style := rowStyle
		if i == a.cursor {
			style = selStyle
		}
		b.WriteString(style.Render(format(rows[i])))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return components.ContentCard(fmt.Sprintf("%s (%d)", title, len(rows)), b.String(), cw)
}

func (a App) renderTasks(cw, height int) string {
	now := a.now()
	rows := make([][]string, len(a.snap.Tasks))
	for i, task := range a.snap.Tasks {
		due := cli.FormatDate(task.DueDate)
		if task.Overdue(now) {
			due += " !"
		}
		rows[i] = []string{task.Title, string(task.Priority), statusLabel(task.Status), due, task.Category}
	}

	var b strings.Builder
	if a.form != nil {
		b.WriteString(a.renderForm(cw))
		b.WriteString("\n")
		height -= lipgloss.Height(b.String())
	}
	b.WriteString(a.renderList("Tasks", []string{"Title", "Priority", "Status", "Due", "Category"},
		[]int{32, 8, 12, 14, 14}, rows, cw, height))
	if a.form == nil {
		hint := lipgloss.NewStyle().Foreground(theme.Active.TextDim).Background(theme.Active.Background)
		b.WriteString("\n" + hint.Render(" [n] new task"))
	}
	return b.String()
}

func (a App) renderForm(cw int) string {
	t := theme.Active
	f := a.form
	label := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	errStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface)

	var b strings.Builder
	b.WriteString(f.title.View())
	b.WriteString("\n")
	b.WriteString(label.Render("priority ") + value.Render(string(priorities[f.priority])))
	b.WriteString(label.Render("   state ") + value.Render(f.ctl.State().String()))
	if errs := f.ctl.FieldErrors(); len(errs) > 0 {
		b.WriteString("\n" + errStyle.Render(strings.Join(fieldErrorList(errs), ", ")))
	}
	return components.ContentCard("New task · Enter saves · Esc closes", b.String(), cw)
}

func statusLabel(s model.TaskStatus) string {
	switch st, _ := model.ParseTaskStatus(string(s)); st {
	case model.TaskPending:
		return "Pending"
	case model.TaskInProgress:
		return "In Progress"
	case model.TaskCompleted:
		return "Completed"
	}
	return string(s)
}

func (a App) renderBudget(cw, height int) string {
	rows := make([][]string, len(a.snap.Budget))
	for i, it := range a.snap.Budget {
		paid := ""
		if it.Paid {
			paid = "paid"
		}
		rows[i] = []string{
			it.Category, it.Description,
			cli.FormatDecimal(model.ParseAmount(it.EstimatedCost)),
			cli.FormatDecimal(model.ParseAmount(it.ActualCost)),
			paid,
		}
	}
	inner := components.CardInnerWidth(cw)
	summary := components.BudgetBar(a.charts.progress, 7, min(inner-22, 60))
	var b strings.Builder
	b.WriteString(components.ContentCard("", summary, cw))
	b.WriteString("\n")
	b.WriteString(a.renderList("Budget items", []string{"Category", "Description", "Estimated", "Actual", ""},
		[]int{16, 28, 12, 12, 5}, rows, cw, height-3))
	return b.String()
}

func (a App) renderGuests(cw, height int) string {
	rows := make([][]string, len(a.snap.Guests))
	for i, g := range a.snap.Guests {
		plus := ""
		if g.PlusOne {
			plus = "+1"
		}
		rows[i] = []string{g.Name, string(g.RSVP), g.Group, g.Email, plus}
	}
	return a.renderList("Guests", []string{"Name", "RSVP", "Group", "Email", ""},
		[]int{24, 8, 14, 28, 3}, rows, cw, height)
}

func (a App) renderVendors(cw, height int) string {
	rows := make([][]string, len(a.snap.Vendors))
	for i, v := range a.snap.Vendors {
		rows[i] = []string{v.Name, v.Category, string(v.Status), cli.FormatDecimal(model.ParseAmount(v.Cost)), v.Contact}
	}
	funnel := components.ContentCard("Pipeline", components.FunnelBars(a.charts.funnel, components.CardInnerWidth(cw)), cw)
	return funnel + "\n" + a.renderList("Vendors", []string{"Name", "Category", "Status", "Cost", "Contact"},
		[]int{22, 14, 15, 12, 24}, rows, cw, height-lipgloss.Height(funnel))
}

func (a App) renderActivity(cw, height int) string {
	t := theme.Active
	now := a.now()
	rows := make([][]string, len(a.snap.Activities))
	for i, act := range a.snap.Activities {
		rows[i] = []string{cli.FormatRelative(act.CreatedAt, now), act.Description}
	}

	online := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
	offline := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	names := make([]string, 0, len(a.snap.Collaborators))
	for _, c := range a.snap.Collaborators {
		name := c.Name
		if name == "" {
			name = c.Email
		}
		if c.Online {
			names = append(names, online.Render("● "+name))
		} else {
			names = append(names, offline.Render("○ "+name))
		}
	}
	people := components.ContentCard("Collaborators", strings.Join(names, offline.Render("  ")), cw)
	return people + "\n" + a.renderList("Recent activity", []string{"When", "What"},
		[]int{16, max(cw-26, 20)}, rows, cw, height-lipgloss.Height(people))
}

// ─── Helpers ────────────────────────────────────────────────────

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	var result strings.Builder
	for i, line := range lines {
		result.WriteString(lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg)))
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}
