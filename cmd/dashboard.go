package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/planhaus/internal/adapters"
	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/cli"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/pipeline"
)

const chartWidth = 40

var (
	flagTaskCategory string
	flagTaskStatus   string
	flagGuestGroup   string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Project overview: countdown, budget, tasks and vendors",
	RunE:  runDashboard,
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Budget progress and spend by category",
	RunE:  runBudget,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Task list and burndown",
	RunE:  runTasks,
}

var guestsCmd = &cobra.Command{
	Use:   "guests",
	Short: "Guest list and RSVPs",
	RunE:  runGuests,
}

var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "Vendor booking funnel",
	RunE:  runVendors,
}

func init() {
	tasksCmd.Flags().StringVar(&flagTaskCategory, "category", "", "Filter by category (substring match)")
	tasksCmd.Flags().StringVar(&flagTaskStatus, "status", "", "Filter by status (pending, in_progress, completed)")
	guestsCmd.Flags().StringVar(&flagGuestGroup, "group", "", "Filter by group (substring match)")

	rootCmd.AddCommand(dashboardCmd, budgetCmd, tasksCmd, guestsCmd, vendorsCmd)
}

// projectData is what the report commands render.
type projectData struct {
	project model.WeddingProject
	stats   model.DashboardStats
	tasks   []model.Task
	budget  []model.BudgetItem
	guests  []model.Guest
	vendors []model.Vendor
}

// loadProjectData resolves the project and reads the lists the report
// needs in parallel.
func loadProjectData(ctx context.Context, q *apiclient.Queries, tasks, budget, guests, vendors bool) (projectData, error) {
	var d projectData
	var err error
	if d.project, err = resolveProject(ctx, q); err != nil {
		return d, err
	}
	id := d.project.ID.String()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.stats, err = q.Dashboard(ctx, id)
		return
	})
	if tasks {
		g.Go(func() (err error) {
			d.tasks, err = q.Tasks(ctx, id)
			return
		})
	}
	if budget {
		g.Go(func() (err error) {
			d.budget, err = q.Budget(ctx, id)
			return
		})
	}
	if guests {
		g.Go(func() (err error) {
			d.guests, err = q.Guests(ctx, id)
			return
		})
	}
	if vendors {
		g.Go(func() (err error) {
			d.vendors, err = q.Vendors(ctx, id)
			return
		})
	}
	return d, g.Wait()
}

func printHeader(p model.WeddingProject, section string) {
	title := strings.ToUpper(p.Name)
	if section != "" {
		title += "  " + section
	}
	if p.WeddingDate != nil {
		title += "  " + cli.FormatDate(p.WeddingDate)
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	d, err := loadProjectData(cmd.Context(), newQueries(), true, true, false, true)
	if err != nil {
		return err
	}
	now := time.Now()
	st := d.stats
	printHeader(d.project, "")

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Until the day", cli.FormatDays(st.DaysUntilWedding)},
			{"Tasks done", fmt.Sprintf("%d / %d", st.Tasks.Completed, st.Tasks.Total)},
			{"Overdue", cli.FormatNumber(int64(st.Tasks.Overdue))},
			{"Guests confirmed", fmt.Sprintf("%d / %d", st.Guests.Confirmed, st.Guests.Total)},
			{"Vendors booked", fmt.Sprintf("%d / %d", st.Vendors.Booked, st.Vendors.Total)},
			{"Spent", cli.FormatMoney(st.Budget.Spent) + " of " + cli.FormatMoney(st.Budget.Total)},
		},
	}))
	fmt.Println()

	budget := adapters.BudgetDataFrom(st.Budget, d.budget)
	fmt.Println("  Budget")
	fmt.Println(cli.RenderBudgetProgress(adapters.CalculateBudgetProgress(budget), budget.Spent, budget.Total, chartWidth))
	fmt.Println()

	fmt.Println("  Tasks")
	fmt.Print(cli.RenderStatus(adapters.ToStatus(d.tasks), chartWidth))
	start, end := adapters.BurndownWindow(d.project, d.tasks, now)
	fmt.Print(cli.RenderBurndown(adapters.ToBurndown(d.tasks, start, end, now)))
	fmt.Println()

	fmt.Println("  Vendors")
	fmt.Print(cli.RenderFunnel(adapters.ToFunnel(d.vendors), chartWidth))
	fmt.Println()
	return nil
}

func runBudget(cmd *cobra.Command, _ []string) error {
	d, err := loadProjectData(cmd.Context(), newQueries(), false, true, false, false)
	if err != nil {
		return err
	}
	printHeader(d.project, "BUDGET")

	budget := adapters.BudgetDataFrom(d.stats.Budget, d.budget)
	fmt.Println(cli.RenderBudgetProgress(adapters.CalculateBudgetProgress(budget), budget.Spent, budget.Total, chartWidth))
	fmt.Println()
	fmt.Print(cli.RenderDonutLegend(adapters.ToDonut(budget), chartWidth))
	fmt.Println()

	if len(d.budget) == 0 {
		fmt.Println("  No budget items yet.")
		return nil
	}
	rows := make([][]string, 0, len(d.budget))
	for _, b := range d.budget {
		paid := ""
		if b.Paid {
			paid = "paid"
		}
		rows = append(rows, []string{
			cli.Truncate(b.Category, 16),
			cli.Truncate(b.Description, 28),
			cli.FormatDecimal(model.ParseAmount(b.EstimatedCost)),
			cli.FormatDecimal(model.ParseAmount(b.ActualCost)),
			paid,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Category", "Item", "Estimated", "Actual", ""},
		Rows:    rows,
	}))
	return nil
}

func runTasks(cmd *cobra.Command, _ []string) error {
	d, err := loadProjectData(cmd.Context(), newQueries(), true, false, false, false)
	if err != nil {
		return err
	}
	now := time.Now()
	printHeader(d.project, "TASKS")

	fmt.Print(cli.RenderStatus(adapters.ToStatus(d.tasks), chartWidth))
	start, end := adapters.BurndownWindow(d.project, d.tasks, now)
	fmt.Print(cli.RenderBurndown(adapters.ToBurndown(d.tasks, start, end, now)))
	fmt.Println()

	tasks := pipeline.FilterTasks(d.tasks, flagTaskCategory, flagTaskStatus)
	if len(tasks) == 0 {
		fmt.Println("  No matching tasks.")
		return nil
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		due := cli.FormatDate(t.DueDate)
		if t.Overdue(now) {
			due += " !"
		}
		rows = append(rows, []string{
			cli.Truncate(t.Title, 36),
			cli.Truncate(t.Category, 14),
			string(t.Priority),
			string(t.Status),
			due,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Task", "Category", "Priority", "Status", "Due"},
		Rows:    rows,
	}))
	return nil
}

func runGuests(cmd *cobra.Command, _ []string) error {
	d, err := loadProjectData(cmd.Context(), newQueries(), false, false, true, false)
	if err != nil {
		return err
	}
	st := d.stats.Guests
	printHeader(d.project, "GUESTS")

	total := float64(st.Total)
	fmt.Println(cli.RenderHorizontalBar("yes", float64(st.Confirmed), total, 8, chartWidth))
	fmt.Println(cli.RenderHorizontalBar("no", float64(st.Declined), total, 8, chartWidth))
	fmt.Println(cli.RenderHorizontalBar("pending", float64(st.Pending), total, 8, chartWidth))
	fmt.Println()

	guests := pipeline.FilterGuests(d.guests, flagGuestGroup)
	if len(guests) == 0 {
		fmt.Println("  No matching guests.")
		return nil
	}
	rows := make([][]string, 0, len(guests))
	for _, g := range guests {
		plus := ""
		if g.PlusOne {
			plus = "+1"
		}
		rows = append(rows, []string{
			cli.Truncate(g.Name, 28),
			cli.Truncate(g.Group, 16),
			string(g.RSVP),
			plus,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Guest", "Group", "RSVP", ""},
		Rows:    rows,
	}))
	return nil
}

func runVendors(cmd *cobra.Command, _ []string) error {
	d, err := loadProjectData(cmd.Context(), newQueries(), false, false, false, true)
	if err != nil {
		return err
	}
	printHeader(d.project, "VENDORS")

	fmt.Print(cli.RenderFunnel(adapters.ToFunnel(d.vendors), chartWidth))
	fmt.Println()

	if len(d.vendors) == 0 {
		fmt.Println("  No vendors yet.")
		return nil
	}
	rows := make([][]string, 0, len(d.vendors))
	for _, v := range d.vendors {
		cost := ""
		if v.Cost != "" {
			cost = cli.FormatDecimal(model.ParseAmount(v.Cost))
		}
		rows = append(rows, []string{
			cli.Truncate(v.Name, 24),
			cli.Truncate(v.Category, 16),
			string(v.Status),
			cost,
			cli.Truncate(v.Contact, 24),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Vendor", "Category", "Status", "Cost", "Contact"},
		Rows:    rows,
	}))
	return nil
}
