package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/planhaus/internal/cli"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/pipeline"
)

var (
	flagProjectName   string
	flagProjectDate   string
	flagProjectVenue  string
	flagProjectBudget string
	flagProjectGuests int
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the projects you collaborate on",
	RunE:  runProjects,
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage wedding projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a wedding project",
	RunE:  runProjectCreate,
}

func init() {
	f := projectCreateCmd.Flags()
	f.StringVar(&flagProjectName, "name", "", "Project name")
	f.StringVar(&flagProjectDate, "date", "", "Wedding date (YYYY-MM-DD)")
	f.StringVar(&flagProjectVenue, "venue", "", "Venue")
	f.StringVar(&flagProjectBudget, "budget", "", "Total budget, e.g. 30000")
	f.IntVar(&flagProjectGuests, "guests", 0, "Expected guest count")
	_ = projectCreateCmd.MarkFlagRequired("name")

	projectCmd.AddCommand(projectCreateCmd)
	rootCmd.AddCommand(projectsCmd, projectCmd)
}

func runProjects(cmd *cobra.Command, _ []string) error {
	projects, err := newClient().ListProjects(cmd.Context())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("\n  No projects yet. Create one with `planhaus project create --name ...`.")
		return nil
	}

	now := time.Now()
	fmt.Println()
	fmt.Println(cli.RenderTitle("PROJECTS"))
	fmt.Println()

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{
			cli.Truncate(p.Name, 28),
			cli.FormatDate(p.WeddingDate),
			daysLabel(p, now),
			cli.FormatDecimal(model.ParseAmount(p.BudgetTotal)),
			p.ID.String(),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Project", "Date", "Countdown", "Budget", "ID"},
		Rows:    rows,
	}))
	return nil
}

func daysLabel(p model.WeddingProject, now time.Time) string {
	if p.WeddingDate == nil {
		return "-"
	}
	return cli.FormatDays(pipeline.DaysUntil(p.WeddingDate, now))
}

func runProjectCreate(cmd *cobra.Command, _ []string) error {
	body := map[string]any{"name": flagProjectName}
	if flagProjectDate != "" {
		if _, err := time.Parse(time.DateOnly, flagProjectDate); err != nil {
			return errors.New("--date must look like 2026-09-12")
		}
		body["weddingDate"] = flagProjectDate
	}
	if flagProjectVenue != "" {
		body["venue"] = flagProjectVenue
	}
	if flagProjectBudget != "" {
		body["budgetTotal"] = model.ParseAmount(flagProjectBudget).StringFixed(2)
	}
	if flagProjectGuests > 0 {
		body["guestCount"] = flagProjectGuests
	}

	p, err := newClient().CreateProject(cmd.Context(), body)
	if err != nil {
		return err
	}
	fmt.Printf("  Created %q (%s)\n", p.Name, p.ID)
	if cfg.Client.DefaultProject == "" {
		cfg.Client.DefaultProject = p.ID.String()
		if err := saveConfig(cfg); err == nil {
			fmt.Println("  Set as your default project.")
		}
	}
	return nil
}
