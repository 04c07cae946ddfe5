package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/planhaus/internal/adapters"
	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/querycache"
)

const loadTimeout = 30 * time.Second

// snapshot is everything the tabs render for one project.
type snapshot struct {
	Project       model.WeddingProject
	Stats         model.DashboardStats
	Tasks         []model.Task
	Budget        []model.BudgetItem
	Guests        []model.Guest
	Vendors       []model.Vendor
	Activities    []model.Activity
	Collaborators []model.Collaborator
	LoadedAt      time.Time
	// Placeholder is set when the snapshot was assembled from retained
	// cache entries while a refetch runs.
	Placeholder bool
}

// charts holds the adapter outputs derived from a snapshot.
type charts struct {
	donut    adapters.Donut
	progress adapters.BudgetProgress
	status   adapters.StatusBreakdown
	funnel   adapters.Funnel
	burndown adapters.Burndown
}

func deriveCharts(s snapshot, now time.Time) charts {
	budget := adapters.BudgetDataFrom(s.Stats.Budget, s.Budget)
	start, end := adapters.BurndownWindow(s.Project, s.Tasks, now)
	return charts{
		donut:    adapters.ToDonut(budget),
		progress: adapters.CalculateBudgetProgress(budget),
		status:   adapters.ToStatus(s.Tasks),
		funnel:   adapters.ToFunnel(s.Vendors),
		burndown: adapters.ToBurndown(s.Tasks, start, end, now),
	}
}

type projectsLoadedMsg struct {
	projects []model.WeddingProject
	err      error
}

type snapshotMsg struct {
	projectID string
	snap      snapshot
	err       error
}

func loadProjectsCmd(q *apiclient.Queries) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		projects, err := q.Projects(ctx)
		return projectsLoadedMsg{projects: projects, err: err}
	}
}

// loadSnapshotCmd reads every query for a project through the cache. Fresh
// entries come back without a request; concurrent readers share one.
func loadSnapshotCmd(q *apiclient.Queries, projectID string, now func() time.Time) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		var s snapshot
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			s.Project, err = q.Project(ctx, projectID)
			return
		})
		g.Go(func() (err error) {
			s.Stats, err = q.Dashboard(ctx, projectID)
			return
		})
		g.Go(func() (err error) {
			s.Tasks, err = q.Tasks(ctx, projectID)
			return
		})
		g.Go(func() (err error) {
			s.Budget, err = q.Budget(ctx, projectID)
			return
		})
		g.Go(func() (err error) {
			s.Guests, err = q.Guests(ctx, projectID)
			return
		})
		g.Go(func() (err error) {
			s.Vendors, err = q.Vendors(ctx, projectID)
			return
		})
		g.Go(func() (err error) {
			s.Activities, err = q.Activities(ctx, projectID)
			return
		})
		g.Go(func() (err error) {
			s.Collaborators, err = q.Collaborators(ctx, projectID)
			return
		})
		err := g.Wait()
		s.LoadedAt = now()
		return snapshotMsg{projectID: projectID, snap: s, err: err}
	}
}

// peekSnapshot assembles a placeholder from retained cache entries so a
// project switch shows the last known data immediately. It needs at least
// the project and its dashboard stats.
func peekSnapshot(c *querycache.Cache, projectID string) (snapshot, bool) {
	s := snapshot{Placeholder: true}
	var ok bool
	if s.Project, ok = peek[model.WeddingProject](c, querycache.Keys.Project(projectID)); !ok {
		return snapshot{}, false
	}
	if s.Stats, ok = peek[model.DashboardStats](c, querycache.Keys.Dashboard(projectID)); !ok {
		return snapshot{}, false
	}
	s.Tasks, _ = peek[[]model.Task](c, querycache.Keys.Tasks(projectID))
	s.Budget, _ = peek[[]model.BudgetItem](c, querycache.Keys.Budget(projectID))
	s.Guests, _ = peek[[]model.Guest](c, querycache.Keys.Guests(projectID))
	s.Vendors, _ = peek[[]model.Vendor](c, querycache.Keys.Vendors(projectID))
	s.Activities, _ = peek[[]model.Activity](c, querycache.Keys.Activities(projectID))
	s.Collaborators, _ = peek[[]model.Collaborator](c, querycache.Keys.Collaborators(projectID))
	return s, true
}

func peek[T any](c *querycache.Cache, key querycache.Key) (T, bool) {
	var zero T
	v, _, ok := c.Peek(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
