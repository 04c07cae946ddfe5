package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/planhaus/internal/model"
)

// Source reads a project's records. *store.Store satisfies it.
type Source interface {
	GetProject(ctx context.Context, id uuid.UUID) (model.WeddingProject, error)
	ListTasks(ctx context.Context, projectID uuid.UUID) ([]model.Task, error)
	ListGuests(ctx context.Context, projectID uuid.UUID) ([]model.Guest, error)
	ListBudgetItems(ctx context.Context, projectID uuid.UUID) ([]model.BudgetItem, error)
	ListVendors(ctx context.Context, projectID uuid.UUID) ([]model.Vendor, error)
}

// Load reads the project and its collections concurrently.
func Load(ctx context.Context, src Source, projectID uuid.UUID) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := src.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("loading project: %w", err)
		}
		snap.Project = p
		return nil
	})
	g.Go(func() error {
		tasks, err := src.ListTasks(ctx, projectID)
		if err != nil {
			return fmt.Errorf("loading tasks: %w", err)
		}
		snap.Tasks = tasks
		return nil
	})
	g.Go(func() error {
		guests, err := src.ListGuests(ctx, projectID)
		if err != nil {
			return fmt.Errorf("loading guests: %w", err)
		}
		snap.Guests = guests
		return nil
	})
	g.Go(func() error {
		items, err := src.ListBudgetItems(ctx, projectID)
		if err != nil {
			return fmt.Errorf("loading budget: %w", err)
		}
		snap.Budget = items
		return nil
	})
	g.Go(func() error {
		vendors, err := src.ListVendors(ctx, projectID)
		if err != nil {
			return fmt.Errorf("loading vendors: %w", err)
		}
		snap.Vendors = vendors
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
