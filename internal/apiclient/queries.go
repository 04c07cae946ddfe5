package apiclient

import (
	"context"

	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/querycache"
)

// Queries reads through the query cache so repeated and concurrent reads
// of the same resource share one request.
type Queries struct {
	client *Client
	cache  *querycache.Cache
}

// NewQueries binds a client to a cache.
func NewQueries(c *Client, cache *querycache.Cache) *Queries {
	return &Queries{client: c, cache: cache}
}

// Cache returns the underlying cache.
func (q *Queries) Cache() *querycache.Cache { return q.cache }

// Client returns the underlying client.
func (q *Queries) Client() *Client { return q.client }

func (q *Queries) Projects(ctx context.Context) ([]model.WeddingProject, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Projects(), q.client.ListProjects)
}

func (q *Queries) Project(ctx context.Context, id string) (model.WeddingProject, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Project(id), func(ctx context.Context) (model.WeddingProject, error) {
		return q.client.GetProject(ctx, id)
	})
}

func (q *Queries) Dashboard(ctx context.Context, id string) (model.DashboardStats, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Dashboard(id), func(ctx context.Context) (model.DashboardStats, error) {
		return q.client.DashboardStats(ctx, id)
	})
}

func (q *Queries) Tasks(ctx context.Context, id string) ([]model.Task, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Tasks(id), func(ctx context.Context) ([]model.Task, error) {
		return q.client.ListTasks(ctx, id)
	})
}

func (q *Queries) Guests(ctx context.Context, id string) ([]model.Guest, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Guests(id), func(ctx context.Context) ([]model.Guest, error) {
		return q.client.ListGuests(ctx, id)
	})
}

func (q *Queries) Budget(ctx context.Context, id string) ([]model.BudgetItem, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Budget(id), func(ctx context.Context) ([]model.BudgetItem, error) {
		return q.client.ListBudgetItems(ctx, id)
	})
}

func (q *Queries) Vendors(ctx context.Context, id string) ([]model.Vendor, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Vendors(id), func(ctx context.Context) ([]model.Vendor, error) {
		return q.client.ListVendors(ctx, id)
	})
}

func (q *Queries) Activities(ctx context.Context, id string) ([]model.Activity, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Activities(id), func(ctx context.Context) ([]model.Activity, error) {
		return q.client.Activities(ctx, id)
	})
}

func (q *Queries) Collaborators(ctx context.Context, id string) ([]model.Collaborator, error) {
	return querycache.Get(ctx, q.cache, querycache.Keys.Collaborators(id), func(ctx context.Context) ([]model.Collaborator, error) {
		return q.client.Collaborators(ctx, id)
	})
}

// Mutated invalidates what a write to entity in projectID makes stale: the
// entity list, the dashboard stats and the activity feed.
func (q *Queries) Mutated(projectID, entity string) {
	if k, ok := querycache.Keys.ForEntity(projectID, entity); ok {
		q.cache.Invalidate(k)
	}
	q.cache.Invalidate(querycache.Keys.DashboardScope(projectID))
	q.cache.Invalidate(querycache.Keys.Activities(projectID))
}

// PrefetchPlan is the querycache.Planner for project selection: the
// dashboard's own queries first, then the lists a user usually opens next.
func (q *Queries) PrefetchPlan(projectID string) querycache.Plan {
	req := func(key querycache.Key, fetch func(context.Context) (any, error)) querycache.Request {
		return querycache.Request{Key: key, Fetch: fetch}
	}
	return querycache.Plan{
		Essential: []querycache.Request{
			req(querycache.Keys.Project(projectID), func(ctx context.Context) (any, error) {
				return q.client.GetProject(ctx, projectID)
			}),
			req(querycache.Keys.Dashboard(projectID), func(ctx context.Context) (any, error) {
				return q.client.DashboardStats(ctx, projectID)
			}),
			req(querycache.Keys.Tasks(projectID), func(ctx context.Context) (any, error) {
				return q.client.ListTasks(ctx, projectID)
			}),
		},
		Secondary: []querycache.Request{
			req(querycache.Keys.Guests(projectID), func(ctx context.Context) (any, error) {
				return q.client.ListGuests(ctx, projectID)
			}),
			req(querycache.Keys.Budget(projectID), func(ctx context.Context) (any, error) {
				return q.client.ListBudgetItems(ctx, projectID)
			}),
			req(querycache.Keys.Vendors(projectID), func(ctx context.Context) (any, error) {
				return q.client.ListVendors(ctx, projectID)
			}),
			req(querycache.Keys.Activities(projectID), func(ctx context.Context) (any, error) {
				return q.client.Activities(ctx, projectID)
			}),
			req(querycache.Keys.Collaborators(projectID), func(ctx context.Context) (any, error) {
				return q.client.Collaborators(ctx, projectID)
			}),
		},
	}
}
