package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/theirongolddev/planhaus/internal/model"
)

// Entity collections under a project.
const (
	EntityTasks   = "tasks"
	EntityGuests  = "guests"
	EntityBudget  = "budget"
	EntityVendors = "vendors"
)

// ProjectPath returns the path of a project.
func ProjectPath(projectID string) string {
	return "/api/projects/" + url.PathEscape(projectID)
}

// CollectionPath returns the path of an entity collection.
func CollectionPath(projectID, entity string) string {
	return ProjectPath(projectID) + "/" + entity
}

// ItemPath returns the path of one record. Pass "{id}" as itemID to get an
// autosave update template.
func ItemPath(projectID, entity, itemID string) string {
	if itemID == "{id}" {
		return CollectionPath(projectID, entity) + "/{id}"
	}
	return CollectionPath(projectID, entity) + "/" + url.PathEscape(itemID)
}

func get[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	err := c.Do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ListProjects returns the projects the signed-in user belongs to.
func (c *Client) ListProjects(ctx context.Context) ([]model.WeddingProject, error) {
	return get[[]model.WeddingProject](ctx, c, "/api/projects")
}

// GetProject returns one project.
func (c *Client) GetProject(ctx context.Context, id string) (model.WeddingProject, error) {
	return get[model.WeddingProject](ctx, c, ProjectPath(id))
}

// CreateProject creates a project owned by the signed-in user.
func (c *Client) CreateProject(ctx context.Context, body map[string]any) (model.WeddingProject, error) {
	var out model.WeddingProject
	err := c.Do(ctx, http.MethodPost, "/api/projects", body, &out)
	return out, err
}

// UpdateProject patches a project.
func (c *Client) UpdateProject(ctx context.Context, id string, patch map[string]any) (model.WeddingProject, error) {
	var out model.WeddingProject
	err := c.Do(ctx, http.MethodPatch, ProjectPath(id), patch, &out)
	return out, err
}

// DashboardStats returns aggregated stats. An empty projectID asks the
// server for the user's first project.
func (c *Client) DashboardStats(ctx context.Context, projectID string) (model.DashboardStats, error) {
	path := "/api/dashboard/stats"
	if projectID != "" {
		path += "?" + url.Values{"projectId": {projectID}}.Encode()
	}
	return get[model.DashboardStats](ctx, c, path)
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	return get[[]model.Task](ctx, c, CollectionPath(projectID, EntityTasks))
}

func (c *Client) ListGuests(ctx context.Context, projectID string) ([]model.Guest, error) {
	return get[[]model.Guest](ctx, c, CollectionPath(projectID, EntityGuests))
}

func (c *Client) ListBudgetItems(ctx context.Context, projectID string) ([]model.BudgetItem, error) {
	return get[[]model.BudgetItem](ctx, c, CollectionPath(projectID, EntityBudget))
}

func (c *Client) ListVendors(ctx context.Context, projectID string) ([]model.Vendor, error) {
	return get[[]model.Vendor](ctx, c, CollectionPath(projectID, EntityVendors))
}

// Activities returns the newest activity entries first.
func (c *Client) Activities(ctx context.Context, projectID string) ([]model.Activity, error) {
	return get[[]model.Activity](ctx, c, ProjectPath(projectID)+"/activities")
}

// Collaborators returns project members with presence.
func (c *Client) Collaborators(ctx context.Context, projectID string) ([]model.Collaborator, error) {
	return get[[]model.Collaborator](ctx, c, ProjectPath(projectID)+"/collaborators")
}

// Create posts body to path and returns the created record. Together with
// Update it lets the client back an autosave form.
func (c *Client) Create(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.Do(ctx, http.MethodPost, path, body, &out)
	return out, err
}

// Update patches the record at path.
func (c *Client) Update(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.Do(ctx, http.MethodPatch, path, body, &out)
	return out, err
}

// Delete removes one record.
func (c *Client) Delete(ctx context.Context, projectID, entity, itemID string) error {
	switch entity {
	case EntityTasks, EntityGuests, EntityBudget, EntityVendors:
	default:
		return fmt.Errorf("apiclient: unknown entity %q", entity)
	}
	return c.Do(ctx, http.MethodDelete, ItemPath(projectID, entity, itemID), nil, nil)
}
