package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
)

const taskColumns = `id, project_id, title, category, priority, status, due_date, completed_at, version, created_at, updated_at`

func scanTask(row scanner) (model.Task, error) {
	var (
		t                model.Task
		id, pid          string
		due, completed   sql.NullString
		created, updated string
		priority, status string
	)
	err := row.Scan(&id, &pid, &t.Title, &t.Category, &priority, &status, &due, &completed, &t.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	if err != nil {
		return model.Task{}, err
	}
	t.ID, _ = uuid.Parse(id)
	t.ProjectID, _ = uuid.Parse(pid)
	t.Priority = model.Priority(priority)
	t.Status = model.TaskStatus(status)
	t.DueDate = timePtr(due)
	t.CompletedAt = timePtr(completed)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	return t, nil
}

// CreateTask inserts t under t.ProjectID.
func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	now := s.timestamp()
	t.ID = uuid.New()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.ProjectID.String(), t.Title, t.Category, string(t.Priority), string(t.Status),
		nullTime(t.DueDate), nullTime(t.CompletedAt), t.Version, formatTime(now), formatTime(now))
	return err
}

// GetTask returns one task of a project.
func (s *Store) GetTask(ctx context.Context, projectID, id uuid.UUID) (model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND project_id = ?`,
		id.String(), projectID.String())
	return scanTask(row)
}

// ListTasks returns a project's tasks, due first then by creation.
func (s *Store) ListTasks(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE project_id = ?
		ORDER BY due_date IS NULL, due_date, created_at`, projectID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask writes t if its Version still matches, then bumps it.
func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET
		title = ?, category = ?, priority = ?, status = ?, due_date = ?, completed_at = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND project_id = ? AND version = ?`,
		t.Title, t.Category, string(t.Priority), string(t.Status), nullTime(t.DueDate), nullTime(t.CompletedAt),
		formatTime(now), t.ID.String(), t.ProjectID.String(), t.Version)
	if err != nil {
		return err
	}
	if err := s.checkUpdate(ctx, res, `SELECT 1 FROM tasks WHERE id = ? AND project_id = ?`,
		t.ID.String(), t.ProjectID.String()); err != nil {
		return err
	}
	t.Version++
	t.UpdatedAt = now
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, projectID, id uuid.UUID) error {
	return s.deleteRow(ctx, "tasks", id.String(), projectID.String())
}
