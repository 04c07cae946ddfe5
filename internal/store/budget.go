package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
)

const budgetColumns = `id, project_id, category, description, estimated_cost, actual_cost, paid, version, created_at, updated_at`

func scanBudgetItem(row scanner) (model.BudgetItem, error) {
	var (
		b                model.BudgetItem
		id, pid          string
		paid             int
		created, updated string
	)
	err := row.Scan(&id, &pid, &b.Category, &b.Description, &b.EstimatedCost, &b.ActualCost, &paid, &b.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BudgetItem{}, ErrNotFound
	}
	if err != nil {
		return model.BudgetItem{}, err
	}
	b.ID, _ = uuid.Parse(id)
	b.ProjectID, _ = uuid.Parse(pid)
	b.Paid = paid != 0
	b.CreatedAt = parseTime(created)
	b.UpdatedAt = parseTime(updated)
	return b, nil
}

// CreateBudgetItem inserts b under b.ProjectID.
func (s *Store) CreateBudgetItem(ctx context.Context, b *model.BudgetItem) error {
	now := s.timestamp()
	b.ID = uuid.New()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO budget_items (`+budgetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.ProjectID.String(), b.Category, b.Description, b.EstimatedCost, b.ActualCost,
		boolInt(b.Paid), b.Version, formatTime(now), formatTime(now))
	return err
}

// GetBudgetItem returns one budget line of a project.
func (s *Store) GetBudgetItem(ctx context.Context, projectID, id uuid.UUID) (model.BudgetItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budget_items WHERE id = ? AND project_id = ?`,
		id.String(), projectID.String())
	return scanBudgetItem(row)
}

// ListBudgetItems returns a project's budget lines in entry order.
func (s *Store) ListBudgetItems(ctx context.Context, projectID uuid.UUID) ([]model.BudgetItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budget_items
		WHERE project_id = ? ORDER BY created_at, id`, projectID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []model.BudgetItem{}
	for rows.Next() {
		b, err := scanBudgetItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// UpdateBudgetItem writes b if its Version still matches, then bumps it.
func (s *Store) UpdateBudgetItem(ctx context.Context, b *model.BudgetItem) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `UPDATE budget_items SET
		category = ?, description = ?, estimated_cost = ?, actual_cost = ?, paid = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND project_id = ? AND version = ?`,
		b.Category, b.Description, b.EstimatedCost, b.ActualCost, boolInt(b.Paid),
		formatTime(now), b.ID.String(), b.ProjectID.String(), b.Version)
	if err != nil {
		return err
	}
	if err := s.checkUpdate(ctx, res, `SELECT 1 FROM budget_items WHERE id = ? AND project_id = ?`,
		b.ID.String(), b.ProjectID.String()); err != nil {
		return err
	}
	b.Version++
	b.UpdatedAt = now
	return nil
}

// DeleteBudgetItem removes a budget line.
func (s *Store) DeleteBudgetItem(ctx context.Context, projectID, id uuid.UUID) error {
	return s.deleteRow(ctx, "budget_items", id.String(), projectID.String())
}
