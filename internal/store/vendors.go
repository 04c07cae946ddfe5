package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
)

const vendorColumns = `id, project_id, name, category, status, cost, contact, version, created_at, updated_at`

func scanVendor(row scanner) (model.Vendor, error) {
	var (
		v                model.Vendor
		id, pid, status  string
		created, updated string
	)
	err := row.Scan(&id, &pid, &v.Name, &v.Category, &status, &v.Cost, &v.Contact, &v.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vendor{}, ErrNotFound
	}
	if err != nil {
		return model.Vendor{}, err
	}
	v.ID, _ = uuid.Parse(id)
	v.ProjectID, _ = uuid.Parse(pid)
	v.Status = model.VendorStatus(status)
	v.CreatedAt = parseTime(created)
	v.UpdatedAt = parseTime(updated)
	return v, nil
}

// CreateVendor inserts v under v.ProjectID.
func (s *Store) CreateVendor(ctx context.Context, v *model.Vendor) error {
	now := s.timestamp()
	v.ID = uuid.New()
	v.Version = 1
	v.CreatedAt = now
	v.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO vendors (`+vendorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(), v.ProjectID.String(), v.Name, v.Category, string(v.Status), v.Cost, v.Contact,
		v.Version, formatTime(now), formatTime(now))
	return err
}

// GetVendor returns one vendor of a project.
func (s *Store) GetVendor(ctx context.Context, projectID, id uuid.UUID) (model.Vendor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id = ? AND project_id = ?`,
		id.String(), projectID.String())
	return scanVendor(row)
}

// ListVendors returns a project's vendors by name.
func (s *Store) ListVendors(ctx context.Context, projectID uuid.UUID) ([]model.Vendor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+vendorColumns+` FROM vendors
		WHERE project_id = ? ORDER BY name COLLATE NOCASE, created_at`, projectID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	vendors := []model.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// UpdateVendor writes v if its Version still matches, then bumps it.
func (s *Store) UpdateVendor(ctx context.Context, v *model.Vendor) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `UPDATE vendors SET
		name = ?, category = ?, status = ?, cost = ?, contact = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND project_id = ? AND version = ?`,
		v.Name, v.Category, string(v.Status), v.Cost, v.Contact,
		formatTime(now), v.ID.String(), v.ProjectID.String(), v.Version)
	if err != nil {
		return err
	}
	if err := s.checkUpdate(ctx, res, `SELECT 1 FROM vendors WHERE id = ? AND project_id = ?`,
		v.ID.String(), v.ProjectID.String()); err != nil {
		return err
	}
	v.Version++
	v.UpdatedAt = now
	return nil
}

// DeleteVendor removes a vendor.
func (s *Store) DeleteVendor(ctx context.Context, projectID, id uuid.UUID) error {
	return s.deleteRow(ctx, "vendors", id.String(), projectID.String())
}
