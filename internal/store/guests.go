package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
)

const guestColumns = `id, project_id, name, email, rsvp_status, guest_group, plus_one, version, created_at, updated_at`

func scanGuest(row scanner) (model.Guest, error) {
	var (
		g                model.Guest
		id, pid, rsvp    string
		plusOne          int
		created, updated string
	)
	err := row.Scan(&id, &pid, &g.Name, &g.Email, &rsvp, &g.Group, &plusOne, &g.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Guest{}, ErrNotFound
	}
	if err != nil {
		return model.Guest{}, err
	}
	g.ID, _ = uuid.Parse(id)
	g.ProjectID, _ = uuid.Parse(pid)
	g.RSVP = model.RSVPStatus(rsvp)
	g.PlusOne = plusOne != 0
	g.CreatedAt = parseTime(created)
	g.UpdatedAt = parseTime(updated)
	return g, nil
}

// CreateGuest inserts g under g.ProjectID.
func (s *Store) CreateGuest(ctx context.Context, g *model.Guest) error {
	now := s.timestamp()
	g.ID = uuid.New()
	g.Version = 1
	g.CreatedAt = now
	g.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO guests (`+guestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID.String(), g.ProjectID.String(), g.Name, g.Email, string(g.RSVP), g.Group, boolInt(g.PlusOne),
		g.Version, formatTime(now), formatTime(now))
	return err
}

// GetGuest returns one guest of a project.
func (s *Store) GetGuest(ctx context.Context, projectID, id uuid.UUID) (model.Guest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = ? AND project_id = ?`,
		id.String(), projectID.String())
	return scanGuest(row)
}

// ListGuests returns a project's guests by name.
func (s *Store) ListGuests(ctx context.Context, projectID uuid.UUID) ([]model.Guest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+guestColumns+` FROM guests
		WHERE project_id = ? ORDER BY name COLLATE NOCASE, created_at`, projectID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	guests := []model.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}

// UpdateGuest writes g if its Version still matches, then bumps it.
func (s *Store) UpdateGuest(ctx context.Context, g *model.Guest) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `UPDATE guests SET
		name = ?, email = ?, rsvp_status = ?, guest_group = ?, plus_one = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND project_id = ? AND version = ?`,
		g.Name, g.Email, string(g.RSVP), g.Group, boolInt(g.PlusOne),
		formatTime(now), g.ID.String(), g.ProjectID.String(), g.Version)
	if err != nil {
		return err
	}
	if err := s.checkUpdate(ctx, res, `SELECT 1 FROM guests WHERE id = ? AND project_id = ?`,
		g.ID.String(), g.ProjectID.String()); err != nil {
		return err
	}
	g.Version++
	g.UpdatedAt = now
	return nil
}

// DeleteGuest removes a guest.
func (s *Store) DeleteGuest(ctx context.Context, projectID, id uuid.UUID) error {
	return s.deleteRow(ctx, "guests", id.String(), projectID.String())
}
