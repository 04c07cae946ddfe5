package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
)

const projectColumns = `p.id, p.name, p.wedding_date, p.venue, p.budget_total, p.guest_count, p.version, p.created_at, p.updated_at`

func scanProject(row scanner) (model.WeddingProject, error) {
	var (
		p            model.WeddingProject
		id           string
		wedding      sql.NullString
		created, upd string
	)
	err := row.Scan(&id, &p.Name, &wedding, &p.Venue, &p.BudgetTotal, &p.GuestCount, &p.Version, &created, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WeddingProject{}, ErrNotFound
	}
	if err != nil {
		return model.WeddingProject{}, err
	}
	p.ID, _ = uuid.Parse(id)
	p.WeddingDate = timePtr(wedding)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(upd)
	return p, nil
}

// CreateProject inserts p and makes ownerID its owner. ID, version and
// timestamps are assigned here.
func (s *Store) CreateProject(ctx context.Context, p *model.WeddingProject, ownerID uuid.UUID) error {
	now := s.timestamp()
	p.ID = uuid.New()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	if strings.TrimSpace(p.BudgetTotal) == "" {
		p.BudgetTotal = "0"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO projects
		(id, name, wedding_date, venue, budget_total, guest_count, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Name, nullTime(p.WeddingDate), p.Venue, p.BudgetTotal, p.GuestCount,
		p.Version, formatTime(now), formatTime(now))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, created_at) VALUES (?, ?, ?, ?)`,
		p.ID.String(), ownerID.String(), model.RoleOwner, formatTime(now))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetProject returns a project by id.
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (model.WeddingProject, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id.String())
	return scanProject(row)
}

// ListProjectsForUser returns the projects userID belongs to, oldest first.
func (s *Store) ListProjectsForUser(ctx context.Context, userID uuid.UUID) ([]model.WeddingProject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+`
		FROM projects p JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = ?
		ORDER BY p.created_at, p.id`, userID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	projects := []model.WeddingProject{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject writes p if its Version still matches, then bumps it.
func (s *Store) UpdateProject(ctx context.Context, p *model.WeddingProject) error {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET
		name = ?, wedding_date = ?, venue = ?, budget_total = ?, guest_count = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.Name, nullTime(p.WeddingDate), p.Venue, p.BudgetTotal, p.GuestCount,
		formatTime(now), p.ID.String(), p.Version)
	if err != nil {
		return err
	}
	if err := s.checkUpdate(ctx, res, `SELECT 1 FROM projects WHERE id = ?`, p.ID.String()); err != nil {
		return err
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

// AddMember adds or re-roles a project member.
func (s *Store) AddMember(ctx context.Context, projectID, userID uuid.UUID, role string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_members (project_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, user_id) DO UPDATE SET role = excluded.role`,
		projectID.String(), userID.String(), role, formatTime(s.timestamp()))
	return err
}

// MemberRole returns userID's role in projectID, or ErrNotFound.
func (s *Store) MemberRole(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID.String(), userID.String()).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

// ListMembers returns a project's members. Online is left false.
func (s *Store) ListMembers(ctx context.Context, projectID uuid.UUID) ([]model.Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u.id, u.name, u.email, m.role
		FROM project_members m JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ?
		ORDER BY m.created_at, u.email`, projectID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	members := []model.Collaborator{}
	for rows.Next() {
		var (
			c  model.Collaborator
			id string
		)
		if err := rows.Scan(&id, &c.Name, &c.Email, &c.Role); err != nil {
			return nil, err
		}
		c.UserID, _ = uuid.Parse(id)
		members = append(members, c)
	}
	return members, rows.Err()
}
