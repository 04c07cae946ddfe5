package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/theirongolddev/planhaus/internal/model"
)

// DefaultActivityLimit bounds ListActivities when limit is not positive.
const DefaultActivityLimit = 50

// RecordActivity appends a to its project's feed, assigning a ULID id and
// the creation time.
func (s *Store) RecordActivity(ctx context.Context, a *model.Activity) error {
	now := s.timestamp()
	a.ID = ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	a.CreatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO activities
		(id, project_id, user_id, action, entity_type, entity_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID.String(), a.UserID.String(), a.Action, a.EntityType, a.EntityID,
		a.Description, formatTime(now))
	return err
}

// ListActivities returns the newest activities of a project first.
func (s *Store) ListActivities(ctx context.Context, projectID uuid.UUID, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, user_id, action, entity_type, entity_id, description, created_at
		FROM activities WHERE project_id = ?
		ORDER BY id DESC LIMIT ?`, projectID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	activities := []model.Activity{}
	for rows.Next() {
		var (
			a                 model.Activity
			pid, uid, created string
		)
		if err := rows.Scan(&a.ID, &pid, &uid, &a.Action, &a.EntityType, &a.EntityID, &a.Description, &created); err != nil {
			return nil, err
		}
		a.ProjectID, _ = uuid.Parse(pid)
		a.UserID, _ = uuid.Parse(uid)
		a.CreatedAt = parseTime(created)
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
