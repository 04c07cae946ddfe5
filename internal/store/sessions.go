package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/theirongolddev/planhaus/internal/model"
)

const (
	tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	tokenLength   = 40
)

func newToken(prefix string) (string, error) {
	id, err := nanoid.Generate(tokenAlphabet, tokenLength)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return prefix + id, nil
}

// CreateSession opens a bearer session for userID lasting ttl.
func (s *Store) CreateSession(ctx context.Context, userID uuid.UUID, ttl time.Duration) (model.Session, error) {
	return s.insertSession(ctx, s.db, userID, ttl)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertSession(ctx context.Context, db execer, userID uuid.UUID, ttl time.Duration) (model.Session, error) {
	id, err := newToken("ses_")
	if err != nil {
		return model.Session{}, err
	}
	refresh, err := newToken("ref_")
	if err != nil {
		return model.Session{}, err
	}

	now := s.timestamp()
	sess := model.Session{
		ID:           id,
		RefreshToken: refresh,
		UserID:       userID,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (id, refresh_token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.RefreshToken, userID.String(), formatTime(sess.ExpiresAt), formatTime(now))
	if err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// GetSession returns the session with bearer token id. Expired sessions
// are still returned; callers check Expired.
func (s *Store) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, refresh_token, user_id, expires_at, created_at FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func scanSession(row scanner) (model.Session, error) {
	var (
		sess              model.Session
		userID, exp, crtd string
	)
	err := row.Scan(&sess.ID, &sess.RefreshToken, &userID, &exp, &crtd)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	sess.UserID, _ = uuid.Parse(userID)
	sess.ExpiresAt = parseTime(exp)
	sess.CreatedAt = parseTime(crtd)
	return sess, nil
}

// RefreshSession exchanges a refresh token for a new session. The old
// session and its refresh token stop working.
func (s *Store) RefreshSession(ctx context.Context, refreshToken string, ttl time.Duration) (model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Session{}, err
	}
	defer func() { _ = tx.Rollback() }()

	old, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT id, refresh_token, user_id, expires_at, created_at FROM sessions WHERE refresh_token = ?`, refreshToken))
	if err != nil {
		return model.Session{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, old.ID); err != nil {
		return model.Session{}, err
	}

	sess, err := s.insertSession(ctx, tx, old.UserID, ttl)
	if err != nil {
		return model.Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// DeleteSession removes a session. Deleting a missing session is not an
// error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
