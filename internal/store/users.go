package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/theirongolddev/planhaus/internal/model"
)

// CreateUser adds an account with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, name, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.User{}, errors.New("store: email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password: %w", err)
	}

	u := model.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: s.timestamp(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID.String(), u.Email, u.Name, string(hash), formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("user %s: %w", email, ErrDuplicate)
		}
		return model.User{}, err
	}
	return u, nil
}

// Authenticate checks an email/password pair.
func (s *Store) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	var (
		u    model.User
		id   string
		hash string
		ts   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE email = ?`,
		strings.TrimSpace(email)).Scan(&id, &u.Email, &u.Name, &hash, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return model.User{}, ErrInvalidCredentials
	}
	u.ID, _ = uuid.Parse(id)
	u.CreatedAt = parseTime(ts)
	return u, nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	var (
		u  model.User
		ts string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, name, created_at FROM users WHERE id = ?`, id.String()).
		Scan(&u.Email, &u.Name, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.ID = id
	u.CreatedAt = parseTime(ts)
	return u, nil
}

// GetUserByEmail returns a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, strings.TrimSpace(email)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.User{}, fmt.Errorf("user id %q: %w", id, err)
	}
	return s.GetUser(ctx, uid)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
