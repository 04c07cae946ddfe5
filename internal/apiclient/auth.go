package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/model"
)

// AuthResponse is the body of login and refresh.
type AuthResponse struct {
	SessionID    string     `json:"sessionId"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	User         model.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges a password for a session and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return resp, err
	}
	if resp.SessionID == "" {
		return resp, errors.New("apiclient: login response missing session")
	}
	creds := Credentials{
		SessionID:    resp.SessionID,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
		Email:        resp.User.Email,
	}
	if err := c.tokens.Save(creds); err != nil {
		return resp, fmt.Errorf("saving credentials: %w", err)
	}
	return resp, nil
}

// Logout ends the session on the server and forgets it locally. The local
// copy is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	creds, _ := c.tokens.Load()
	var err error
	if creds.Valid() {
		err = c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	}
	if clearErr := c.tokens.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// refreshSession rotates the session. Concurrent 401s share one refresh; a
// caller whose stale token was already replaced skips the call.
func (c *Client) refreshSession(ctx context.Context, staleSession string) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		creds, _ := c.tokens.Load()
		if creds.SessionID != "" && creds.SessionID != staleSession {
			return nil, nil
		}
		if creds.RefreshToken == "" {
			_ = c.tokens.Clear()
			return nil, ErrLoginRequired
		}

		var resp AuthResponse
		err := c.Do(ctx, http.MethodPost, "/api/auth/refresh", refreshRequest{RefreshToken: creds.RefreshToken}, &resp)
		var apiErr *APIError
		if err != nil && !errors.As(err, &apiErr) {
			return nil, fmt.Errorf("apiclient: refreshing session: %w", err)
		}
		if err != nil || resp.SessionID == "" {
			c.log.Info("session refresh failed", zap.Error(err))
			_ = c.tokens.Clear()
			return nil, ErrLoginRequired
		}
		creds.SessionID = resp.SessionID
		creds.RefreshToken = resp.RefreshToken
		creds.ExpiresAt = resp.ExpiresAt
		return nil, c.tokens.Save(creds)
	})
	return err
}
