package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/store"
)

type authResponse struct {
	SessionID    string     `json:"sessionId"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	User         model.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	fields := fieldErrors{}
	if strings.TrimSpace(req.Email) == "" {
		fields.add("email", "required")
	}
	if req.Password == "" {
		fields.add("password", "required")
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	user, err := s.store.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	sess, err := s.store.CreateSession(r.Context(), user.ID, s.cfg.SessionTTL)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		SessionID:    sess.ID,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		User:         user,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeValidation(w, fieldErrors{"refreshToken": "required"})
		return
	}
	sess, err := s.store.RefreshSession(r.Context(), req.RefreshToken, s.cfg.SessionTTL)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	user, err := s.store.GetUser(r.Context(), sess.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		SessionID:    sess.ID,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		User:         user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())
	if err := s.store.DeleteSession(r.Context(), a.Session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
