package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/events"
	"github.com/theirongolddev/planhaus/internal/model"
)

// record stores an activity entry and fans it out to WebSocket clients and
// the publisher. Failures are logged; the mutation already happened.
func (s *Server) record(ctx context.Context, projectID, userID uuid.UUID, action, entityType, entityID, desc string) {
	a := model.Activity{
		ProjectID:   projectID,
		UserID:      userID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: desc,
	}
	if err := s.store.RecordActivity(ctx, &a); err != nil {
		s.log.Warn("recording activity", zap.String("project", projectID.String()), zap.Error(err))
		a.CreatedAt = s.now()
	}

	msg := events.Message{
		Type:       events.TypeActivity,
		ProjectID:  projectID.String(),
		UserID:     userID.String(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		At:         a.CreatedAt,
	}
	s.hub.Broadcast(msg)
	if err := s.pub.Publish(ctx, events.Subject(msg.ProjectID), msg); err != nil {
		s.log.Warn("publishing activity", zap.String("project", msg.ProjectID), zap.Error(err))
	}
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.projectAccess(w, r, false)
	if !ok {
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeValidation(w, fieldErrors{"limit": "must be between 1 and 500"})
			return
		}
		limit = n
	}
	list, err := s.store.ListActivities(r.Context(), acc.projectID, limit)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCollaborators(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.projectAccess(w, r, false)
	if !ok {
		return
	}
	members, err := s.store.ListMembers(r.Context(), acc.projectID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	online := s.hub.Online(acc.projectID.String())
	for i := range members {
		members[i].Online = online[members[i].UserID.String()]
	}
	writeJSON(w, http.StatusOK, members)
}
