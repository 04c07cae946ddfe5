package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/pipeline"
)

// handleDashboardStats aggregates ?projectId=, or the caller's first
// project when it is omitted.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())

	var pid uuid.UUID
	if raw := r.URL.Query().Get("projectId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeValidation(w, fieldErrors{"projectId": "must be a project id"})
			return
		}
		if _, err := s.store.MemberRole(r.Context(), id, a.User.ID); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		pid = id
	} else {
		projects, err := s.store.ListProjectsForUser(r.Context(), a.User.ID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if len(projects) == 0 {
			writeJSON(w, http.StatusOK, model.DashboardStats{})
			return
		}
		pid = projects[0].ID
	}

	snap, err := pipeline.Load(r.Context(), s.store, pid)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.ComputeDashboardStats(snap, s.now()))
}
