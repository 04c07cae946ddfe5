package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/store"
)

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC 3339 timestamp. An empty
// string clears the date.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.New("must be YYYY-MM-DD or RFC 3339")
	}
	t = t.UTC()
	return &t, nil
}

// access is the caller's standing in the project named by the {id} path
// value.
type access struct {
	projectID uuid.UUID
	user      model.User
	role      string
}

func (a access) canWrite() bool {
	return a.role == model.RoleOwner || a.role == model.RoleEditor
}

// projectAccess resolves {id} and the caller's membership. Non-members get
// 404 so project ids do not leak.
func (s *Server) projectAccess(w http.ResponseWriter, r *http.Request, write bool) (access, bool) {
	a, _ := authFrom(r.Context())
	pid, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "project not found")
		return access{}, false
	}
	role, err := s.store.MemberRole(r.Context(), pid, a.User.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return access{}, false
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return access{}, false
	}
	acc := access{projectID: pid, user: a.User, role: role}
	if write && !acc.canWrite() {
		writeError(w, http.StatusForbidden, "read-only access")
		return access{}, false
	}
	return acc, true
}

type projectInput struct {
	Name        *string `json:"name"`
	WeddingDate *string `json:"weddingDate"`
	Venue       *string `json:"venue"`
	BudgetTotal *string `json:"budgetTotal"`
	GuestCount  *int    `json:"guestCount"`
	Version     *int    `json:"version"`
}

func (in projectInput) apply(p *model.WeddingProject, fields fieldErrors) {
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name == "" {
			fields.add("name", "required")
		} else {
			p.Name = name
		}
	}
	if in.WeddingDate != nil {
		d, err := parseDate(*in.WeddingDate)
		if err != nil {
			fields.add("weddingDate", err.Error())
		} else {
			p.WeddingDate = d
		}
	}
	if in.Venue != nil {
		p.Venue = strings.TrimSpace(*in.Venue)
	}
	if in.BudgetTotal != nil {
		if !validMoney(*in.BudgetTotal) {
			fields.add("budgetTotal", "must be a non-negative amount")
		} else {
			p.BudgetTotal = model.ParseAmount(*in.BudgetTotal).String()
		}
	}
	if in.GuestCount != nil {
		if *in.GuestCount < 0 {
			fields.add("guestCount", "must not be negative")
		} else {
			p.GuestCount = *in.GuestCount
		}
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())
	projects, err := s.store.ListProjectsForUser(r.Context(), a.User.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	a, _ := authFrom(r.Context())
	var in projectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	fields := fieldErrors{}
	if in.Name == nil {
		fields.add("name", "required")
	}
	var p model.WeddingProject
	in.apply(&p, fields)
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	if err := s.store.CreateProject(r.Context(), &p, a.User.ID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.record(r.Context(), p.ID, a.User.ID, model.ActionCreated, "project", p.ID.String(), "created project "+p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.projectAccess(w, r, false)
	if !ok {
		return
	}
	p, err := s.store.GetProject(r.Context(), acc.projectID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.projectAccess(w, r, true)
	if !ok {
		return
	}
	var in projectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := s.store.GetProject(r.Context(), acc.projectID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if in.Version != nil {
		p.Version = *in.Version
	}
	fields := fieldErrors{}
	in.apply(&p, fields)
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	if err := s.store.UpdateProject(r.Context(), &p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.record(r.Context(), p.ID, acc.user.ID, model.ActionUpdated, "project", p.ID.String(), "updated project "+p.Name)
	writeJSON(w, http.StatusOK, p)
}

// handleAddMember shares a project with an existing user. Only owners may
// do this.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.projectAccess(w, r, true)
	if !ok {
		return
	}
	if acc.role != model.RoleOwner {
		writeError(w, http.StatusForbidden, "only owners can add members")
		return
	}
	var in struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	role := model.NormalizeKey(in.Role)
	if role == "" {
		role = model.RoleEditor
	}
	fields := fieldErrors{}
	if role != model.RoleEditor && role != model.RoleViewer && role != model.RoleOwner {
		fields.add("role", "must be owner, editor or viewer")
	}
	if strings.TrimSpace(in.Email) == "" {
		fields.add("email", "required")
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}
	user, err := s.store.GetUserByEmail(r.Context(), in.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeValidation(w, fieldErrors{"email": "no user with this email"})
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.AddMember(r.Context(), acc.projectID, user.ID, role); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.record(r.Context(), acc.projectID, acc.user.ID, model.ActionCreated, "member", user.ID.String(), "added "+user.Email+" as "+role)
	writeJSON(w, http.StatusCreated, model.Collaborator{UserID: user.ID, Name: user.Name, Email: user.Email, Role: role})
}
