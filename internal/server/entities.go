package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/store"
)

// entityRoutes serves one project collection.
type entityRoutes interface {
	collection() string
	list(*Server) http.HandlerFunc
	create(*Server) http.HandlerFunc
	update(*Server) http.HandlerFunc
	remove(*Server) http.HandlerFunc
}

// resource describes a versioned project collection T edited through
// partial input In.
type resource[T any, In any] struct {
	path string // URL segment
	kind string // activity entity type

	listFn   func(*store.Store, context.Context, uuid.UUID) ([]T, error)
	getFn    func(*store.Store, context.Context, uuid.UUID, uuid.UUID) (T, error)
	insertFn func(*store.Store, context.Context, *T) error
	updateFn func(*store.Store, context.Context, *T) error
	deleteFn func(*store.Store, context.Context, uuid.UUID, uuid.UUID) error

	// blank returns a new record with defaults.
	blank func(projectID uuid.UUID) T
	// required reports fields a create must carry.
	required func(In, fieldErrors)
	// apply copies present input fields onto rec.
	apply func(In, *T, fieldErrors, time.Time)
	// version returns the client's expected version, if sent.
	version    func(In) *int
	setVersion func(*T, int)
	describe   func(T) (id, label string)
}

var entities = []entityRoutes{tasks, guests, budgetItems, vendors}

func (s *Server) listHandler(e entityRoutes) http.HandlerFunc   { return e.list(s) }
func (s *Server) createHandler(e entityRoutes) http.HandlerFunc { return e.create(s) }
func (s *Server) updateHandler(e entityRoutes) http.HandlerFunc { return e.update(s) }
func (s *Server) deleteHandler(e entityRoutes) http.HandlerFunc { return e.remove(s) }

func (res resource[T, In]) collection() string { return res.path }

func (res resource[T, In]) list(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := s.projectAccess(w, r, false)
		if !ok {
			return
		}
		items, err := res.listFn(s.store, r.Context(), acc.projectID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (res resource[T, In]) create(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := s.projectAccess(w, r, true)
		if !ok {
			return
		}
		var in In
		if !decodeJSON(w, r, &in) {
			return
		}
		fields := fieldErrors{}
		res.required(in, fields)
		rec := res.blank(acc.projectID)
		res.apply(in, &rec, fields, s.now())
		if len(fields) > 0 {
			writeValidation(w, fields)
			return
		}
		if err := res.insertFn(s.store, r.Context(), &rec); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		id, label := res.describe(rec)
		s.record(r.Context(), acc.projectID, acc.user.ID, model.ActionCreated, res.kind, id, "added "+label)
		writeJSON(w, http.StatusCreated, rec)
	}
}

// update applies a partial edit. A version in the body must match the
// stored one; without it the edit applies to whatever is current.
func (res resource[T, In]) update(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := s.projectAccess(w, r, true)
		if !ok {
			return
		}
		itemID, err := uuid.Parse(r.PathValue("itemId"))
		if err != nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		var in In
		if !decodeJSON(w, r, &in) {
			return
		}
		rec, err := res.getFn(s.store, r.Context(), acc.projectID, itemID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if v := res.version(in); v != nil {
			res.setVersion(&rec, *v)
		}
		fields := fieldErrors{}
		res.apply(in, &rec, fields, s.now())
		if len(fields) > 0 {
			writeValidation(w, fields)
			return
		}
		if err := res.updateFn(s.store, r.Context(), &rec); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		id, label := res.describe(rec)
		s.record(r.Context(), acc.projectID, acc.user.ID, model.ActionUpdated, res.kind, id, "updated "+label)
		writeJSON(w, http.StatusOK, rec)
	}
}

func (res resource[T, In]) remove(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, ok := s.projectAccess(w, r, true)
		if !ok {
			return
		}
		itemID, err := uuid.Parse(r.PathValue("itemId"))
		if err != nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		rec, err := res.getFn(s.store, r.Context(), acc.projectID, itemID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if err := res.deleteFn(s.store, r.Context(), acc.projectID, itemID); err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		id, label := res.describe(rec)
		s.record(r.Context(), acc.projectID, acc.user.ID, model.ActionDeleted, res.kind, id, "removed "+label)
		w.WriteHeader(http.StatusNoContent)
	}
}

func trimmed(p *string) string { return strings.TrimSpace(*p) }

func validMoney(s string) bool {
	return model.ValidAmount(s) && !model.ParseAmount(s).IsNegative()
}

func setMoney(dst *string, src *string, field string, fields fieldErrors) {
	if src == nil {
		return
	}
	if !validMoney(*src) {
		fields.add(field, "must be a non-negative amount")
		return
	}
	*dst = model.ParseAmount(*src).String()
}

type taskInput struct {
	Title    *string `json:"title"`
	Category *string `json:"category"`
	Priority *string `json:"priority"`
	Status   *string `json:"status"`
	DueDate  *string `json:"dueDate"`
	Version  *int    `json:"version"`
}

var tasks = resource[model.Task, taskInput]{
	path:     "tasks",
	kind:     "task",
	listFn:   (*store.Store).ListTasks,
	getFn:    (*store.Store).GetTask,
	insertFn: (*store.Store).CreateTask,
	updateFn: (*store.Store).UpdateTask,
	deleteFn: (*store.Store).DeleteTask,
	blank: func(pid uuid.UUID) model.Task {
		return model.Task{ProjectID: pid, Priority: model.PriorityMedium, Status: model.TaskPending}
	},
	required: func(in taskInput, f fieldErrors) {
		if in.Title == nil {
			f.add("title", "required")
		}
	},
	apply: func(in taskInput, t *model.Task, f fieldErrors, now time.Time) {
		if in.Title != nil {
			if v := trimmed(in.Title); v == "" {
				f.add("title", "required")
			} else {
				t.Title = v
			}
		}
		if in.Category != nil {
			t.Category = trimmed(in.Category)
		}
		if in.Priority != nil {
			if p, ok := model.ParsePriority(*in.Priority); ok {
				t.Priority = p
			} else {
				f.add("priority", "must be low, medium or high")
			}
		}
		if in.Status != nil {
			if st, ok := model.ParseTaskStatus(*in.Status); ok {
				t.Status = st
			} else {
				f.add("status", "must be pending, in_progress or completed")
			}
		}
		if in.DueDate != nil {
			if d, err := parseDate(*in.DueDate); err != nil {
				f.add("dueDate", err.Error())
			} else {
				t.DueDate = d
			}
		}
		switch {
		case t.Done() && t.CompletedAt == nil:
			done := now.UTC()
			t.CompletedAt = &done
		case !t.Done():
			t.CompletedAt = nil
		}
	},
	version:    func(in taskInput) *int { return in.Version },
	setVersion: func(t *model.Task, v int) { t.Version = v },
	describe:   func(t model.Task) (string, string) { return t.ID.String(), "task " + t.Title },
}

type guestInput struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	RSVP    *string `json:"rsvpStatus"`
	Group   *string `json:"group"`
	PlusOne *bool   `json:"plusOne"`
	Version *int    `json:"version"`
}

var guests = resource[model.Guest, guestInput]{
	path:     "guests",
	kind:     "guest",
	listFn:   (*store.Store).ListGuests,
	getFn:    (*store.Store).GetGuest,
	insertFn: (*store.Store).CreateGuest,
	updateFn: (*store.Store).UpdateGuest,
	deleteFn: (*store.Store).DeleteGuest,
	blank: func(pid uuid.UUID) model.Guest {
		return model.Guest{ProjectID: pid, RSVP: model.RSVPPending}
	},
	required: func(in guestInput, f fieldErrors) {
		if in.Name == nil {
			f.add("name", "required")
		}
	},
	apply: func(in guestInput, g *model.Guest, f fieldErrors, _ time.Time) {
		if in.Name != nil {
			if v := trimmed(in.Name); v == "" {
				f.add("name", "required")
			} else {
				g.Name = v
			}
		}
		if in.Email != nil {
			v := trimmed(in.Email)
			if v != "" && !strings.Contains(v, "@") {
				f.add("email", "must be an email address")
			} else {
				g.Email = v
			}
		}
		if in.RSVP != nil {
			if st, ok := model.ParseRSVP(*in.RSVP); ok {
				g.RSVP = st
			} else {
				f.add("rsvpStatus", "must be pending, yes, no or maybe")
			}
		}
		if in.Group != nil {
			g.Group = trimmed(in.Group)
		}
		if in.PlusOne != nil {
			g.PlusOne = *in.PlusOne
		}
	},
	version:    func(in guestInput) *int { return in.Version },
	setVersion: func(g *model.Guest, v int) { g.Version = v },
	describe:   func(g model.Guest) (string, string) { return g.ID.String(), "guest " + g.Name },
}

type budgetInput struct {
	Category      *string `json:"category"`
	Description   *string `json:"description"`
	EstimatedCost *string `json:"estimatedCost"`
	ActualCost    *string `json:"actualCost"`
	Paid          *bool   `json:"paid"`
	Version       *int    `json:"version"`
}

var budgetItems = resource[model.BudgetItem, budgetInput]{
	path:     "budget",
	kind:     "budget_item",
	listFn:   (*store.Store).ListBudgetItems,
	getFn:    (*store.Store).GetBudgetItem,
	insertFn: (*store.Store).CreateBudgetItem,
	updateFn: (*store.Store).UpdateBudgetItem,
	deleteFn: (*store.Store).DeleteBudgetItem,
	blank: func(pid uuid.UUID) model.BudgetItem {
		return model.BudgetItem{ProjectID: pid, EstimatedCost: "0", ActualCost: "0"}
	},
	required: func(in budgetInput, f fieldErrors) {
		if in.Category == nil {
			f.add("category", "required")
		}
	},
	apply: func(in budgetInput, b *model.BudgetItem, f fieldErrors, _ time.Time) {
		if in.Category != nil {
			if v := trimmed(in.Category); v == "" {
				f.add("category", "required")
			} else {
				b.Category = v
			}
		}
		if in.Description != nil {
			b.Description = trimmed(in.Description)
		}
		setMoney(&b.EstimatedCost, in.EstimatedCost, "estimatedCost", f)
		setMoney(&b.ActualCost, in.ActualCost, "actualCost", f)
		if in.Paid != nil {
			b.Paid = *in.Paid
		}
	},
	version:    func(in budgetInput) *int { return in.Version },
	setVersion: func(b *model.BudgetItem, v int) { b.Version = v },
	describe: func(b model.BudgetItem) (string, string) {
		return b.ID.String(), "budget item " + b.Category
	},
}

type vendorInput struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
	Cost     *string `json:"cost"`
	Contact  *string `json:"contact"`
	Version  *int    `json:"version"`
}

var vendors = resource[model.Vendor, vendorInput]{
	path:     "vendors",
	kind:     "vendor",
	listFn:   (*store.Store).ListVendors,
	getFn:    (*store.Store).GetVendor,
	insertFn: (*store.Store).CreateVendor,
	updateFn: (*store.Store).UpdateVendor,
	deleteFn: (*store.Store).DeleteVendor,
	blank: func(pid uuid.UUID) model.Vendor {
		return model.Vendor{ProjectID: pid, Status: model.VendorResearching}
	},
	required: func(in vendorInput, f fieldErrors) {
		if in.Name == nil {
			f.add("name", "required")
		}
	},
	apply: func(in vendorInput, v *model.Vendor, f fieldErrors, _ time.Time) {
		if in.Name != nil {
			if n := trimmed(in.Name); n == "" {
				f.add("name", "required")
			} else {
				v.Name = n
			}
		}
		if in.Category != nil {
			v.Category = trimmed(in.Category)
		}
		if in.Status != nil {
			if st, ok := model.ParseVendorStatus(*in.Status); ok {
				v.Status = st
			} else {
				f.add("status", "unknown vendor status")
			}
		}
		setMoney(&v.Cost, in.Cost, "cost", f)
		if in.Contact != nil {
			v.Contact = trimmed(in.Contact)
		}
	},
	version:    func(in vendorInput) *int { return in.Version },
	setVersion: func(v *model.Vendor, n int) { v.Version = n },
	describe:   func(v model.Vendor) (string, string) { return v.ID.String(), "vendor " + v.Name },
}
