// Package pipeline loads a project's planning records and aggregates them
// into the dashboard snapshot.
package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/planhaus/internal/model"
)

// Snapshot is every record the dashboard aggregates.
type Snapshot struct {
	Project model.WeddingProject
	Tasks   []model.Task
	Guests  []model.Guest
	Budget  []model.BudgetItem
	Vendors []model.Vendor
}

// ComputeDashboardStats aggregates a snapshot as of now.
func ComputeDashboardStats(snap Snapshot, now time.Time) model.DashboardStats {
	stats := model.DashboardStats{ProjectID: snap.Project.ID.String()}

	for _, t := range snap.Tasks {
		stats.Tasks.Total++
		if t.Done() {
			stats.Tasks.Completed++
		} else if t.Overdue(now) {
			stats.Tasks.Overdue++
		}
	}

	for _, g := range snap.Guests {
		stats.Guests.Total++
		rsvp, _ := model.ParseRSVP(string(g.RSVP))
		switch rsvp {
		case model.RSVPYes:
			stats.Guests.Confirmed++
		case model.RSVPNo:
			stats.Guests.Declined++
		default:
			stats.Guests.Pending++
		}
	}

	stats.Budget.Total = toFloat(model.ParseAmount(snap.Project.BudgetTotal))
	stats.Budget.Spent = toFloat(model.SumActual(snap.Budget))

	for _, v := range snap.Vendors {
		stats.Vendors.Total++
		if st, _ := model.ParseVendorStatus(string(v.Status)); st == model.VendorBooked {
			stats.Vendors.Booked++
		}
	}

	stats.DaysUntilWedding = DaysUntil(snap.Project.WeddingDate, now)
	return stats
}

// toFloat converts a money total for JSON, which cannot carry NaN or Inf.
func toFloat(d decimal.Decimal) float64 {
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// DaysUntil returns whole calendar days from now until date, rounded up and
// floored at zero. A nil date yields zero.
func DaysUntil(date *time.Time, now time.Time) int {
	if date == nil || date.IsZero() {
		return 0
	}
	days := math.Ceil(date.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

// FilterTasks narrows tasks by category substring and status. Empty
// filters match everything.
func FilterTasks(tasks []model.Task, category, status string) []model.Task {
	if category == "" && status == "" {
		return tasks
	}
	want, _ := model.ParseTaskStatus(status)
	var out []model.Task
	for _, t := range tasks {
		if category != "" && !containsIgnoreCase(t.Category, category) {
			continue
		}
		if status != "" {
			st, _ := model.ParseTaskStatus(string(t.Status))
			if st != want {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// FilterGuests narrows guests by group substring.
func FilterGuests(guests []model.Guest, group string) []model.Guest {
	if group == "" {
		return guests
	}
	var out []model.Guest
	for _, g := range guests {
		if containsIgnoreCase(g.Group, group) {
			out = append(out, g)
		}
	}
	return out
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
