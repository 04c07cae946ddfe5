package adapters

import (
	"time"

	"github.com/theirongolddev/planhaus/internal/model"
)

// maxBurndownDays caps the series length for absurd ranges.
const maxBurndownDays = 731

// BurndownPoint is one day of the burndown series.
type BurndownPoint struct {
	Date   time.Time `json:"date"`
	Open   int       `json:"open"`
	Closed int       `json:"closed"`
	Ideal  float64   `json:"ideal"`
}

// Burndown is the task timeline chart.
type Burndown struct {
	Points     []BurndownPoint `json:"points"`
	TodayIndex int             `json:"todayIndex"`
}

// ToBurndown buckets tasks into cumulative open/closed counts for each day
// in [start, end]. A task is open on a day once created and until its
// completion day; tasks without a creation time count from the first day.
// Completed tasks without a completion time close on their last update.
// TodayIndex is -1 when today falls outside the range.
func ToBurndown(tasks []model.Task, start, end, today time.Time) Burndown {
	b := Burndown{Points: []BurndownPoint{}, TodayIndex: -1}

	first := dayStart(start)
	last := dayStart(end)
	if start.IsZero() || end.IsZero() || last.Before(first) {
		return b
	}
	if days := int(last.Sub(first).Hours()/24) + 1; days > maxBurndownDays {
		last = first.AddDate(0, 0, maxBurndownDays-1)
	}

	loc := start.Location()
	todayKey := dayStart(today.In(loc))
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		cutoff := day.AddDate(0, 0, 1)
		p := BurndownPoint{Date: day}
		for _, t := range tasks {
			if !t.CreatedAt.IsZero() && !t.CreatedAt.Before(cutoff) {
				continue
			}
			if closedAt, ok := closedTime(t); ok && closedAt.Before(cutoff) {
				p.Closed++
				continue
			}
			p.Open++
		}
		if day.Equal(todayKey) {
			b.TodayIndex = len(b.Points)
		}
		b.Points = append(b.Points, p)
	}

	// Ideal line runs from the first day's scope down to zero on the last day.
	if n := len(b.Points); n > 0 {
		scope := float64(b.Points[0].Open)
		for i := range b.Points {
			if n == 1 {
				b.Points[i].Ideal = 0
				continue
			}
			b.Points[i].Ideal = scope * float64(n-1-i) / float64(n-1)
		}
	}
	return b
}

func closedTime(t model.Task) (time.Time, bool) {
	if !t.Done() {
		return time.Time{}, false
	}
	if t.CompletedAt != nil {
		return *t.CompletedAt, true
	}
	if !t.UpdatedAt.IsZero() {
		return t.UpdatedAt, true
	}
	return time.Time{}, true
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// BurndownWindow runs from the earliest task (or project creation) to the
// wedding day, or thirty days past today when no date is set.
func BurndownWindow(p model.WeddingProject, tasks []model.Task, today time.Time) (time.Time, time.Time) {
	start := p.CreatedAt
	for _, t := range tasks {
		if !t.CreatedAt.IsZero() && (start.IsZero() || t.CreatedAt.Before(start)) {
			start = t.CreatedAt
		}
	}
	if start.IsZero() {
		start = today
	}
	end := today.AddDate(0, 0, 30)
	if p.WeddingDate != nil && p.WeddingDate.After(start) {
		end = *p.WeddingDate
	}
	return start, end
}
