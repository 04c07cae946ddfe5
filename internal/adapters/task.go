package adapters

import "github.com/theirongolddev/planhaus/internal/model"

// StatusBar is one bar of the task status chart.
type StatusBar struct {
	Status     model.TaskStatus `json:"status"`
	Label      string           `json:"label"`
	Count      int              `json:"count"`
	Percentage float64          `json:"percentage"`
}

// StatusBreakdown counts tasks per status.
type StatusBreakdown struct {
	Bars  []StatusBar `json:"bars"`
	Total int         `json:"total"`
	Other int         `json:"other"`
}

var statusLabels = map[model.TaskStatus]string{
	model.TaskPending:    "Pending",
	model.TaskInProgress: "In Progress",
	model.TaskCompleted:  "Completed",
}

// ToStatus counts tasks per status bucket in fixed order. Unrecognized
// statuses are counted in Other and still contribute to Total.
func ToStatus(tasks []model.Task) StatusBreakdown {
	counts := make(map[model.TaskStatus]int, len(model.TaskStatuses))
	other := 0
	for _, t := range tasks {
		st, ok := model.ParseTaskStatus(string(t.Status))
		if !ok {
			other++
			continue
		}
		counts[st]++
	}

	b := StatusBreakdown{
		Bars:  make([]StatusBar, 0, len(model.TaskStatuses)),
		Total: len(tasks),
		Other: other,
	}
	for _, st := range model.TaskStatuses {
		b.Bars = append(b.Bars, StatusBar{
			Status:     st,
			Label:      statusLabels[st],
			Count:      counts[st],
			Percentage: percent(counts[st], b.Total),
		})
	}
	return b
}
