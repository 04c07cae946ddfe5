// Package adapters reshapes planning records into chart-ready values.
// Every function here is total: empty input and zero denominators produce
// zero-valued output, never NaN or Inf.
package adapters

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/planhaus/internal/model"
)

// Palette is cycled over donut categories in first-seen order.
var Palette = []string{
	"#3AA99F", // teal
	"#DA702C", // orange
	"#4385BE", // blue
	"#CE5D97", // magenta
	"#879A39", // green
	"#D0A215", // yellow
	"#8B7EC8", // purple
	"#D14D41", // red
}

// BudgetData is the input to the budget adapters.
type BudgetData struct {
	Total float64
	Spent float64
	Items []model.BudgetItem
}

// BudgetDataFrom pairs dashboard totals with the budget line items.
func BudgetDataFrom(totals model.BudgetTotals, items []model.BudgetItem) BudgetData {
	return BudgetData{Total: totals.Total, Spent: totals.Spent, Items: items}
}

// DonutCategory is one donut segment.
type DonutCategory struct {
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Donut is the spend breakdown chart.
type Donut struct {
	Spent      float64         `json:"spent"`
	Remaining  float64         `json:"remaining"`
	Categories []DonutCategory `json:"categories"`
}

// ToDonut groups item actual costs by normalized category. Items without a
// category are left out of the segments.
func ToDonut(data BudgetData) Donut {
	total := finite(data.Total)
	spent := finite(data.Spent)

	d := Donut{
		Spent:      spent,
		Remaining:  math.Max(0, total-spent),
		Categories: []DonutCategory{},
	}

	index := make(map[string]int)
	sums := []decimal.Decimal{}
	for _, it := range data.Items {
		key := model.NormalizeKey(it.Category)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			i = len(d.Categories)
			index[key] = i
			d.Categories = append(d.Categories, DonutCategory{
				Key:   key,
				Name:  strings.TrimSpace(it.Category),
				Color: Palette[i%len(Palette)],
			})
			sums = append(sums, decimal.Zero)
		}
		sums[i] = sums[i].Add(model.ParseAmount(it.ActualCost))
	}
	for i := range d.Categories {
		d.Categories[i].Value = finite(sums[i].InexactFloat64())
	}
	return d
}

// ProgressStatus classifies spend against the budget.
type ProgressStatus string

const (
	StatusUnder   ProgressStatus = "under"
	StatusOnTrack ProgressStatus = "on-track"
	StatusOver    ProgressStatus = "over"
)

// BudgetProgress is spend as a percentage of the total budget.
type BudgetProgress struct {
	Percentage float64        `json:"percentage"`
	Status     ProgressStatus `json:"status"`
}

// CalculateBudgetProgress returns spent/total as a percentage. A zero total
// reports 0% on-track.
func CalculateBudgetProgress(data BudgetData) BudgetProgress {
	total := finite(data.Total)
	spent := finite(data.Spent)
	if total == 0 {
		return BudgetProgress{Percentage: 0, Status: StatusOnTrack}
	}

	pct := finite(spent * 100 / total)
	switch {
	case pct > 100:
		return BudgetProgress{Percentage: pct, Status: StatusOver}
	case pct > 90:
		return BudgetProgress{Percentage: pct, Status: StatusOnTrack}
	default:
		return BudgetProgress{Percentage: pct, Status: StatusUnder}
	}
}

// percent returns part/whole*100, or 0 when whole is zero.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
