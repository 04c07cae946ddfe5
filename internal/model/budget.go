package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetItem is one budget line. Costs are decimal strings as entered.
type BudgetItem struct {
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"projectId"`
	Category      string    `json:"category"`
	Description   string    `json:"description,omitempty"`
	EstimatedCost string    `json:"estimatedCost"`
	ActualCost    string    `json:"actualCost"`
	Paid          bool      `json:"paid"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// amountPattern is a plain decimal with at most 15 integer digits and 6
// decimal places. Exponent forms are not money.
var amountPattern = regexp.MustCompile(`^-?[0-9]{1,15}(\.[0-9]{1,6})?$`)

func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	return strings.ReplaceAll(s, ",", "")
}

// ParseAmount parses a money string such as "1,250.50" or "$80".
// Malformed or out-of-range input yields zero.
func ParseAmount(s string) decimal.Decimal {
	s = cleanAmount(s)
	if !amountPattern.MatchString(s) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ValidAmount reports whether s parses as a money string. Empty is valid.
func ValidAmount(s string) bool {
	s = cleanAmount(s)
	return s == "" || amountPattern.MatchString(s)
}

// SumActual totals the actual cost of items.
func SumActual(items []BudgetItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(ParseAmount(it.ActualCost))
	}
	return total
}
