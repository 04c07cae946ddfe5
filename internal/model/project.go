// Package model defines the planning entities shared by the server, the
// client and the metric adapters.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WeddingProject is the root planning record. Everything else hangs off a
// project id.
type WeddingProject struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	WeddingDate *time.Time `json:"weddingDate,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	BudgetTotal string     `json:"budgetTotal"`
	GuestCount  int        `json:"guestCount"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NormalizeKey folds a free-form grouping key (category, status) so that
// casing and surrounding whitespace drift land in the same bucket.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeEnum is NormalizeKey plus space/hyphen folding, for enumerated
// values typed by people ("In Progress", "quote-received").
func normalizeEnum(s string) string {
	s = NormalizeKey(s)
	s = strings.ReplaceAll(s, "-", "_")
	return strings.Join(strings.Fields(s), "_")
}
