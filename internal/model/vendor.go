package model

import (
	"time"

	"github.com/google/uuid"
)

// VendorStatus is a vendor's booking stage.
type VendorStatus string

const (
	VendorResearching   VendorStatus = "researching"
	VendorContacted     VendorStatus = "contacted"
	VendorQuoteReceived VendorStatus = "quote_received"
	VendorContractSent  VendorStatus = "contract_sent"
	VendorBooked        VendorStatus = "booked"
	VendorCancelled     VendorStatus = "cancelled"
)

// VendorPipeline is the funnel order. Cancelled sits outside it.
var VendorPipeline = []VendorStatus{
	VendorResearching,
	VendorContacted,
	VendorQuoteReceived,
	VendorContractSent,
	VendorBooked,
}

// ParseVendorStatus folds s onto a known stage. "canceled" is accepted.
func ParseVendorStatus(s string) (VendorStatus, bool) {
	v := VendorStatus(normalizeEnum(s))
	if v == "canceled" {
		return VendorCancelled, true
	}
	switch v {
	case VendorResearching, VendorContacted, VendorQuoteReceived,
		VendorContractSent, VendorBooked, VendorCancelled:
		return v, true
	}
	return "", false
}

// Vendor is a supplier being tracked through the booking funnel.
type Vendor struct {
	ID        uuid.UUID    `json:"id"`
	ProjectID uuid.UUID    `json:"projectId"`
	Name      string       `json:"name"`
	Category  string       `json:"category,omitempty"`
	Status    VendorStatus `json:"status"`
	Cost      string       `json:"cost,omitempty"`
	Contact   string       `json:"contact,omitempty"`
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
