package model

import (
	"time"

	"github.com/google/uuid"
)

// RSVPStatus is a guest's reply.
type RSVPStatus string

const (
	RSVPPending RSVPStatus = "pending"
	RSVPYes     RSVPStatus = "yes"
	RSVPNo      RSVPStatus = "no"
	RSVPMaybe   RSVPStatus = "maybe"
)

// ParseRSVP folds s onto a known RSVP status.
func ParseRSVP(s string) (RSVPStatus, bool) {
	switch r := RSVPStatus(normalizeEnum(s)); r {
	case RSVPPending, RSVPYes, RSVPNo, RSVPMaybe:
		return r, true
	}
	return "", false
}

// Guest is an invitee.
type Guest struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID uuid.UUID  `json:"projectId"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	RSVP      RSVPStatus `json:"rsvpStatus"`
	Group     string     `json:"group,omitempty"`
	PlusOne   bool       `json:"plusOne"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
