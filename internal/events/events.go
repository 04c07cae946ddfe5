// Package events defines the activity messages the server fans out to
// WebSocket clients and, when configured, publishes to NATS.
package events

import (
	"context"
	"time"
)

// Message types.
const (
	TypeActivity = "activity"
	TypePresence = "presence"
	TypeHello    = "hello"
)

// SubjectPrefix is the NATS subject root; messages go to
// planhaus.activity.<projectId>.
const SubjectPrefix = "planhaus.activity"

// Message is one realtime notification.
type Message struct {
	Type       string    `json:"type"`
	ProjectID  string    `json:"projectId"`
	UserID     string    `json:"userId,omitempty"`
	EntityType string    `json:"entityType,omitempty"`
	EntityID   string    `json:"entityId,omitempty"`
	Action     string    `json:"action,omitempty"`
	Online     []string  `json:"online,omitempty"`
	At         time.Time `json:"at"`
}

// Subject returns the NATS subject for a project's activity.
func Subject(projectID string) string {
	return SubjectPrefix + "." + projectID
}

// Publisher sends messages to an external bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg Message) error
	Close() error
}
