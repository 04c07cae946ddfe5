package model

import (
	"time"

	"github.com/google/uuid"
)

// Priority ranks a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority folds s onto a known priority.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(normalizeEnum(s)); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// TaskStatuses lists statuses in display order.
var TaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted}

// ParseTaskStatus folds s onto a known status.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch st := TaskStatus(normalizeEnum(s)); st {
	case TaskPending, TaskInProgress, TaskCompleted:
		return st, true
	}
	return "", false
}

// Task is a planning to-do.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"projectId"`
	Title       string     `json:"title"`
	Category    string     `json:"category,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Done reports whether the task counts as closed.
func (t Task) Done() bool {
	st, _ := ParseTaskStatus(string(t.Status))
	return st == TaskCompleted
}

// Overdue reports whether an open task's due date falls before the day
// containing now.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Done() {
		return false
	}
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return t.DueDate.Before(startOfDay)
}
