package models

import "time"

// LedgerEventType names a committed ledger change.
type LedgerEventType string

// Ledger event types published after commit.
const (
	EventEnrollmentCreated   LedgerEventType = "enrollment.created"
	EventEnrollmentUpdated   LedgerEventType = "enrollment.updated"
	EventProgressInitialized LedgerEventType = "progress.initialized"
	EventMilestoneRecorded   LedgerEventType = "milestone.recorded"
	EventCourseCompleted     LedgerEventType = "course.completed"
	EventProgressReset       LedgerEventType = "progress.reset"
)

// LedgerEvent is the envelope published on the event feed.
type LedgerEvent struct {
	ID         string          `json:"id"`
	Type       LedgerEventType `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    interface{}     `json:"payload"`
}
