package domain

import "time"

// EventLevel classifies job audit entries.
type EventLevel string

const (
	EventLevelInfo  EventLevel = "info"
	EventLevelWarn  EventLevel = "warn"
	EventLevelError EventLevel = "error"
)

// JobEvent is one append-only audit entry for a job. Events are only ever
// inserted, never updated.
type JobEvent struct {
	ID        string
	JobID     string
	Level     EventLevel
	Message   string
	CreatedAt time.Time
}
