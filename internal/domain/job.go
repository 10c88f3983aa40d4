package domain

import (
	"encoding/json"
	"time"
)

// JobType enumerates the kinds of renderer work the queue tracks.
type JobType string

const (
	JobTypeRenderImage    JobType = "render_image"
	JobTypeRenderCarousel JobType = "render_carousel"
	JobTypeRenderVideo    JobType = "render_video"
	JobTypeGenerateText   JobType = "generate_text"
	JobTypeUpload         JobType = "upload"
	JobTypeThumbnail      JobType = "thumbnail"
)

// JobStatus enumerates job lifecycle states. queued and the terminal states
// are stable; running is transient and always bounded by the per-type timeout.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status can no longer transition.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one atomic unit of renderer work. The queue never interprets the
// payload; it is decoded only by the renderer selected for the job type.
type Job struct {
	ID             string
	OrderID        string
	AccountID      string
	Type           JobType
	Status         JobStatus
	Payload        json.RawMessage
	Result         json.RawMessage
	ErrorMessage   string
	Attempts       int
	MaxAttempts    int
	CostUnits      int
	IdempotencyKey string
	ScheduledFor   *time.Time
	ClaimedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ExecutionTimeout returns how long a job of the given type may stay in
// running before the reclaimer treats it as stuck. Video renders are given
// far more headroom than text generation.
func ExecutionTimeout(t JobType) time.Duration {
	switch t {
	case JobTypeRenderVideo:
		return 15 * time.Minute
	case JobTypeRenderCarousel:
		return 10 * time.Minute
	case JobTypeRenderImage, JobTypeUpload:
		return 5 * time.Minute
	case JobTypeGenerateText, JobTypeThumbnail:
		return 2 * time.Minute
	default:
		return 5 * time.Minute
	}
}

// DefaultMaxAttempts returns the per-type retry budget.
func DefaultMaxAttempts(t JobType) int {
	switch t {
	case JobTypeRenderVideo:
		return 2
	case JobTypeGenerateText, JobTypeThumbnail:
		return 4
	default:
		return 3
	}
}
