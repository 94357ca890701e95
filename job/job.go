package job

import (
	"math"
	"time"
)

// Kind is the category of work a job wraps.
type Kind string

const (
	KindSearch   Kind = "SEARCH"
	KindUpload   Kind = "UPLOAD"
	KindWorkflow Kind = "WORKFLOW"
)

// Status is the job lifecycle state:
// pending -> processing -> completed | failed | cancelled.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Timeline event names, appended in lifecycle order.
const (
	EventCreated   = "JOB_CREATED"
	EventStarted   = "JOB_STARTED"
	EventProgress  = "JOB_PROGRESS"
	EventCompleted = "JOB_COMPLETED"
	EventFailed    = "JOB_FAILED"
	EventCancelled = "JOB_CANCELLED"
)

// TimelineEvent is one append-only entry in a job's history.
type TimelineEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Details   string    `json:"details,omitempty"`
}

// Result is the terminal outcome of a job.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Job is a trackable asynchronous unit of work. All mutation goes through
// the Store; callers receive snapshots.
type Job struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Kind        Kind            `json:"type"`
	Status      Status          `json:"status"`
	Progress    int             `json:"progress"`
	Payload     map[string]any  `json:"payload,omitempty"`
	Timeline    []TimelineEvent `json:"timeline"`
	Result      *Result         `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// clone returns a snapshot safe to hand outside the store lock.
func (j *Job) clone() *Job {
	c := *j
	c.Timeline = make([]TimelineEvent, len(j.Timeline))
	copy(c.Timeline, j.Timeline)
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// appendEvent records a timeline entry and touches UpdatedAt. Must be called
// with the store lock held.
func (j *Job) appendEvent(event, details string) {
	now := time.Now()
	j.Timeline = append(j.Timeline, TimelineEvent{Timestamp: now, Event: event, Details: details})
	j.UpdatedAt = now
}

// clampProgress rounds and bounds a progress value to [0,100].
func clampProgress(p float64) int {
	v := int(math.Round(p))
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
