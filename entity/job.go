package entity

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a job record
type JobState string

const (
	JobStatePending  JobState = "PENDING"
	JobStateStarted  JobState = "STARTED"
	JobStateProgress JobState = "PROGRESS"
	JobStateSuccess  JobState = "SUCCESS"
	JobStateFailure  JobState = "FAILURE"
)

// rank orders states along PENDING -> STARTED -> PROGRESS -> terminal.
func (s JobState) rank() int {
	switch s {
	case JobStatePending:
		return 0
	case JobStateStarted:
		return 1
	case JobStateProgress:
		return 2
	case JobStateSuccess, JobStateFailure:
		return 3
	default:
		return -1
	}
}

func (s JobState) Valid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether no further transitions are permitted.
func (s JobState) IsTerminal() bool {
	return s == JobStateSuccess || s == JobStateFailure
}

// Progress is the partial-progress payload of a running job.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// JobError captures why an action failed.
type JobError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *JobError) String() string {
	if e.Type == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// JobRecord is the authoritative state of one job, keyed by ID.
type JobRecord struct {
	ID         uuid.UUID       `json:"id"`
	Action     string          `json:"action"`
	State      JobState        `json:"state"`
	Progress   *Progress       `json:"progress,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *JobError       `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// NewPendingRecord builds the initial record written at submission.
func NewPendingRecord(id uuid.UUID, action string, now time.Time) *JobRecord {
	now = now.UTC().Truncate(time.Microsecond)
	return &JobRecord{
		ID:        id,
		Action:    action,
		State:     JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Progress != nil {
		p := *r.Progress
		cp.Progress = &p
	}
	if r.Result != nil {
		cp.Result = append(json.RawMessage(nil), r.Result...)
	}
	if r.Error != nil {
		e := *r.Error
		cp.Error = &e
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

// Transition is a compare-and-update request: it applies only when the
// record's current state is one of From.
type Transition struct {
	From     []JobState
	To       JobState
	Progress *Progress
	Result   json.RawMessage
	Error    *JobError
}

func StartTransition() Transition {
	return Transition{
		From: []JobState{JobStatePending},
		To:   JobStateStarted,
	}
}

func ProgressTransition(p Progress) Transition {
	return Transition{
		From:     []JobState{JobStateStarted, JobStateProgress},
		To:       JobStateProgress,
		Progress: &p,
	}
}

func SuccessTransition(result json.RawMessage) Transition {
	return Transition{
		From:   []JobState{JobStatePending, JobStateStarted, JobStateProgress},
		To:     JobStateSuccess,
		Result: result,
	}
}

func FailureTransition(jobErr JobError) Transition {
	return Transition{
		From:  []JobState{JobStatePending, JobStateStarted, JobStateProgress},
		To:    JobStateFailure,
		Error: &jobErr,
	}
}

// Apply mutates the record according to t. It returns an error wrapping
// ErrStaleTransition, leaving the record untouched, when the record is
// terminal, when its state does not satisfy t.From, or when the move would
// go backward. UpdatedAt always moves strictly forward.
func (r *JobRecord) Apply(t Transition, now time.Time) error {
	if r.State.IsTerminal() {
		return fmt.Errorf("%w: job %s is already %s", ErrStaleTransition, r.ID, r.State)
	}
	if !t.To.Valid() {
		return fmt.Errorf("%w: unknown target state %q", ErrStaleTransition, t.To)
	}
	if len(t.From) > 0 && !slices.Contains(t.From, r.State) {
		return fmt.Errorf("%w: job %s is %s, expected one of %v", ErrStaleTransition, r.ID, r.State, t.From)
	}
	if t.To.rank() < r.State.rank() {
		return fmt.Errorf("%w: job %s cannot move from %s to %s", ErrStaleTransition, r.ID, r.State, t.To)
	}

	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(r.UpdatedAt) {
		now = r.UpdatedAt.Add(time.Microsecond)
	}

	r.State = t.To
	r.UpdatedAt = now
	r.Progress = nil

	switch t.To {
	case JobStateStarted:
		started := now
		r.StartedAt = &started
	case JobStateProgress:
		if t.Progress != nil {
			p := *t.Progress
			r.Progress = &p
		}
	case JobStateSuccess:
		r.Result = append(json.RawMessage(nil), t.Result...)
		r.Error = nil
		finished := now
		r.FinishedAt = &finished
	case JobStateFailure:
		r.Result = nil
		if t.Error != nil {
			e := *t.Error
			r.Error = &e
		} else {
			r.Error = &JobError{Type: "error", Message: "job failed"}
		}
		finished := now
		r.FinishedAt = &finished
	}

	return nil
}
