package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskMessage is the delivery placed on the broker for one job.
type TaskMessage struct {
	JobID       uuid.UUID         `json:"job_id"`
	Action      string            `json:"action"`
	Payload     json.RawMessage   `json:"payload"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Headers     map[string]string `json:"headers,omitempty"` // trace context
}

// JobEvent is published after every accepted state transition.
type JobEvent struct {
	JobID    uuid.UUID `json:"job_id"`
	Action   string    `json:"action"`
	State    JobState  `json:"state"`
	Progress *Progress `json:"progress,omitempty"`
	Error    *JobError `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

func NewJobEvent(rec *JobRecord) JobEvent {
	ev := JobEvent{
		JobID:  rec.ID,
		Action: rec.Action,
		State:  rec.State,
		At:     rec.UpdatedAt,
	}
	if rec.Progress != nil {
		p := *rec.Progress
		ev.Progress = &p
	}
	if rec.Error != nil {
		e := *rec.Error
		ev.Error = &e
	}
	return ev
}
