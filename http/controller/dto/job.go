package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tnqbao/gau-job-orchestrator/entity"
)

type SubmitJobResponseDTO struct {
	JobID string `json:"job_id"`
}

type JobStatusResponseDTO struct {
	JobID      string           `json:"job_id"`
	Action     string           `json:"action"`
	State      entity.JobState  `json:"state"`
	Progress   *entity.Progress `json:"progress,omitempty"`
	Result     json.RawMessage  `json:"result,omitempty"`
	Error      *entity.JobError `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

func NewJobStatusResponse(rec *entity.JobRecord) JobStatusResponseDTO {
	return JobStatusResponseDTO{
		JobID:      rec.ID.String(),
		Action:     rec.Action,
		State:      rec.State,
		Progress:   rec.Progress,
		Result:     rec.Result,
		Error:      rec.Error,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
}

type ActionListResponseDTO struct {
	Actions []string `json:"actions"`
}

// Shapes kept for clients of the first version of the service.

type SendEmailResponseDTO struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type TaskIDResponseDTO struct {
	TaskID string `json:"task_id"`
}

type TaskStatusResponseDTO struct {
	State  entity.JobState `json:"state"`
	Status string          `json:"status"`
}

// NewTaskStatusResponse renders a record as {state, status} where status
// is a human-readable summary of whatever the state carries.
func NewTaskStatusResponse(rec *entity.JobRecord) TaskStatusResponseDTO {
	status := ""
	switch rec.State {
	case entity.JobStatePending:
		status = "Pending..."
	case entity.JobStateStarted:
		status = "Started..."
	case entity.JobStateProgress:
		if rec.Progress != nil {
			status = fmt.Sprintf("%d/%d %s", rec.Progress.Current, rec.Progress.Total, rec.Progress.Message)
		}
	case entity.JobStateSuccess:
		status = string(rec.Result)
	case entity.JobStateFailure:
		if rec.Error != nil {
			status = rec.Error.String()
		}
	}
	return TaskStatusResponseDTO{State: rec.State, Status: status}
}
