package action

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tnqbao/gau-job-orchestrator/entity"
)

// Progress receives partial-progress reports from a running action.
// Report never blocks the caller.
type Progress interface {
	Report(current, total int, message string)
}

// Handler runs one job. The returned value becomes the job result.
type Handler func(ctx context.Context, payload json.RawMessage, progress Progress) (json.RawMessage, error)

// Error is an action failure with a kind the status endpoint can show,
// e.g. NewError("ValueError", "bad input").
type Error struct {
	Type    string
	Message string
}

func NewError(kind, message string) *Error {
	return &Error{Type: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

// ToJobError converts whatever an action returned into the record form.
func ToJobError(err error) entity.JobError {
	var actionErr *Error
	if errors.As(err, &actionErr) {
		kind := actionErr.Type
		if kind == "" {
			kind = "error"
		}
		return entity.JobError{Type: kind, Message: actionErr.Message}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return entity.JobError{Type: "cancelled", Message: err.Error()}
	}
	return entity.JobError{Type: "error", Message: err.Error()}
}

type noopProgress struct{}

func (noopProgress) Report(int, int, string) {}

// NoProgress discards reports.
var NoProgress Progress = noopProgress{}
