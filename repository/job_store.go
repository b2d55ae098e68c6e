package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

// JobStore is the authoritative job-record store. Implementations must
// linearize CompareAndUpdate per job ID: of two racing transitions, at most
// one observes a given prior state.
type JobStore interface {
	// Create writes a new record and fails with entity.ErrJobAlreadyExists
	// if the ID is taken.
	Create(ctx context.Context, rec *entity.JobRecord) error

	// Read returns a copy of the record or entity.ErrJobNotFound.
	Read(ctx context.Context, id uuid.UUID) (*entity.JobRecord, error)

	// CompareAndUpdate applies t atomically and returns the new record.
	// Rejected transitions return an error wrapping entity.ErrStaleTransition.
	CompareAndUpdate(ctx context.Context, id uuid.UUID, t entity.Transition) (*entity.JobRecord, error)
}

// maxCASAttempts bounds optimistic retries under contention.
const maxCASAttempts = 16

var errTooMuchContention = errors.New("job record update lost too many races")
