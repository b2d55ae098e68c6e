package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/entity"
	"github.com/tnqbao/gau-job-orchestrator/repository"
)

// StatusService is the read path. It never waits for a job to finish.
type StatusService struct {
	store repository.JobStore
}

func NewStatusService(store repository.JobStore) *StatusService {
	return &StatusService{store: store}
}

// GetStatus returns the current snapshot or entity.ErrJobNotFound.
func (s *StatusService) GetStatus(ctx context.Context, id uuid.UUID) (*entity.JobRecord, error) {
	return s.store.Read(ctx, id)
}
