package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

type JobMemoryRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*entity.JobRecord
	now     func() time.Time
}

func NewJobMemoryRepository() *JobMemoryRepository {
	return &JobMemoryRepository{
		records: make(map[uuid.UUID]*entity.JobRecord),
		now:     time.Now,
	}
}

func (r *JobMemoryRepository) Create(_ context.Context, rec *entity.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return entity.ErrJobAlreadyExists
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *JobMemoryRepository) Read(_ context.Context, id uuid.UUID) (*entity.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return rec.Clone(), nil
}

func (r *JobMemoryRepository) CompareAndUpdate(_ context.Context, id uuid.UUID, t entity.Transition) (*entity.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}

	next := rec.Clone()
	if err := next.Apply(t, r.now()); err != nil {
		return nil, err
	}
	r.records[id] = next
	return next.Clone(), nil
}
