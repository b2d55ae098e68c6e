package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

const jobKeyPrefix = "job:"

// JobRedisRepository keeps each record as a JSON string under job:<id>.
// Updates run inside WATCH/MULTI so a concurrent writer aborts the
// transaction and the update is retried against the fresh value.
type JobRedisRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewJobRedisRepository keeps pending and running records without expiry
// and expires them ttl after they reach a terminal state. A zero ttl keeps
// records forever.
func NewJobRedisRepository(client redis.UniversalClient, ttl time.Duration) *JobRedisRepository {
	return &JobRedisRepository{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func jobKey(id uuid.UUID) string {
	return jobKeyPrefix + id.String()
}

func (r *JobRedisRepository) Create(ctx context.Context, rec *entity.JobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	ok, err := r.client.SetNX(ctx, jobKey(rec.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}
	if !ok {
		return entity.ErrJobAlreadyExists
	}
	return nil
}

func (r *JobRedisRepository) Read(ctx context.Context, id uuid.UUID) (*entity.JobRecord, error) {
	data, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entity.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) (*entity.JobRecord, error) {
	var rec entity.JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode job record: %w", err)
	}
	return &rec, nil
}

func (r *JobRedisRepository) CompareAndUpdate(ctx context.Context, id uuid.UUID, t entity.Transition) (*entity.JobRecord, error) {
	key := jobKey(id)
	var updated *entity.JobRecord

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return entity.ErrJobNotFound
			}
			return err
		}

		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if err := rec.Apply(t, r.now()); err != nil {
			return err
		}

		next, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal job record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if rec.State.IsTerminal() && r.ttl > 0 {
				pipe.Set(ctx, key, next, r.ttl)
			} else {
				pipe.Set(ctx, key, next, redis.KeepTTL)
			}
			return nil
		})
		if err != nil {
			return err
		}

		updated = rec
		return nil
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, entity.ErrJobNotFound) || errors.Is(err, entity.ErrStaleTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update job record: %w", err)
	}

	return nil, fmt.Errorf("job %s: %w", id, errTooMuchContention)
}
