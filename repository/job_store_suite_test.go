package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

// runJobStoreSuite exercises behaviour every JobStore driver must share.
func runJobStoreSuite(t *testing.T, newStore func(t *testing.T) JobStore) {
	ctx := context.Background()

	create := func(t *testing.T, s JobStore, action string) *entity.JobRecord {
		t.Helper()
		rec := entity.NewPendingRecord(uuid.New(), action, time.Now())
		require.NoError(t, s.Create(ctx, rec))
		return rec
	}

	t.Run("create then read", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "double")

		got, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "double", got.Action)
		assert.Equal(t, entity.JobStatePending, got.State)
		assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("duplicate create", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "double")

		err := s.Create(ctx, entity.NewPendingRecord(rec.ID, "other", time.Now()))
		assert.ErrorIs(t, err, entity.ErrJobAlreadyExists)

		got, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "double", got.Action)
	})

	t.Run("unknown id", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Read(ctx, uuid.New())
		assert.ErrorIs(t, err, entity.ErrJobNotFound)

		_, err = s.CompareAndUpdate(ctx, uuid.New(), entity.StartTransition())
		assert.ErrorIs(t, err, entity.ErrJobNotFound)
	})

	t.Run("full lifecycle", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "long_task")

		started, err := s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		require.NoError(t, err)
		assert.Equal(t, entity.JobStateStarted, started.State)
		require.NotNil(t, started.StartedAt)

		prog, err := s.CompareAndUpdate(ctx, rec.ID, entity.ProgressTransition(entity.Progress{Current: 2, Total: 4, Message: "Loading bit..."}))
		require.NoError(t, err)
		require.NotNil(t, prog.Progress)

		got, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.JobStateProgress, got.State)
		require.NotNil(t, got.Progress)
		assert.Equal(t, entity.Progress{Current: 2, Total: 4, Message: "Loading bit..."}, *got.Progress)

		done, err := s.CompareAndUpdate(ctx, rec.ID, entity.SuccessTransition(json.RawMessage(`{"result":42}`)))
		require.NoError(t, err)
		assert.Equal(t, entity.JobStateSuccess, done.State)

		got, err = s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.JobStateSuccess, got.State)
		assert.JSONEq(t, `{"result":42}`, string(got.Result))
		assert.Nil(t, got.Progress)
		assert.Nil(t, got.Error)
		require.NotNil(t, got.FinishedAt)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	})

	t.Run("failure records error", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "fail")

		_, err := s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		require.NoError(t, err)
		_, err = s.CompareAndUpdate(ctx, rec.ID, entity.FailureTransition(entity.JobError{Type: "ValueError", Message: "bad input"}))
		require.NoError(t, err)

		got, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.JobStateFailure, got.State)
		require.NotNil(t, got.Error)
		assert.Equal(t, "ValueError", got.Error.Type)
		assert.Equal(t, "bad input", got.Error.Message)
		assert.Empty(t, got.Result)
	})

	t.Run("terminal records are final", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "double")

		_, err := s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		require.NoError(t, err)
		_, err = s.CompareAndUpdate(ctx, rec.ID, entity.SuccessTransition(json.RawMessage(`10`)))
		require.NoError(t, err)

		before, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)

		_, err = s.CompareAndUpdate(ctx, rec.ID, entity.FailureTransition(entity.JobError{Message: "late"}))
		assert.ErrorIs(t, err, entity.ErrStaleTransition)
		_, err = s.CompareAndUpdate(ctx, rec.ID, entity.ProgressTransition(entity.Progress{Current: 1, Total: 2}))
		assert.ErrorIs(t, err, entity.ErrStaleTransition)

		after, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, before.State, after.State)
		assert.JSONEq(t, string(before.Result), string(after.Result))
		assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	})

	t.Run("scalar result", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "double")

		_, err := s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		require.NoError(t, err)
		_, err = s.CompareAndUpdate(ctx, rec.ID, entity.SuccessTransition(json.RawMessage(`10`)))
		require.NoError(t, err)

		got, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.JobStateSuccess, got.State)
		assert.JSONEq(t, `10`, string(got.Result))
	})

	t.Run("start is claimed once", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "double")

		_, err := s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		require.NoError(t, err)
		_, err = s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		assert.ErrorIs(t, err, entity.ErrStaleTransition)
	})

	t.Run("racing terminal writes have one winner", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "double")
		_, err := s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		require.NoError(t, err)

		const writers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var tr entity.Transition
				if i%2 == 0 {
					tr = entity.SuccessTransition(json.RawMessage(`10`))
				} else {
					tr = entity.FailureTransition(entity.JobError{Message: "lost"})
				}
				_, err := s.CompareAndUpdate(ctx, rec.ID, tr)
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, entity.ErrStaleTransition)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		got, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.True(t, got.State.IsTerminal())
	})

	t.Run("updated_at strictly increases", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "long_task")
		_, err := s.CompareAndUpdate(ctx, rec.ID, entity.StartTransition())
		require.NoError(t, err)

		prev, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		for i := 1; i <= 5; i++ {
			_, err := s.CompareAndUpdate(ctx, rec.ID, entity.ProgressTransition(entity.Progress{Current: i, Total: 5}))
			require.NoError(t, err)
			cur, err := s.Read(ctx, rec.ID)
			require.NoError(t, err)
			assert.True(t, cur.UpdatedAt.After(prev.UpdatedAt))
			prev = cur
		}
	})

	t.Run("read returns a copy", func(t *testing.T) {
		s := newStore(t)
		rec := create(t, s, "double")

		got, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		got.State = entity.JobStateSuccess

		again, err := s.Read(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.JobStatePending, again.State)
	})
}
