package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-job-orchestrator/action"
	"github.com/tnqbao/gau-job-orchestrator/entity"
	"github.com/tnqbao/gau-job-orchestrator/infra"
	"github.com/tnqbao/gau-job-orchestrator/infra/broker"
	"github.com/tnqbao/gau-job-orchestrator/repository"
)

type doublePayload struct {
	X int `json:"x" validate:"gte=0"`
}

func newRegistry() *action.Registry {
	r := action.NewRegistry()
	action.Register(r, "double", func(_ context.Context, p doublePayload, _ action.Progress) (int, error) {
		return p.X * 2, nil
	})
	return r
}

type failingStore struct {
	repository.JobStore
	err error
}

func (s failingStore) Create(context.Context, *entity.JobRecord) error { return s.err }

type failingBroker struct {
	broker.Broker
	enqueued int
	err      error
}

func (b *failingBroker) Enqueue(context.Context, entity.TaskMessage) error {
	b.enqueued++
	return b.err
}

func TestSubmit_PersistsThenEnqueues(t *testing.T) {
	store := repository.NewJobMemoryRepository()
	b := broker.NewMemoryBroker(8)
	defer b.Close()
	d := NewDispatcher(newRegistry(), store, b, infra.NewDiscardLogger())

	id, err := d.Submit(context.Background(), "double", json.RawMessage(`{"x":5}`))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	rec, err := NewStatusService(store).GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatePending, rec.State)
	assert.Equal(t, "double", rec.Action)

	assert.Equal(t, 1, b.Stats().Pending)
}

func TestSubmit_IDsAreUnique(t *testing.T) {
	b := broker.NewMemoryBroker(128)
	defer b.Close()
	d := NewDispatcher(newRegistry(), repository.NewJobMemoryRepository(), b, infra.NewDiscardLogger())

	seen := map[uuid.UUID]bool{}
	for i := 0; i < 100; i++ {
		id, err := d.Submit(context.Background(), "double", json.RawMessage(`{"x":1}`))
		require.NoError(t, err)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestSubmit_RejectsBeforeWriting(t *testing.T) {
	store := repository.NewJobMemoryRepository()
	b := &failingBroker{}
	d := NewDispatcher(newRegistry(), store, b, infra.NewDiscardLogger())

	_, err := d.Submit(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, entity.ErrUnknownAction)

	_, err = d.Submit(context.Background(), "double", json.RawMessage(`{"x":-3}`))
	assert.ErrorIs(t, err, entity.ErrInvalidPayload)

	assert.Zero(t, b.enqueued)
}

func TestSubmit_StoreFailureEnqueuesNothing(t *testing.T) {
	storeErr := errors.New("redis: connection refused")
	b := &failingBroker{}
	d := NewDispatcher(newRegistry(), failingStore{err: storeErr}, b, infra.NewDiscardLogger())

	_, err := d.Submit(context.Background(), "double", json.RawMessage(`{"x":5}`))

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "store", subErr.Stage)
	assert.ErrorIs(t, err, storeErr)
	assert.Zero(t, b.enqueued)
}

func TestSubmit_BrokerFailureLeavesPendingRecord(t *testing.T) {
	store := repository.NewJobMemoryRepository()
	b := &failingBroker{err: errors.New("amqp: channel closed")}
	d := NewDispatcher(newRegistry(), store, b, infra.NewDiscardLogger())

	id, err := d.Submit(context.Background(), "double", json.RawMessage(`{"x":5}`))

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "broker", subErr.Stage)
	assert.Equal(t, id, subErr.JobID)

	rec, err := store.Read(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatePending, rec.State)
}

func TestGetStatus_UnknownID(t *testing.T) {
	_, err := NewStatusService(repository.NewJobMemoryRepository()).GetStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, entity.ErrJobNotFound)
}
