package produce

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

type recordingPublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (p *recordingPublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func TestPublishJobEvent(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewJobEventService(pub, "job_events")

	ev := entity.JobEvent{
		JobID:  uuid.New(),
		Action: "long_task",
		State:  entity.JobStateProgress,
		Progress: &entity.Progress{
			Current: 3, Total: 10, Message: "Booting fast orbiter...",
		},
		At: time.Now().UTC(),
	}
	require.NoError(t, svc.PublishJobEvent(context.Background(), ev))

	assert.Equal(t, "job_events", pub.exchange)
	assert.Equal(t, "job.progress", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)

	var got entity.JobEvent
	require.NoError(t, json.Unmarshal(pub.msg.Body, &got))
	assert.Equal(t, ev.JobID, got.JobID)
	assert.Equal(t, 3, got.Progress.Current)
}

func TestPublishJobEvent_WrapsError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("channel closed")}
	err := NewJobEventService(pub, "job_events").PublishJobEvent(context.Background(), entity.JobEvent{State: entity.JobStateSuccess})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
	assert.Equal(t, "job.success", pub.key)
}

func TestPublishJobEvent_NilService(t *testing.T) {
	var svc *JobEventService
	assert.NoError(t, svc.PublishJobEvent(context.Background(), entity.JobEvent{}))
}
