package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

// Publisher is the subset of *amqp.Channel the event service needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// JobEventService fans job lifecycle events out on a topic exchange with
// routing keys of the form "job.<state>", e.g. "job.success".
type JobEventService struct {
	publisher Publisher
	exchange  string
}

func InitJobEventService(channel *amqp.Channel, exchange string) *JobEventService {
	err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Job events exchange: " + err.Error())
	}

	return NewJobEventService(channel, exchange)
}

func NewJobEventService(publisher Publisher, exchange string) *JobEventService {
	return &JobEventService{
		publisher: publisher,
		exchange:  exchange,
	}
}

func RoutingKey(state entity.JobState) string {
	return "job." + strings.ToLower(string(state))
}

// PublishJobEvent is a no-op on a nil service so callers need no guard.
func (s *JobEventService) PublishJobEvent(ctx context.Context, event entity.JobEvent) error {
	if s == nil {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	err = s.publisher.PublishWithContext(
		ctx,
		s.exchange,
		RoutingKey(event.State),
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   event.JobID.String(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job event: %w", err)
	}

	return nil
}
