package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

type RabbitMQOptions struct {
	Exchange string
	Queue    string
	Prefetch int
}

// RabbitMQBroker publishes task messages with publisher confirms on one
// channel and consumes with manual acks on another.
type RabbitMQBroker struct {
	conn      *amqp.Connection
	opts      RabbitMQOptions
	publishMu sync.Mutex
	publishCh *amqp.Channel

	mu         sync.Mutex
	consumeChs []*amqp.Channel
}

func NewRabbitMQBroker(conn *amqp.Connection, opts RabbitMQOptions) (*RabbitMQBroker, error) {
	if opts.Prefetch <= 0 {
		opts.Prefetch = 1
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	if err := declareTopology(ch, opts); err != nil {
		_ = ch.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &RabbitMQBroker{
		conn:      conn,
		opts:      opts,
		publishCh: ch,
	}, nil
}

func declareTopology(ch *amqp.Channel, opts RabbitMQOptions) error {
	err := ch.ExchangeDeclare(
		opts.Exchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare job exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		opts.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare job queue: %w", err)
	}

	err = ch.QueueBind(
		opts.Queue,
		opts.Queue, // routing key
		opts.Exchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind job queue: %w", err)
	}

	return nil
}

// Enqueue returns only after the broker has confirmed the message.
func (b *RabbitMQBroker) Enqueue(ctx context.Context, msg entity.TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}

	b.publishMu.Lock()
	confirm, err := b.publishCh.PublishWithDeferredConfirmWithContext(
		ctx,
		b.opts.Exchange,
		b.opts.Queue,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.JobID.String(),
			Type:         msg.Action,
			Timestamp:    time.Now(),
		},
	)
	b.publishMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish task message: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker rejected task message for job %s", msg.JobID)
	}
	return nil
}

func (b *RabbitMQBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consume channel: %w", err)
	}
	if err := ch.Qos(b.opts.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	tag := "job-worker-" + uuid.NewString()
	msgs, err := ch.Consume(
		b.opts.Queue,
		tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to register job consumer: %w", err)
	}

	b.mu.Lock()
	b.consumeChs = append(b.consumeChs, ch)
	b.mu.Unlock()

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				b.stopConsumer(ch, tag, msgs)
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				d := newDelivery(msg.Body, msg.Redelivered,
					func() error { return msg.Ack(false) },
					func(requeue bool) error { return msg.Nack(false, requeue) },
				)
				select {
				case out <- d:
				case <-ctx.Done():
					_ = d.Nack(true)
					b.stopConsumer(ch, tag, msgs)
					return
				}
			}
		}
	}()

	return out, nil
}

// stopConsumer cancels the subscription so the broker stops pushing, then
// requeues whatever was prefetched but never handed out. The channel stays
// open so in-flight deliveries can still be acked.
func (b *RabbitMQBroker) stopConsumer(ch *amqp.Channel, tag string, msgs <-chan amqp.Delivery) {
	if err := ch.Cancel(tag, false); err != nil {
		return
	}
	for msg := range msgs {
		_ = msg.Nack(false, true)
	}
}

func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.consumeChs {
		if !ch.IsClosed() {
			_ = ch.Close()
		}
	}
	b.consumeChs = nil
	if b.publishCh != nil && !b.publishCh.IsClosed() {
		return b.publishCh.Close()
	}
	return nil
}
