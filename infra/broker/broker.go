package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/tnqbao/gau-job-orchestrator/entity"
)

var ErrBrokerClosed = errors.New("broker closed")

// Broker moves TaskMessages from the dispatcher to workers with
// at-least-once semantics: a delivery stays owned by the broker until it is
// acknowledged.
type Broker interface {
	Enqueue(ctx context.Context, msg entity.TaskMessage) error
	// Consume streams deliveries until ctx is cancelled or the broker closes.
	Consume(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

// Delivery is one received message. Exactly one of Ack or Nack takes effect;
// later calls are no-ops.
type Delivery struct {
	Body        []byte
	Redelivered bool

	once   *sync.Once
	ackFn  func() error
	nackFn func(requeue bool) error
}

func newDelivery(body []byte, redelivered bool, ack func() error, nack func(bool) error) Delivery {
	return Delivery{
		Body:        body,
		Redelivered: redelivered,
		once:        &sync.Once{},
		ackFn:       ack,
		nackFn:      nack,
	}
}

func (d Delivery) Ack() error {
	var err error
	d.once.Do(func() {
		err = d.ackFn()
	})
	return err
}

// Nack rejects the delivery. With requeue=false the message is dropped or
// dead-lettered.
func (d Delivery) Nack(requeue bool) error {
	var err error
	d.once.Do(func() {
		err = d.nackFn(requeue)
	})
	return err
}
