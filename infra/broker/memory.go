package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tnqbao/gau-job-orchestrator/entity"
)

type memoryItem struct {
	body        []byte
	redelivered bool
}

// MemoryBroker is an in-process queue used for local runs and tests.
// Consumers compete for messages; a requeued Nack puts the message back at
// the tail marked as redelivered.
type MemoryBroker struct {
	queue chan memoryItem
	done  chan struct{}

	mu       sync.Mutex
	closed   bool
	acked    int
	requeued int
	dropped  [][]byte
}

func NewMemoryBroker(capacity int) *MemoryBroker {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryBroker{
		queue: make(chan memoryItem, capacity),
		done:  make(chan struct{}),
	}
}

func (b *MemoryBroker) Enqueue(ctx context.Context, msg entity.TaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}
	return b.push(ctx, memoryItem{body: body})
}

// EnqueueRaw places an arbitrary body on the queue.
func (b *MemoryBroker) EnqueueRaw(ctx context.Context, body []byte) error {
	return b.push(ctx, memoryItem{body: body})
}

func (b *MemoryBroker) push(ctx context.Context, item memoryItem) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBrokerClosed
	}

	select {
	case b.queue <- item:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Consume(ctx context.Context) (<-chan Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				return
			case item := <-b.queue:
				d := newDelivery(item.body, item.redelivered, b.ackFunc(), b.nackFunc(item))
				select {
				case out <- d:
				case <-ctx.Done():
					// not handed out, put it back
					_ = d.Nack(true)
					return
				case <-b.done:
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *MemoryBroker) ackFunc() func() error {
	return func() error {
		b.mu.Lock()
		b.acked++
		b.mu.Unlock()
		return nil
	}
}

func (b *MemoryBroker) nackFunc(item memoryItem) func(bool) error {
	return func(requeue bool) error {
		b.mu.Lock()
		if !requeue {
			b.dropped = append(b.dropped, item.body)
			b.mu.Unlock()
			return nil
		}
		b.requeued++
		b.mu.Unlock()

		select {
		case b.queue <- memoryItem{body: item.body, redelivered: true}:
			return nil
		case <-b.done:
			return ErrBrokerClosed
		default:
			return fmt.Errorf("memory broker: queue full, cannot requeue")
		}
	}
}

// MemoryBrokerStats is a snapshot of settlement counters.
type MemoryBrokerStats struct {
	Acked    int
	Requeued int
	Dropped  int
	Pending  int
}

func (b *MemoryBroker) Stats() MemoryBrokerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return MemoryBrokerStats{
		Acked:    b.acked,
		Requeued: b.requeued,
		Dropped:  len(b.dropped),
		Pending:  len(b.queue),
	}
}

// Dropped returns bodies that were rejected without requeue.
func (b *MemoryBroker) Dropped() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.dropped))
	copy(out, b.dropped)
	return out
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}
