package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

// progressReporter is the handle given to a running action. Report only
// stores the latest value and wakes a background writer, so a slow store
// never stalls the action; intermediate values may be coalesced.
type progressReporter struct {
	jobID uuid.UUID
	write func(ctx context.Context, p entity.Progress) error
	onErr func(err error)

	mu      sync.Mutex
	latest  *entity.Progress
	closed  bool
	stopped bool // a write was rejected as stale; the job is already terminal

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newProgressReporter(jobID uuid.UUID, write func(context.Context, entity.Progress) error, onErr func(error)) *progressReporter {
	return &progressReporter{
		jobID: jobID,
		write: write,
		onErr: onErr,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (r *progressReporter) Report(current, total int, message string) {
	r.mu.Lock()
	if r.closed || r.stopped {
		r.mu.Unlock()
		return
	}
	r.latest = &entity.Progress{Current: current, Total: total, Message: message}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *progressReporter) take() *entity.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.latest
	r.latest = nil
	return p
}

func (r *progressReporter) flush(ctx context.Context) {
	p := r.take()
	if p == nil {
		return
	}
	err := r.write(ctx, *p)
	if err == nil {
		return
	}
	if errors.Is(err, entity.ErrStaleTransition) || errors.Is(err, entity.ErrJobNotFound) {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
	}
	if r.onErr != nil {
		r.onErr(err)
	}
}

// run drains reports until Close is called.
func (r *progressReporter) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-r.wake:
			r.flush(ctx)
		case <-r.stop:
			r.flush(ctx)
			return
		}
	}
}

// Close stops accepting reports and waits until the last pending one is
// written, so it cannot land after the terminal write.
func (r *progressReporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stop)
	<-r.done
}
