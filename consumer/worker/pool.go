package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/tnqbao/gau-job-orchestrator/entity"
	"github.com/tnqbao/gau-job-orchestrator/infra"
	"github.com/tnqbao/gau-job-orchestrator/infra/broker"
)

// Pool runs a fixed number of goroutines that pull deliveries from the
// broker and hand them to the Executor. One job's failure never stops the
// pool.
type Pool struct {
	broker      broker.Broker
	executor    *Executor
	logger      *infra.LoggerClient
	concurrency int

	mu          sync.Mutex
	running     bool
	stopConsume context.CancelFunc
	cancelJobs  context.CancelFunc
	wg          sync.WaitGroup
}

type PoolOption func(*Pool)

func WithConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func NewPool(b broker.Broker, executor *Executor, logger *infra.LoggerClient, opts ...PoolOption) *Pool {
	p := &Pool{
		broker:      b,
		executor:    executor,
		logger:      logger,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start subscribes to the broker and launches the workers. It returns
// immediately.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	consumeCtx, stopConsume := context.WithCancel(context.WithoutCancel(ctx))
	deliveries, err := p.broker.Consume(consumeCtx)
	if err != nil {
		stopConsume()
		return err
	}

	jobsCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	p.stopConsume = stopConsume
	p.cancelJobs = cancelJobs
	p.running = true

	p.logger.InfoWithContextf(ctx, "[Worker Pool] Starting %d workers", p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.loop(jobsCtx, deliveries)
	}
	return nil
}

func (p *Pool) loop(ctx context.Context, deliveries <-chan broker.Delivery) {
	defer p.wg.Done()
	for d := range deliveries {
		p.handle(ctx, d)
	}
}

func (p *Pool) handle(ctx context.Context, d broker.Delivery) {
	var msg entity.TaskMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		p.logger.ErrorWithContextf(ctx, err, "[Worker Pool] Failed to unmarshal task message, dropping: %v", err)
		_ = d.Nack(false)
		return
	}

	switch p.executor.Execute(ctx, msg) {
	case OutcomeRequeue:
		if err := d.Nack(true); err != nil {
			p.logger.ErrorWithContextf(ctx, err, "[Worker Pool] Failed to requeue job %s: %v", msg.JobID, err)
		}
	default:
		if err := d.Ack(); err != nil {
			p.logger.ErrorWithContextf(ctx, err, "[Worker Pool] Failed to ack job %s: %v", msg.JobID, err)
		}
	}
}

// Stop stops taking new deliveries and waits for in-flight jobs. When ctx
// expires first, running jobs are cancelled and requeued.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.InfoWithContextf(ctx, "[Worker Pool] Stopping...")
	p.stopConsume()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		p.logger.InfoWithContextf(ctx, "[Worker Pool] Stopped gracefully")
	case <-ctx.Done():
		p.logger.WarningWithContextf(ctx, "[Worker Pool] Shutdown timed out, cancelling active jobs")
		p.cancelJobs()
		<-done
		err = errors.New("worker pool shutdown timed out")
	}
	p.cancelJobs()
	return err
}

// Run starts the pool, blocks until ctx is done, then gives in-flight jobs
// up to grace to finish.
func (p *Pool) Run(ctx context.Context, grace time.Duration) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	return p.Stop(stopCtx)
}
