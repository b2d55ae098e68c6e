package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/action"
	"github.com/tnqbao/gau-job-orchestrator/entity"
	"github.com/tnqbao/gau-job-orchestrator/infra"
	"github.com/tnqbao/gau-job-orchestrator/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Outcome tells the pool how to settle a delivery.
type Outcome int

const (
	// OutcomeAck means the delivery is fully handled.
	OutcomeAck Outcome = iota
	// OutcomeRequeue means state could not be persisted; the broker should
	// redeliver.
	OutcomeRequeue
)

// EventPublisher receives lifecycle events after accepted transitions.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, event entity.JobEvent) error
}

// Executor runs one task message end to end: claim, execute, persist the
// terminal state. Action failures and panics become FAILURE records and are
// never returned to the caller.
type Executor struct {
	registry *action.Registry
	store    repository.JobStore
	events   EventPublisher
	logger   *infra.LoggerClient

	maxWriteAttempts int
	retryDelay       time.Duration

	tracer  trace.Tracer
	metrics *executorMetrics
}

type ExecutorOption func(*Executor)

// WithEventPublisher publishes a JobEvent after each accepted transition.
func WithEventPublisher(p EventPublisher) ExecutorOption {
	return func(e *Executor) { e.events = p }
}

// WithWriteRetry sets how often a failed store write is retried and the
// base delay, which grows linearly per attempt.
func WithWriteRetry(attempts int, delay time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.maxWriteAttempts = attempts
		e.retryDelay = delay
	}
}

func NewExecutor(registry *action.Registry, store repository.JobStore, logger *infra.LoggerClient, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:         registry,
		store:            store,
		logger:           logger,
		maxWriteAttempts: 3,
		retryDelay:       2 * time.Second,
		tracer:           otel.Tracer(instrumentationName),
		metrics:          newExecutorMetrics(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxWriteAttempts < 1 {
		e.maxWriteAttempts = 1
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, msg entity.TaskMessage) Outcome {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	ctx, span := e.tracer.Start(ctx, "job.execute",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.id", msg.JobID.String()),
			attribute.String("job.action", msg.Action),
		),
	)
	defer span.End()

	def, ok := e.registry.Get(msg.Action)
	if !ok {
		e.logger.ErrorWithContextf(ctx, nil, "[Worker] No action registered for %q, failing job %s", msg.Action, msg.JobID)
		span.SetStatus(codes.Error, "unknown action")
		jobErr := entity.JobError{Type: "UnknownAction", Message: fmt.Sprintf("no action registered as %q", msg.Action)}
		return e.finish(ctx, msg, entity.FailureTransition(jobErr), 0)
	}

	proceed, outcome := e.claim(ctx, msg)
	if !proceed {
		return outcome
	}

	reporter := newProgressReporter(msg.JobID,
		func(ctx context.Context, p entity.Progress) error {
			return e.transition(ctx, msg.JobID, entity.ProgressTransition(p))
		},
		func(err error) {
			if errors.Is(err, entity.ErrStaleTransition) {
				e.logger.DebugWithContextf(ctx, "[Worker] Dropping progress for job %s: %v", msg.JobID, err)
				return
			}
			e.logger.WarningWithContextf(ctx, "[Worker] Failed to record progress for job %s: %v", msg.JobID, err)
		},
	)
	go reporter.run(ctx)

	start := time.Now()
	result, runErr := e.run(ctx, def, msg, reporter)
	elapsed := time.Since(start)
	reporter.Close()

	if runErr != nil && ctx.Err() != nil {
		// pool is shutting down; leave the record STARTED for redelivery
		e.logger.WarningWithContextf(ctx, "[Worker] Job %s interrupted by shutdown, requeueing", msg.JobID)
		return OutcomeRequeue
	}

	var t entity.Transition
	if runErr != nil {
		jobErr := action.ToJobError(runErr)
		var pe *panicError
		if errors.As(runErr, &pe) {
			jobErr = entity.JobError{Type: "panic", Message: pe.Error()}
		}
		e.logger.WarningWithContextf(ctx, "[Worker] Job %s (%s) failed: %s", msg.JobID, msg.Action, jobErr.String())
		span.RecordError(runErr)
		span.SetStatus(codes.Error, jobErr.String())
		t = entity.FailureTransition(jobErr)
	} else {
		t = entity.SuccessTransition(result)
	}

	return e.finish(ctx, msg, t, elapsed)
}

// claim moves the record to STARTED. It reports whether the action should
// run and, if not, how to settle the delivery.
func (e *Executor) claim(ctx context.Context, msg entity.TaskMessage) (bool, Outcome) {
	err := e.withRetry(ctx, func() error {
		return e.transition(ctx, msg.JobID, entity.StartTransition())
	})
	switch {
	case err == nil:
		e.logger.InfoWithContextf(ctx, "[Worker] Started job %s (%s)", msg.JobID, msg.Action)
		return true, OutcomeAck

	case errors.Is(err, entity.ErrJobNotFound):
		e.logger.ErrorWithContextf(ctx, err, "[Worker] Job %s has no record, dropping delivery", msg.JobID)
		return false, OutcomeAck

	case errors.Is(err, entity.ErrStaleTransition):
		rec, readErr := e.store.Read(ctx, msg.JobID)
		if readErr != nil {
			e.logger.ErrorWithContextf(ctx, readErr, "[Worker] Failed to read job %s after lost claim: %v", msg.JobID, readErr)
			return false, OutcomeRequeue
		}
		if rec.State.IsTerminal() {
			e.metrics.recordDuplicate(ctx, msg.Action)
			e.logger.InfoWithContextf(ctx, "[Worker] Job %s already %s, skipping duplicate delivery", msg.JobID, rec.State)
			return false, OutcomeAck
		}
		// STARTED or PROGRESS: the previous owner died before finishing
		e.logger.WarningWithContextf(ctx, "[Worker] Job %s is %s from an earlier delivery, running it again", msg.JobID, rec.State)
		return true, OutcomeAck

	default:
		e.logger.ErrorWithContextf(ctx, err, "[Worker] Failed to claim job %s after %d attempts: %v", msg.JobID, e.maxWriteAttempts, err)
		return false, OutcomeRequeue
	}
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprint(p.value)
}

func (e *Executor) run(ctx context.Context, def *action.Definition, msg entity.TaskMessage, progress action.Progress) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &panicError{value: r, stack: debug.Stack()}
			e.logger.ErrorWithContextf(ctx, pe, "[Worker] Action %s panicked on job %s\n%s", msg.Action, msg.JobID, pe.stack)
			result, err = nil, pe
		}
	}()
	return def.Run(ctx, msg.Payload, progress)
}

// finish persists the terminal transition.
func (e *Executor) finish(ctx context.Context, msg entity.TaskMessage, t entity.Transition, elapsed time.Duration) Outcome {
	err := e.withRetry(ctx, func() error {
		return e.transition(ctx, msg.JobID, t)
	})
	switch {
	case err == nil:
		e.metrics.recordExecution(ctx, msg.Action, string(t.To), elapsed)
		e.logger.InfoWithContextf(ctx, "[Worker] Job %s (%s) finished with %s in %s", msg.JobID, msg.Action, t.To, elapsed)
		return OutcomeAck

	case errors.Is(err, entity.ErrStaleTransition):
		// a concurrent delivery already finished it; its record stands
		e.metrics.recordDuplicate(ctx, msg.Action)
		e.logger.InfoWithContextf(ctx, "[Worker] Terminal write for job %s rejected: %v", msg.JobID, err)
		return OutcomeAck

	case errors.Is(err, entity.ErrJobNotFound):
		e.logger.ErrorWithContextf(ctx, err, "[Worker] Job %s has no record, dropping result", msg.JobID)
		return OutcomeAck

	default:
		e.logger.ErrorWithContextf(ctx, err, "[Worker] Failed to persist terminal state for job %s after %d attempts, requeueing: %v", msg.JobID, e.maxWriteAttempts, err)
		return OutcomeRequeue
	}
}

// transition applies t and publishes the resulting event.
func (e *Executor) transition(ctx context.Context, id uuid.UUID, t entity.Transition) error {
	rec, err := e.store.CompareAndUpdate(ctx, id, t)
	if err != nil {
		return err
	}
	if e.events != nil {
		if err := e.events.PublishJobEvent(ctx, entity.NewJobEvent(rec)); err != nil {
			e.logger.WarningWithContextf(ctx, "[Worker] Failed to publish %s event for job %s: %v", rec.State, id, err)
		}
	}
	return nil
}

// withRetry retries infrastructure errors with a linear backoff. Domain
// outcomes (not found, stale) are returned immediately.
func (e *Executor) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.maxWriteAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, entity.ErrJobNotFound) || errors.Is(err, entity.ErrStaleTransition) {
			return err
		}

		e.logger.WarningWithContextf(ctx, "[Worker] Store write attempt %d/%d failed: %v", attempt, e.maxWriteAttempts, err)

		if attempt < e.maxWriteAttempts {
			select {
			case <-time.After(time.Duration(attempt) * e.retryDelay):
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			}
		}
	}
	return err
}
