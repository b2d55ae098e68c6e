package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/action"
	"github.com/tnqbao/gau-job-orchestrator/entity"
	"github.com/tnqbao/gau-job-orchestrator/infra"
	"github.com/tnqbao/gau-job-orchestrator/infra/broker"
	"github.com/tnqbao/gau-job-orchestrator/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tnqbao/gau-job-orchestrator/service"

// SubmissionError means the job could not be accepted because the store or
// broker was unreachable. Stage is "store" or "broker".
type SubmissionError struct {
	JobID uuid.UUID
	Stage string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit job %s at %s stage: %v", e.JobID, e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Dispatcher turns a submission into a durable PENDING record plus a broker
// message. The record is always written first.
type Dispatcher struct {
	registry *action.Registry
	store    repository.JobStore
	broker   broker.Broker
	logger   *infra.LoggerClient
	now      func() time.Time

	tracer    trace.Tracer
	submitted metric.Int64Counter
}

func NewDispatcher(registry *action.Registry, store repository.JobStore, b broker.Broker, logger *infra.LoggerClient) *Dispatcher {
	meter := otel.Meter(instrumentationName)
	submitted, _ := meter.Int64Counter("jobs.submitted",
		metric.WithDescription("Jobs accepted by the dispatcher"),
	)

	return &Dispatcher{
		registry:  registry,
		store:     store,
		broker:    b,
		logger:    logger,
		now:       time.Now,
		tracer:    otel.Tracer(instrumentationName),
		submitted: submitted,
	}
}

// Submit validates the payload, persists a PENDING record and enqueues the
// job. It returns only once the record is readable. If enqueue fails the
// record stays PENDING and a *SubmissionError is returned.
func (d *Dispatcher) Submit(ctx context.Context, actionName string, payload json.RawMessage) (uuid.UUID, error) {
	ctx, span := d.tracer.Start(ctx, "job.submit",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("job.action", actionName)),
	)
	defer span.End()

	def, err := d.registry.Lookup(actionName)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return uuid.Nil, err
	}
	if err := def.Validate(payload); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return uuid.Nil, err
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	id := uuid.New()
	span.SetAttributes(attribute.String("job.id", id.String()))

	rec := entity.NewPendingRecord(id, actionName, d.now())
	if err := d.store.Create(ctx, rec); err != nil {
		d.logger.ErrorWithContextf(ctx, err, "[Dispatcher] Failed to persist job %s (%s): %v", id, actionName, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		return uuid.Nil, &SubmissionError{JobID: id, Stage: "store", Err: err}
	}

	headers := map[string]string{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	msg := entity.TaskMessage{
		JobID:       id,
		Action:      actionName,
		Payload:     payload,
		SubmittedAt: rec.CreatedAt,
		Headers:     headers,
	}
	if err := d.broker.Enqueue(ctx, msg); err != nil {
		d.logger.ErrorWithContextf(ctx, err, "[Dispatcher] Failed to enqueue job %s (%s), record left PENDING: %v", id, actionName, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		return id, &SubmissionError{JobID: id, Stage: "broker", Err: err}
	}

	d.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("job.action", actionName)))
	d.logger.InfoWithContextf(ctx, "[Dispatcher] Submitted job %s (%s)", id, actionName)

	return id, nil
}
