package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles logging, tracing, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// Shutdown stops events and tracing, then closes the log file.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Events.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
		t.Logger.Close(),
	)
}

// Operation is one traced and timed unit of work.
type Operation struct {
	Ctx   context.Context
	Span  trace.Span
	Timer *Timer
}

// StartOperation opens a span on tracer for the named operation. A nil
// tracer yields a no-op span.
func StartOperation(ctx context.Context, tracer *Tracer, name string, attrs ...attribute.KeyValue) *Operation {
	spanCtx, span := tracer.StartSpan(ctx, name, attrs...)
	return &Operation{
		Ctx:   spanCtx,
		Span:  span,
		Timer: NewTimer(),
	}
}

// End closes the span, marking it failed when err is not nil.
func (op *Operation) End(err error) {
	if err != nil {
		RecordError(op.Span, err)
	} else {
		RecordSuccess(op.Span)
	}
	op.Span.End()
}

// ObserveSourceCall runs fn under a source span and records its outcome
// in metrics.
func ObserveSourceCall(ctx context.Context, tracer *Tracer, metrics *Metrics, operation string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.StartSourceSpan(ctx, operation)
	defer span.End()

	timer := NewTimer()
	err := fn(ctx)
	metrics.RecordSourceCall(operation, timer.Duration(), err)

	if err != nil {
		RecordError(span, err)
	} else {
		RecordSuccess(span)
	}
	return err
}
