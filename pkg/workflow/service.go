package workflow

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/plasmareport/plasmareport/pkg/nesting"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// Service runs the manufacturing workflow: reconciliation from the nesting
// source, assignment, operator hand-off and quantity acceptance. Each
// operation writes in one store transaction.
type Service struct {
	store    stores.Store
	source   nesting.Source
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	events   *telemetry.EventPublisher
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With().Str("component", "workflow").Logger()
	}
}

// WithTelemetry wires the logger, metrics, tracer and events of tel.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(s *Service) {
		if tel == nil {
			return
		}
		WithLogger(tel.Logger.Zerolog())(s)
		s.metrics = tel.Metrics
		s.tracer = tel.Tracer
		s.events = tel.Events
	}
}

// WithEvents sets the publisher that receives workflow events.
func WithEvents(events *telemetry.EventPublisher) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithClock overrides the time source used for report windows and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a workflow service. source may be nil for callers that
// never reconcile.
func NewService(store stores.Store, source nesting.Source, opts ...Option) *Service {
	s := &Service{
		store:    store,
		source:   source,
		logger:   zerolog.Nop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run traces op, classifies the error it returns and counts it.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	o := telemetry.StartOperation(ctx, s.tracer, "workflow."+op, attrs...)

	err := fn(o.Ctx)
	var werr *Error
	if err != nil {
		werr = classify(op, err)
		o.Span.SetAttributes(telemetry.AttrErrorClass.String(string(werr.Class)))
		s.metrics.RecordError(string(werr.Class))
		s.logError(werr)
	}

	if werr == nil {
		o.End(nil)
		return nil
	}
	o.End(werr)
	return werr
}

// logError logs storage failures with their cause at error level; the other
// classes are caller mistakes and only reach debug.
func (s *Service) logError(err *Error) {
	if err.Class == ClassStorage {
		s.logger.Error().Err(err.Err).Str("op", err.Op).Msg(err.Message)
		return
	}
	s.logger.Debug().Str("op", err.Op).Str("class", string(err.Class)).Msg(err.Error())
}

// publish emits a workflow event. Publishing failures never fail the operation.
func (s *Service) publish(event telemetry.Event) {
	if event.Source == "" {
		event.Source = "workflow"
	}
	if err := s.events.Publish(event); err != nil {
		s.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to publish event")
	}
}
