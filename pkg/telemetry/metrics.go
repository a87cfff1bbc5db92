package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for the workflow service.
// Every Record/Set method is a no-op on a nil or disabled Metrics.
type Metrics struct {
	config MetricsConfig

	// Reconciliation
	syncRuns     *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	syncChanges  *prometheus.CounterVec

	// Assignment and acceptance
	programsAssigned prometheus.Counter
	partsAccepted    *prometheus.CounterVec
	programsDone     prometheus.Counter
	rollupFailures   prometheus.Counter

	// External source
	sourceCalls    *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	sourceErrors   *prometheus.CounterVec

	// Errors
	errorsByClass *prometheus.CounterVec

	// State
	programsByStatus *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of reconciliation runs",
			},
			[]string{"mode", "status"},
		),
		syncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Duration of reconciliation runs in seconds",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),
		syncChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_changes_total",
				Help:      "Rows written by reconciliation, by entity and change kind",
			},
			[]string{"entity", "change"},
		),

		programsAssigned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "programs_assigned_total",
				Help:      "Total number of program assignments",
			},
		),
		partsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parts_accepted_total",
				Help:      "Total number of parts with accepted quantities",
			},
			[]string{"status"},
		),
		programsDone: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "programs_done_total",
				Help:      "Total number of programs rolled up to DONE",
			},
		),
		rollupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollup_failures_total",
				Help:      "Total number of failed program roll-ups after acceptance",
			},
		),

		sourceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_calls_total",
				Help:      "Total number of nesting source calls",
			},
			[]string{"operation"},
		),
		sourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_call_duration_seconds",
				Help:      "Duration of nesting source calls in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		sourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_errors_total",
				Help:      "Total number of failed nesting source calls",
			},
			[]string{"operation"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of workflow errors by class",
			},
			[]string{"class"},
		),

		programsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "programs",
				Help:      "Current number of programs per status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.syncRuns,
		m.syncDuration,
		m.syncChanges,
		m.programsAssigned,
		m.partsAccepted,
		m.programsDone,
		m.rollupFailures,
		m.sourceCalls,
		m.sourceDuration,
		m.sourceErrors,
		m.errorsByClass,
		m.programsByStatus,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordSyncRun records a finished reconciliation run.
func (m *Metrics) RecordSyncRun(mode, status string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.syncRuns.WithLabelValues(mode, status).Inc()
	m.syncDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordSyncChanges adds n rows of the given entity and change kind.
func (m *Metrics) RecordSyncChanges(entity, change string, n int) {
	if !m.enabled() || n <= 0 {
		return
	}
	m.syncChanges.WithLabelValues(entity, change).Add(float64(n))
}

// RecordProgramsAssigned counts n assigned programs.
func (m *Metrics) RecordProgramsAssigned(n int) {
	if !m.enabled() || n <= 0 {
		return
	}
	m.programsAssigned.Add(float64(n))
}

// RecordPartAccepted counts one accepted part by its resulting status.
func (m *Metrics) RecordPartAccepted(status string) {
	if !m.enabled() {
		return
	}
	m.partsAccepted.WithLabelValues(status).Inc()
}

// RecordProgramDone counts one program rolled up to DONE.
func (m *Metrics) RecordProgramDone() {
	if !m.enabled() {
		return
	}
	m.programsDone.Inc()
}

// RecordRollupFailure counts one failed roll-up.
func (m *Metrics) RecordRollupFailure() {
	if !m.enabled() {
		return
	}
	m.rollupFailures.Inc()
}

// RecordSourceCall records a nesting source call with its duration.
func (m *Metrics) RecordSourceCall(operation string, duration time.Duration, err error) {
	if !m.enabled() {
		return
	}
	m.sourceCalls.WithLabelValues(operation).Inc()
	m.sourceDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.sourceErrors.WithLabelValues(operation).Inc()
	}
}

// RecordError records a workflow error by class.
func (m *Metrics) RecordError(class string) {
	if !m.enabled() {
		return
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// SetProgramCount sets the number of programs currently in status.
func (m *Metrics) SetProgramCount(status string, count float64) {
	if !m.enabled() {
		return
	}
	m.programsByStatus.WithLabelValues(status).Set(count)
}

// Registry returns the registry the collectors are registered with, or nil
// when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, logger zerolog.Logger) error {
	if !m.enabled() {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("path", path).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
