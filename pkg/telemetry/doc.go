// Package telemetry provides observability for the PlasmaReport workflow service.
//
// It combines structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and a workflow event publisher.
//
// # Usage
//
// Build telemetry once in main and pass the pieces down:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	logger := tel.Logger.Zerolog().With().Str("component", "workflow").Logger()
//
// # Metrics
//
// Metrics are registered on a private registry and exposed by Metrics.Serve.
// All Record and Set methods are safe on a nil or disabled *Metrics, so
// library code never checks whether metrics are configured:
//
//	tel.Metrics.RecordSyncRun("update", "succeeded", elapsed)
//	tel.Metrics.RecordPartAccepted("DONE_FULL")
//
// # Tracing
//
// Workflow operations open one span each:
//
//	op := telemetry.StartOperation(ctx, tel.Tracer, "workflow.assign")
//	defer func() { op.End(err) }()
//
// Supported exporters: otlp (gRPC), stdout, none.
//
// # Events
//
// The EventPublisher delivers workflow events such as program.assigned or
// parts.accepted to subscribers. The workflow package subscribes an audit
// writer that appends every event to the audit table. Delivery is
// synchronous unless EventsConfig.EnableAsync is set, in which case
// Shutdown drains the buffer before returning.
package telemetry
