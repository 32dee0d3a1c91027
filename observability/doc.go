// Package observability provides OpenTelemetry tracing and metrics for
// fixture operations.
//
// Every facade call runs inside an Operation, which opens a span and, when
// Metrics are configured, records the operation count, duration and error
// code:
//
//	ctx, op := observability.StartOperation(ctx, tracer, metrics, observability.SpanPopulate)
//	return op.End(populate(ctx))
//
// InitTracer and InitMeter install global OTLP HTTP exporters for suites
// that ship telemetry to a collector.
package observability
