package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mongofixtures/errors"
)

// Status values recorded on spans and metrics.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Operation tracks one traced and measured fixture operation.
type Operation struct {
	Name      string
	StartTime time.Time

	ctx     context.Context
	span    trace.Span
	metrics *Metrics
}

// StartOperation starts a span named name on tracer. metrics may be nil, in
// which case only the span is recorded.
func StartOperation(ctx context.Context, tracer trace.Tracer, metrics *Metrics, name string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Operation{Name: name, StartTime: time.Now(), ctx: ctx, span: span, metrics: metrics}
}

// Span returns the operation span.
func (o *Operation) Span() trace.Span { return o.span }

// SetAttributes adds attributes to the operation span.
func (o *Operation) SetAttributes(attrs ...attribute.KeyValue) {
	o.span.SetAttributes(attrs...)
}

// End closes the span and records the outcome. err is returned unchanged
// so End can wrap a return statement.
func (o *Operation) End(err error) error {
	duration := time.Since(o.StartTime)
	status := StatusOK
	if err != nil {
		status = StatusError
		SetSpanError(o.ctx, err)
		code := "UNKNOWN"
		if appErr, ok := errors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		o.span.SetAttributes(attribute.String(AttrErrorCode, code))
		if o.metrics != nil {
			o.metrics.RecordError(o.ctx, code, o.Name)
		}
	}
	o.span.SetAttributes(attribute.String(AttrStatus, status))
	o.span.End()

	if o.metrics != nil {
		o.metrics.RecordOperation(o.ctx, o.Name, status, duration)
	}
	return err
}

// Duration returns the elapsed time since the operation started.
func (o *Operation) Duration() time.Duration {
	return time.Since(o.StartTime)
}
