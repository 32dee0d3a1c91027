package fixtures_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/mongofixtures/blobstore"
	"github.com/kbukum/mongofixtures/fixture"
	"github.com/kbukum/mongofixtures/fixtures"
	"github.com/kbukum/mongofixtures/observability"
)

func TestOperationsAreTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	h := start(t, gridfsConfig(), fixtures.WithTracer(tp.Tracer("test")))
	ctx := context.Background()

	if err := h.fx.Populate(ctx, fubar); err != nil {
		t.Fatal(err)
	}
	if _, err := h.fx.Dump(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.fx.PopulateFixture(ctx, "missing.json"); err == nil {
		t.Fatal("expected missing fixture to fail")
	}
	_ = h.fx.PopulateFiles(ctx, map[string]blobstore.Source{"a": blobstore.String("b")})

	spans := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range rec.Ended() {
		spans[s.Name()] = s
	}
	for _, name := range []string{
		observability.SpanConnect,
		observability.SpanPopulate,
		observability.SpanDump,
		observability.SpanPopulateFiles,
	} {
		if _, ok := spans[name]; !ok {
			t.Errorf("no %s span in %v", name, spanNames(rec.Ended()))
		}
	}

	pop := spans[observability.SpanPopulate]
	if pop == nil {
		t.FailNow()
	}
	want := map[attribute.Key]attribute.Value{
		observability.AttrDatabase:    attribute.StringValue("test"),
		observability.AttrCollections: attribute.IntValue(1),
		observability.AttrDocuments:   attribute.IntValue(2),
		observability.AttrStatus:      attribute.StringValue(observability.StatusOK),
	}
	for _, kv := range pop.Attributes() {
		if v, ok := want[kv.Key]; ok {
			if v != kv.Value {
				t.Errorf("%s = %v, want %v", kv.Key, kv.Value.Emit(), v.Emit())
			}
			delete(want, kv.Key)
		}
	}
	if len(want) != 0 {
		t.Errorf("missing span attributes: %v", want)
	}
}

func TestFailedOperationMarksSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	cfg := gridfsConfig()
	cfg.Fixtures.UseObjectID = true
	h := start(t, cfg, fixtures.WithTracer(tp.Tracer("test")))

	err := h.fx.Populate(context.Background(), fixture.Set{"users": {{{Key: "_id", Value: "bad"}}}})
	if err == nil {
		t.Fatal("expected coercion failure")
	}

	var found bool
	for _, s := range rec.Ended() {
		if s.Name() != observability.SpanPopulate {
			continue
		}
		found = true
		if s.Status().Code != codes.Error {
			t.Errorf("span status = %v", s.Status())
		}
		for _, kv := range s.Attributes() {
			if kv.Key == observability.AttrErrorCode && kv.Value.AsString() != "INVALID_IDENTIFIER" {
				t.Errorf("error.code = %q", kv.Value.AsString())
			}
		}
	}
	if !found {
		t.Errorf("no populate span in %v", spanNames(rec.Ended()))
	}
}

func TestOperationsAreMeasured(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	h := start(t, gridfsConfig(), fixtures.WithMetrics(metrics))
	ctx := context.Background()

	set := fixture.Set{
		"a": {{{Key: "x", Value: 1}}, {{Key: "x", Value: 2}}},
		"b": {{{Key: "y", Value: 3}}},
	}
	if err := h.fx.Populate(ctx, set); err != nil {
		t.Fatal(err)
	}
	files := map[string]blobstore.Source{"f1": blobstore.String("1"), "f2": blobstore.String("2")}
	if err := h.fx.PopulateFiles(ctx, files); err != nil {
		t.Fatal(err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	if got := counter(t, rm, observability.MetricDocumentsInserted); got != 3 {
		t.Errorf("documents inserted = %d, want 3", got)
	}
	if got := counter(t, rm, observability.MetricFilesUploaded); got != 2 {
		t.Errorf("files uploaded = %d, want 2", got)
	}
	if got := counter(t, rm, observability.MetricOperationTotal); got < 3 {
		t.Errorf("operations = %d, want at least 3", got)
	}
}

func counter(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s has data %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}
