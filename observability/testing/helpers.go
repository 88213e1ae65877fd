// Package testing provides in-memory OpenTelemetry providers and assertions for the spans
// and metrics recorded by the fetch client.
//
// Usage:
//
//	tp := NewTestTraceProvider()
//	mp := NewTestMeterProvider()
//	Install(t, tp, mp)
//
//	// dispatch requests ...
//
//	NewSpanCollector(t, tp.Exporter).WithName("GET").AssertCount(1)
//	AssertMetricValue(t, mp.Collect(t), "http.client.retries", 2)
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrValueMismatchErrMsg   = "attribute %s value mismatch"
	metricNotFoundErrMsg      = "metric %s not found"
	metricValueMismatchErrMsg = "metric %s value mismatch"
)

// TestTraceProvider wraps the SDK TracerProvider and in-memory exporter for testing.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports synchronously into memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	return &TestTraceProvider{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and manual reader for testing.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are collected on demand.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	return &TestMeterProvider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		Reader:        reader,
	}
}

// Collect reads all metrics from the provider.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tmp.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// Install sets tp and mp as the global providers for the duration of the test and
// restores the previous ones afterwards. Either may be nil. Installing a trace provider also
// installs the W3C trace context propagator.
func Install(t *testing.T, tp *TestTraceProvider, mp *TestMeterProvider) {
	t.Helper()

	prevTracer := otel.GetTracerProvider()
	prevMeter := otel.GetMeterProvider()
	prevPropagator := otel.GetTextMapPropagator()
	if tp != nil {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.TraceContext{})
	}
	if mp != nil {
		otel.SetMeterProvider(mp)
	}

	t.Cleanup(func() {
		if tp != nil {
			_ = tp.Shutdown(context.Background())
		}
		if mp != nil {
			_ = mp.Shutdown(context.Background())
		}
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
		otel.SetTextMapPropagator(prevPropagator)
	})
}

// SpanCollector provides a fluent API for filtering and asserting on captured spans.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

// NewSpanCollector creates a span collector from an in-memory exporter.
func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{t: t, spans: exporter.GetSpans()}
}

// Len returns the number of collected spans.
func (sc *SpanCollector) Len() int {
	return len(sc.spans)
}

// WithName filters spans by name.
func (sc *SpanCollector) WithName(name string) *SpanCollector {
	filtered := make(tracetest.SpanStubs, 0, len(sc.spans))
	for i := range sc.spans {
		if sc.spans[i].Name == name {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// WithKind filters spans by span kind.
func (sc *SpanCollector) WithKind(kind trace.SpanKind) *SpanCollector {
	filtered := make(tracetest.SpanStubs, 0, len(sc.spans))
	for i := range sc.spans {
		if sc.spans[i].SpanKind == kind {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// WithAttribute filters spans carrying key with the given value.
func (sc *SpanCollector) WithAttribute(key string, value any) *SpanCollector {
	filtered := make(tracetest.SpanStubs, 0, len(sc.spans))
	for i := range sc.spans {
		if v, ok := findAttribute(sc.spans[i].Attributes, key); ok && matchesValue(v, value) {
			filtered = append(filtered, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: filtered}
}

// First returns the first span in the collection and fails the test when it is empty.
func (sc *SpanCollector) First() tracetest.SpanStub {
	sc.t.Helper()
	require.NotEmpty(sc.t, sc.spans, "no spans in collection")
	return sc.spans[0]
}

// AssertCount asserts the number of collected spans.
func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

func findAttribute(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func matchesValue(v attribute.Value, expected any) bool {
	switch e := expected.(type) {
	case string:
		return v.AsString() == e
	case int:
		return v.AsInt64() == int64(e)
	case int64:
		return v.AsInt64() == e
	case bool:
		return v.AsBool() == e
	default:
		return false
	}
}

// AssertSpanAttribute asserts that span carries key with the expected value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	v, ok := findAttribute(span.Attributes, key)
	if !ok {
		t.Errorf("attribute %s not found in span", key)
		return
	}
	assert.True(t, matchesValue(v, expected), attrValueMismatchErrMsg, key)
}

// AssertNoSpanAttribute asserts that span does not carry key.
func AssertNoSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string) {
	t.Helper()
	_, ok := findAttribute(span.Attributes, key)
	assert.False(t, ok, "unexpected attribute %s in span", key)
}

// AssertSpanError asserts an error status, with the description when one is given.
func AssertSpanError(t *testing.T, span *tracetest.SpanStub, expectedDesc string) {
	t.Helper()
	assert.Equal(t, codes.Error, span.Status.Code, "expected error status")
	if expectedDesc != "" {
		assert.Equal(t, expectedDesc, span.Status.Description, "span error description mismatch")
	}
}

// FindMetric finds a metric by name. It returns nil when absent.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// AssertMetricValue asserts the summed value of an int64 counter, or the total count of
// a histogram, across all data points of the named metric.
func AssertMetricValue(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expected int) {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)

	var total int64
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			total += dp.Value
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			total += int64(dp.Count)
		}
	default:
		t.Fatalf("unsupported metric data type: %T", m.Data)
	}
	assert.Equal(t, int64(expected), total, metricValueMismatchErrMsg, metricName)
}
