package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Instrumentation scope for client metrics and spans
	instrumentationName = "go-fetch/http"

	// Metric names following OpenTelemetry HTTP client semantic conventions
	metricRequestDuration = "http.client.request.duration" // Histogram in seconds, one point per attempt

	// Client-specific metrics
	metricRetries = "http.client.retries" // Counter of retry transitions

	// Attribute keys per OTel semantic conventions
	attrHTTPMethod     = "http.request.method"
	attrHTTPStatusCode = "http.response.status_code"
	attrResendCount    = "http.request.resend_count"
	attrURLFull        = "url.full"
	attrErrorType      = "error.type"
	attrMocked         = "fetch.mocked"
	attrRetryReason    = "fetch.retry.reason"
)

// Retry reasons
const (
	ReasonStatus = "status"
	ReasonError  = "error"
)

var (
	meter         metric.Meter
	meterOnce     sync.Once
	meterInitMu   sync.Mutex
	metricsInited bool

	requestDuration metric.Float64Histogram
	retryCounter    metric.Int64Counter
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize http client metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}

	meter = otel.Meter(instrumentationName)

	var err error
	requestDuration, err = meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of HTTP client request attempts"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	retryCounter, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of retried HTTP client attempts"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	metricsInited = true
}

func ensureMeterInitialized() {
	meterOnce.Do(initMeter)
}

// RecordAttempt records the duration of one dispatch attempt.
// status is 0 when the attempt failed before a response settled.
func RecordAttempt(ctx context.Context, method string, status int, duration time.Duration, mocked bool, errType string) {
	ensureMeterInitialized()

	attrs := []attribute.KeyValue{
		attribute.String(attrHTTPMethod, method),
		attribute.Bool(attrMocked, mocked),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(attrHTTPStatusCode, status))
	}
	if errType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errType))
	}

	if requestDuration != nil {
		requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// RecordRetry counts a transition back to a new attempt.
func RecordRetry(ctx context.Context, method, reason string) {
	ensureMeterInitialized()

	if retryCounter != nil {
		retryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrHTTPMethod, method),
			attribute.String(attrRetryReason, reason),
		))
	}
}

// StartSpan opens the client span covering a whole dispatch, retries included.
func StartSpan(ctx context.Context, method, url string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(attrHTTPMethod, method),
			attribute.String(attrURLFull, url),
		),
	)
}

// EndSpan records the dispatch outcome on span and ends it.
func EndSpan(span trace.Span, status, attempts int, errType string, err error) {
	if attempts > 1 {
		span.SetAttributes(attribute.Int(attrResendCount, attempts-1))
	}
	if status > 0 {
		span.SetAttributes(attribute.Int(attrHTTPStatusCode, status))
		if status >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
	if err != nil {
		span.SetAttributes(attribute.String(attrErrorType, errType))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// IsInitialized returns true if client metrics have been initialized.
func IsInitialized() bool {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	return metricsInited
}

// ResetForTesting resets the metric state for testing purposes.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter = nil
	requestDuration = nil
	retryCounter = nil
	metricsInited = false
	meterOnce = sync.Once{}
}
