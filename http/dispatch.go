package http

import (
	"context"
	"errors"
	"maps"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-fetch/http/internal/tracking"
	"github.com/gaborage/go-fetch/trace"
)

// Get dispatches a GET request. Query parameters are merged before the URL is resolved.
func (b *Builder) Get(ctx context.Context, url string, query ...map[string]any) (*Response, error) {
	for _, q := range query {
		b.WithQueryParameters(q)
	}
	return b.Send(ctx, MethodGet, url)
}

// Head dispatches a HEAD request. Query parameters are merged before the URL is resolved.
func (b *Builder) Head(ctx context.Context, url string, query ...map[string]any) (*Response, error) {
	for _, q := range query {
		b.WithQueryParameters(q)
	}
	return b.Send(ctx, MethodHead, url)
}

// Options dispatches an OPTIONS request.
func (b *Builder) Options(ctx context.Context, url string) (*Response, error) {
	return b.Send(ctx, MethodOptions, url)
}

// Post dispatches a POST request with data as its body.
func (b *Builder) Post(ctx context.Context, url string, data any) (*Response, error) {
	return b.WithBody(data).Send(ctx, MethodPost, url)
}

// Put dispatches a PUT request with data as its body.
func (b *Builder) Put(ctx context.Context, url string, data any) (*Response, error) {
	return b.WithBody(data).Send(ctx, MethodPut, url)
}

// Patch dispatches a PATCH request with data as its body.
func (b *Builder) Patch(ctx context.Context, url string, data any) (*Response, error) {
	return b.WithBody(data).Send(ctx, MethodPatch, url)
}

// Delete dispatches a DELETE request.
func (b *Builder) Delete(ctx context.Context, url string) (*Response, error) {
	return b.Send(ctx, MethodDelete, url)
}

// Send resolves url once and runs the attempt loop for method.
//
// A settled 2xx response is returned immediately. Any other status is retried while attempts
// remain and the retry callback (when set) agrees; once retrying stops the last response is
// returned without an error. Failed attempts are retried the same way and the last error is
// returned when retrying stops. Configuration and URL errors are never retried.
func (b *Builder) Send(ctx context.Context, method Method, url string) (*Response, error) {
	if b.err != nil {
		return nil, b.err
	}

	b.pending.Method = method
	resolved, err := b.pending.ResolveURL(url)
	if err != nil {
		b.logger.Error().Err(err).Str("method", string(method)).Str("url", url).Msg("Request URL rejected")
		return nil, err
	}
	b.pending.URL = resolved

	ctx, span := tracking.StartSpan(ctx, string(method), resolved)
	if b.traceHeader != "" {
		ctx = b.correlate(ctx)
	}
	resp, attempts, err := b.dispatch(ctx, resolved)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	tracking.EndSpan(span, status, attempts, errorTypeOf(err), err)

	return resp, err
}

// correlate pins the request id, and a traceparent when no span is recording, so every
// attempt of one dispatch carries the same identifiers.
func (b *Builder) correlate(ctx context.Context) context.Context {
	ctx = trace.WithRequestID(ctx, trace.EnsureRequestID(ctx))
	if _, ok := trace.TraceParentFromContext(ctx); ok {
		return ctx
	}
	if oteltrace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	return trace.WithTraceParent(ctx, trace.NewTraceParent())
}

func (b *Builder) dispatch(ctx context.Context, url string) (*Response, int, error) {
	start := time.Now()
	method := string(b.pending.Method)

	for attempt := 1; ; attempt++ {
		resp, err := b.attempt(ctx, url, attempt)

		if err == nil {
			resp.Stats.Attempts = attempt
			resp.Stats.ElapsedTime = time.Since(start)
			if resp.OK() || !b.shouldRetry(attempt, resp, nil) {
				b.logResponse(url, resp)
				return resp, attempt, nil
			}
			b.logRetry(url, attempt, resp.StatusCode, nil)
			tracking.RecordRetry(ctx, method, tracking.ReasonStatus)
		} else {
			if isFatal(err) || ctx.Err() != nil || !b.shouldRetry(attempt, nil, err) {
				b.logFailure(url, attempt, time.Since(start), err)
				return nil, attempt, err
			}
			b.logRetry(url, attempt, 0, err)
			tracking.RecordRetry(ctx, method, tracking.ReasonError)
		}

		// the callback may have rejected configuration
		if b.err != nil {
			return nil, attempt, b.err
		}
		if err := sleep(ctx, b.pending.Retry.Sleep); err != nil {
			b.logFailure(url, attempt, time.Since(start), err)
			return nil, attempt, err
		}
	}
}

// shouldRetry reports whether another attempt follows attempt. The policy is read on every
// call so a callback that calls Retry again takes effect immediately.
func (b *Builder) shouldRetry(attempt int, resp *Response, err error) bool {
	policy := b.pending.Retry
	if attempt > policy.Times {
		return false
	}
	if policy.When == nil {
		return true
	}
	return policy.When(resp, b, err)
}

func (b *Builder) attempt(ctx context.Context, url string, n int) (*Response, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, NewNetworkError("rate limiter wait aborted", err)
		}
	}

	opts, err := b.buildOptions(ctx)
	if err != nil {
		return nil, err
	}

	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout := b.pending.Timeout; timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	mocked := b.mocks.IsActive()
	b.logAttempt(url, n, mocked, opts)

	start := time.Now()
	var resp *Response
	if mocked {
		resp, err = b.mocks.Resolve(attemptCtx, &MockRequest{Method: opts.Method, URL: url, Options: opts})
	} else {
		resp, err = b.transport.Fetch(attemptCtx, url, opts)
		if err == nil && resp == nil {
			err = NewNetworkError("transport returned no response", nil)
		}
	}
	if err != nil {
		err = b.classify(ctx, err)
	}

	status := 0
	if resp != nil && err == nil {
		resp.Stats.Mocked = mocked
		status = resp.StatusCode
	}
	tracking.RecordAttempt(ctx, string(opts.Method), status, time.Since(start), mocked, errorTypeOf(err))

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// classify turns a raw attempt failure into a ClientError. Cancellation of the caller's
// context is returned unchanged.
func (b *Builder) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	if b.pending.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(b.pending.Timeout, err)
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return err
	}
	return NewNetworkError("fetch failed", err)
}

// buildOptions assembles the options of one attempt from the pending request. The builder's
// own headers are never modified.
func (b *Builder) buildOptions(ctx context.Context) (*FetchOptions, error) {
	p := b.pending

	opts := p.Options
	opts.Method = p.Method
	opts.Credentials = p.Credentials
	if opts.Extra != nil {
		opts.Extra = maps.Clone(opts.Extra)
	}

	headers := p.Headers.Clone()
	if p.HasBody() {
		body, err := EncodeBody(p.Body, p.BodyFormat)
		if err != nil {
			return nil, err
		}
		opts.Body = body

		switch ct := headers.Get(HeaderContentType); {
		case ct == "":
			headers.Replace(HeaderContentType, ContentTypeText)
		case ct == ContentTypeFormData && body.Format == FormatFormData:
			// the boundary is only known once the payload is written
			headers.Replace(HeaderContentType, body.ContentType)
		}
	}

	opts.Headers = headers.Header()
	if b.traceHeader != "" {
		if opts.Headers == nil {
			opts.Headers = make(map[string][]string)
		}
		trace.Inject(ctx, opts.Headers, b.traceHeader)
	}
	return &opts, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errorTypeOf(err error) string {
	if err == nil {
		return ""
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return string(clientErr.Type())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}

// logAttempt logs the outgoing attempt
func (b *Builder) logAttempt(url string, attempt int, mocked bool, opts *FetchOptions) {
	event := b.logger.Debug().
		Str("direction", "outbound").
		Str("method", string(opts.Method)).
		Str("url", url).
		Int("attempt", attempt)

	if mocked {
		event.Str("source", "mock")
	}
	if len(opts.Headers) > 0 {
		event.Interface("headers", headerFields(opts.Headers))
	}
	if opts.Body != nil {
		event.Int("body_size", opts.Body.Len())
	}

	event.Msg("HTTP request attempt")
}

// logRetry logs the transition back to a new attempt
func (b *Builder) logRetry(url string, attempt, status int, err error) {
	event := b.logger.Warn().
		Str("method", string(b.pending.Method)).
		Str("url", url).
		Int("attempt", attempt).
		Dur("sleep", b.pending.Retry.Sleep)

	if err != nil {
		event.Err(err)
	} else {
		event.Int("status", status)
	}

	event.Msg("Retrying HTTP request")
}

// logResponse logs the settled response
func (b *Builder) logResponse(url string, resp *Response) {
	event := b.logger.Info()
	if !resp.OK() {
		event = b.logger.Warn()
	}

	event.Str("direction", "inbound").
		Str("method", string(b.pending.Method)).
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("attempts", resp.Stats.Attempts).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Msg("HTTP response")
}

// logFailure logs a dispatch that ended with an error
func (b *Builder) logFailure(url string, attempts int, elapsed time.Duration, err error) {
	b.logger.Error().
		Err(err).
		Str("method", string(b.pending.Method)).
		Str("url", url).
		Int("attempts", attempts).
		Dur("elapsed", elapsed).
		Str("error_type", errorTypeOf(err)).
		Msg("HTTP request failed")
}

// headerFields flattens headers into a field map the logger's sensitive data filter can mask.
func headerFields(h map[string][]string) map[string]any {
	out := make(map[string]any, len(h))
	for name, values := range h {
		if len(values) == 1 {
			out[name] = values[0]
			continue
		}
		out[name] = values
	}
	return out
}
