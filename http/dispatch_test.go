package http

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/trace"
)

const testRetrySleep = time.Millisecond

type fetchCall struct {
	url  string
	opts *FetchOptions
}

// stubTransport records every attempt and answers through handler, which receives the
// 1-based call number.
type stubTransport struct {
	mu      sync.Mutex
	calls   []fetchCall
	handler func(ctx context.Context, n int) (*Response, error)
}

func (s *stubTransport) Fetch(ctx context.Context, url string, opts *FetchOptions) (*Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, fetchCall{url: url, opts: opts})
	n := len(s.calls)
	s.mu.Unlock()
	return s.handler(ctx, n)
}

func (s *stubTransport) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubTransport) last() fetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return fetchCall{}
	}
	return s.calls[len(s.calls)-1]
}

func respondWith(status int) *stubTransport {
	return &stubTransport{handler: func(context.Context, int) (*Response, error) {
		return &Response{StatusCode: status}, nil
	}}
}

func newTestBuilder(transport Transport) *Builder {
	return NewBuilder(testBaseURL).WithTransport(transport)
}

func TestSendReturnsSuccessImmediately(t *testing.T) {
	transport := respondWith(200)

	resp, err := newTestBuilder(transport).Retry(3, testRetrySleep).Get(context.Background(), "status")
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, transport.count())
	assert.Equal(t, 1, resp.Stats.Attempts)
	assert.False(t, resp.Stats.Mocked)
	assert.Equal(t, "https://api.local/status/", transport.last().url)
}

func TestSendRetriesFailedStatusUntilExhausted(t *testing.T) {
	transport := respondWith(503)

	resp, err := newTestBuilder(transport).Retry(2, testRetrySleep).Get(context.Background(), "status")
	require.NoError(t, err)

	assert.Equal(t, 3, transport.count())
	assert.Equal(t, 503, resp.StatusCode)
	assert.Equal(t, 3, resp.Stats.Attempts)
	assert.Positive(t, resp.Stats.ElapsedTime)
}

func TestSendWithoutRetryReturnsFailedStatus(t *testing.T) {
	transport := respondWith(404)

	resp, err := newTestBuilder(transport).Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.True(t, resp.ClientError())
	assert.Equal(t, 1, transport.count())
}

func TestRetryCallbackRecoversWithMockedResponse(t *testing.T) {
	transport := respondWith(503)
	var seen []int

	resp, err := newTestBuilder(transport).
		Retry(2, testRetrySleep, func(resp *Response, b *Builder, err error) bool {
			require.NoError(t, err)
			seen = append(seen, resp.StatusCode)
			b.Fake(Mock("*", &Response{StatusCode: 200, Body: []byte("recovered")}))
			return true
		}).
		Get(context.Background(), "status")
	require.NoError(t, err)

	assert.Equal(t, 1, transport.count())
	assert.Equal(t, []int{503}, seen)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "recovered", resp.String())
	assert.Equal(t, 2, resp.Stats.Attempts)
	assert.True(t, resp.Stats.Mocked)
}

func TestRetryCallbackCanStopOnResponse(t *testing.T) {
	transport := respondWith(500)
	calls := 0

	resp, err := newTestBuilder(transport).
		Retry(5, testRetrySleep, func(*Response, *Builder, error) bool {
			calls++
			return false
		}).
		Get(context.Background(), "status")
	require.NoError(t, err)

	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, 1, transport.count())
	assert.Equal(t, 1, calls)
}

func TestRetryCallbackNotInvokedAfterLastAttempt(t *testing.T) {
	transport := respondWith(500)
	calls := 0

	_, err := newTestBuilder(transport).
		Retry(1, testRetrySleep, func(*Response, *Builder, error) bool {
			calls++
			return true
		}).
		Get(context.Background(), "status")
	require.NoError(t, err)

	assert.Equal(t, 2, transport.count())
	assert.Equal(t, 1, calls)
}

func TestSendRetriesErrorsAndReturnsLastError(t *testing.T) {
	boom := errors.New("connection refused")
	transport := &stubTransport{handler: func(context.Context, int) (*Response, error) {
		return nil, boom
	}}

	resp, err := newTestBuilder(transport).Retry(2, testRetrySleep).Get(context.Background(), "status")
	require.Error(t, err)

	assert.Nil(t, resp)
	assert.Equal(t, 3, transport.count())
	assert.True(t, errors.Is(err, boom))
	assert.True(t, IsErrorType(err, NetworkError))
}

func TestRetryCallbackStopsOnError(t *testing.T) {
	transport := &stubTransport{handler: func(context.Context, int) (*Response, error) {
		return nil, errors.New("connection reset")
	}}
	var got error

	_, err := newTestBuilder(transport).
		Retry(3, testRetrySleep, func(resp *Response, _ *Builder, err error) bool {
			assert.Nil(t, resp)
			got = err
			return false
		}).
		Get(context.Background(), "status")

	require.Error(t, err)
	assert.Equal(t, 1, transport.count())
	assert.Same(t, err, got)
}

func TestSendRecoversAfterError(t *testing.T) {
	transport := &stubTransport{handler: func(_ context.Context, n int) (*Response, error) {
		if n == 1 {
			return nil, errors.New("temporary")
		}
		return &Response{StatusCode: 200}, nil
	}}

	resp, err := newTestBuilder(transport).Retry(1, testRetrySleep).Get(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Stats.Attempts)
}

func TestSendTimeout(t *testing.T) {
	transport := &stubTransport{handler: func(ctx context.Context, _ int) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	_, err := newTestBuilder(transport).
		Timeout(10*time.Millisecond).
		Retry(1, testRetrySleep).
		Get(context.Background(), "slow")
	require.Error(t, err)

	assert.Equal(t, "The operation was aborted due to timeout.", err.Error())
	assert.True(t, IsErrorType(err, TimeoutError))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 2, transport.count())
}

func TestSendStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &stubTransport{handler: func(context.Context, int) (*Response, error) {
		cancel()
		return &Response{StatusCode: 503}, nil
	}}

	start := time.Now()
	_, err := newTestBuilder(transport).Retry(5, time.Hour).Get(ctx, "status")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, transport.count())
	assert.Less(t, time.Since(start), time.Minute)
}

func TestSendDoesNotRetryConfigurationErrors(t *testing.T) {
	transport := respondWith(200)

	b := newTestBuilder(transport).WithHeaders("Accept: */*").Retry(3, testRetrySleep)
	_, err := b.Get(context.Background(), "status")

	require.Error(t, err)
	assert.Equal(t, "Header options must be an object.", err.Error())
	assert.Same(t, b.Err(), err)
	assert.Zero(t, transport.count())
}

func TestSendDoesNotRetryURLErrors(t *testing.T) {
	transport := respondWith(200)

	_, err := NewBuilder("").WithTransport(transport).Retry(3, testRetrySleep).Get(context.Background(), "relative")
	require.ErrorIs(t, err, ErrInvalidURL)
	assert.Zero(t, transport.count())
}

func TestSendBodyErrorsAreReturned(t *testing.T) {
	transport := respondWith(200)

	_, err := newTestBuilder(transport).AsForm().Retry(1, testRetrySleep).Post(context.Background(), "users", "name=luis")
	require.Error(t, err)

	assert.Equal(t, "Cannot parse a string as FormData.", err.Error())
	assert.Zero(t, transport.count())
}

func TestSendMissingMockedResponse(t *testing.T) {
	transport := respondWith(200)

	_, err := newTestBuilder(transport).
		Fake(Mock("users", &Response{StatusCode: 200})).
		Get(context.Background(), "orders")

	require.ErrorIs(t, err, ErrMissingMockedResponse)
	assert.Equal(t, "Failed to fetch mocked response", err.Error())
	assert.Zero(t, transport.count())
}

func TestSendMockedWildcard(t *testing.T) {
	b := newTestBuilder(respondWith(500)).Fake(
		Mock("users/*", &Response{StatusCode: 200, Body: []byte(`{"id":1}`)}),
	)

	resp, err := b.Get(context.Background(), "users/1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Get("id").Int())
	assert.True(t, resp.Stats.Mocked)

	recorded := b.Recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, MethodGet, recorded[0].Method)
	assert.Equal(t, "https://api.local/users/1/", recorded[0].URL)
}

func TestSendTransportWithoutResponse(t *testing.T) {
	transport := &stubTransport{handler: func(context.Context, int) (*Response, error) {
		return nil, nil
	}}

	_, err := newTestBuilder(transport).Get(context.Background(), "status")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
}

func TestSendRateLimiter(t *testing.T) {
	transport := respondWith(200)
	b := newTestBuilder(transport).WithRateLimiter(rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := b.Get(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Get(ctx, "second")

	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
	assert.Equal(t, 1, transport.count())
}

func TestSendTraceHeader(t *testing.T) {
	transport := respondWith(200)
	b := newTestBuilder(transport).WithTraceHeader("X-Correlation-ID")

	ctx := trace.WithRequestID(context.Background(), "req-42")
	_, err := b.Get(ctx, "status")
	require.NoError(t, err)

	assert.Equal(t, "req-42", transport.last().opts.Headers.Get("X-Correlation-ID"))
	assert.False(t, b.Pending().Headers.Has("X-Correlation-ID"))
}

func TestSendTraceHeaderStableAcrossRetries(t *testing.T) {
	transport := respondWith(503)
	b := newTestBuilder(transport).WithTraceHeader("X-Request-ID").Retry(2, 0)

	_, err := b.Get(context.Background(), "status")
	require.NoError(t, err)
	require.Equal(t, 3, transport.count())

	transport.mu.Lock()
	calls := slices.Clone(transport.calls)
	transport.mu.Unlock()

	id := calls[0].opts.Headers.Get("X-Request-ID")
	parent := calls[0].opts.Headers.Get(trace.HeaderTraceParent)
	require.NotEmpty(t, id)
	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, parent)
	for _, call := range calls[1:] {
		assert.Equal(t, id, call.opts.Headers.Get("X-Request-ID"))
		assert.Equal(t, parent, call.opts.Headers.Get(trace.HeaderTraceParent))
	}
}

func TestSendTraceHeaderKeepsContextTraceParent(t *testing.T) {
	transport := respondWith(200)
	in := "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01"

	ctx := trace.WithTraceParent(context.Background(), in)
	_, err := newTestBuilder(transport).WithTraceHeader("X-Request-ID").Get(ctx, "status")
	require.NoError(t, err)

	assert.Equal(t, in, transport.last().opts.Headers.Get(trace.HeaderTraceParent))
}

func TestSendSharedResponderAcrossBuilders(t *testing.T) {
	shared := &Response{StatusCode: 503, Status: "503 Service Unavailable"}
	responder := MockFunc("*", func(context.Context, *MockRequest) (*Response, error) {
		return shared, nil
	})

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*Response, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := NewBuilder("https://api.local").
				Fake(responder).
				Retry(i%3, 0).
				Get(context.Background(), "status")
			if err == nil {
				results[i] = resp
			}
		}(i)
	}
	wg.Wait()

	for i, resp := range results {
		require.NotNil(t, resp)
		assert.Equal(t, i%3+1, resp.Stats.Attempts)
		assert.True(t, resp.Stats.Mocked)
	}
	assert.Zero(t, shared.Stats.Attempts)
	assert.False(t, shared.Stats.Mocked)
}

func TestSendLogsWithoutLeakingCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", false)

	_, err := newTestBuilder(respondWith(503)).
		WithLogger(log).
		WithToken("super-secret-token").
		Retry(1, testRetrySleep).
		Get(context.Background(), "status")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "HTTP request attempt")
	assert.Contains(t, out, "Retrying HTTP request")
	assert.Contains(t, out, "HTTP response")
	assert.Contains(t, out, `"attempts":2`)
	assert.False(t, strings.Contains(out, "super-secret-token"))
}
