package fixtures

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// UpstreamService is the service name of server spans recorded by an Upstream.
const UpstreamService = "fixtures-upstream"

// RecordedRequest is a request received by an Upstream.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers nethttp.Header
	Body    []byte
}

// Reply is one scripted answer of an Upstream.
type Reply struct {
	Status  int
	Body    string
	Headers map[string]string
	Delay   time.Duration
}

// Upstream is an echo-backed HTTP server that records every request and answers with
// scripted replies. Once the script is exhausted the last reply repeats; with no script
// it answers 200 with an empty JSON object. Incoming W3C trace context is extracted into
// a server span on the global tracer provider.
type Upstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	replies  []Reply
}

// NewUpstream starts an upstream answering with replies in order. It is closed when the
// test ends.
func NewUpstream(t testing.TB, replies ...Reply) *Upstream {
	t.Helper()

	u := &Upstream{replies: replies}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware(UpstreamService))
	e.Any("/*", u.handle)

	u.Server = httptest.NewServer(e)
	t.Cleanup(u.Close)
	return u
}

func (u *Upstream) handle(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(nethttp.StatusBadRequest, err.Error())
	}

	u.mu.Lock()
	u.requests = append(u.requests, RecordedRequest{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   req.URL.RawQuery,
		Headers: req.Header.Clone(),
		Body:    body,
	})
	reply := u.nextReply()
	u.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-req.Context().Done():
			return nil
		}
	}

	for name, value := range reply.Headers {
		c.Response().Header().Set(name, value)
	}
	if reply.Body == "" && reply.Status == nethttp.StatusNoContent {
		return c.NoContent(reply.Status)
	}
	if _, ok := reply.Headers["Content-Type"]; ok {
		return c.Blob(reply.Status, reply.Headers["Content-Type"], []byte(reply.Body))
	}
	return c.JSONBlob(reply.Status, []byte(reply.Body))
}

// nextReply pops the next scripted reply. Callers hold u.mu.
func (u *Upstream) nextReply() Reply {
	if len(u.replies) == 0 {
		return Reply{Status: nethttp.StatusOK, Body: "{}"}
	}
	reply := u.replies[0]
	if len(u.replies) > 1 {
		u.replies = u.replies[1:]
	}
	if reply.Status == 0 {
		reply.Status = nethttp.StatusOK
	}
	return reply
}

// Requests returns the recorded requests in arrival order.
func (u *Upstream) Requests() []RecordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]RecordedRequest, len(u.requests))
	copy(out, u.requests)
	return out
}

// Count returns how many requests have been received.
func (u *Upstream) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}
