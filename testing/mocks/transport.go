package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-fetch/http"
)

// MockTransport provides a testify-based mock implementation of the http.Transport interface.
// It records every url and option set it is called with.
//
// Example usage:
//
//	transport := &mocks.MockTransport{}
//	transport.ExpectFetch("https://api.local/users/", fixtures.JSONResponse(200, `{"id":1}`))
//
//	resp, err := http.NewBuilder("https://api.local").WithTransport(transport).Get(ctx, "users")
//	transport.AssertExpectations(t)
type MockTransport struct {
	mock.Mock

	mu    sync.Mutex
	calls []FetchCall
}

// FetchCall is one recorded Fetch invocation.
type FetchCall struct {
	URL     string
	Options *http.FetchOptions
}

var _ http.Transport = (*MockTransport)(nil)

// Fetch implements http.Transport
func (m *MockTransport) Fetch(ctx context.Context, url string, opts *http.FetchOptions) (*http.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, FetchCall{URL: url, Options: opts})
	m.mu.Unlock()

	arguments := m.Called(ctx, url, opts)

	var resp *http.Response
	if r := arguments.Get(0); r != nil {
		resp = r.(*http.Response)
	}
	return resp, arguments.Error(1)
}

// Calls returns the recorded Fetch invocations in order.
func (m *MockTransport) Calls() []FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FetchCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent Fetch invocation.
func (m *MockTransport) LastCall() (FetchCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return FetchCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Helper methods for common expectations

// ExpectFetch sets up an expectation for a Fetch of url returning resp
func (m *MockTransport) ExpectFetch(url string, resp *http.Response) *mock.Call {
	return m.On("Fetch", mock.Anything, url, mock.Anything).Return(resp, nil)
}

// ExpectFetchAny sets up an expectation for a Fetch of any url returning resp
func (m *MockTransport) ExpectFetchAny(resp *http.Response) *mock.Call {
	return m.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(resp, nil)
}

// ExpectFetchError sets up an expectation for a Fetch of any url failing with err
func (m *MockTransport) ExpectFetchError(err error) *mock.Call {
	return m.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil, err)
}

// ExpectFetchWithMethod sets up an expectation matching on the request method
func (m *MockTransport) ExpectFetchWithMethod(method http.Method, resp *http.Response) *mock.Call {
	return m.On("Fetch", mock.Anything, mock.Anything, mock.MatchedBy(func(opts *http.FetchOptions) bool {
		return opts != nil && opts.Method == method
	})).Return(resp, nil)
}
