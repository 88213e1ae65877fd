package http

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		match   bool
	}{
		{pattern: "https://api.local/users/", value: "https://api.local/users/", match: true},
		{pattern: "*", value: "https://anything.local/", match: true},
		{pattern: "users/*", value: "https://api.local/users/1/", match: true},
		{pattern: "users/*", value: "https://api.local/orders/1/", match: false},
		{pattern: "api.local/*/posts", value: "https://api.local/users/1/posts/", match: true},
		{pattern: "posts/*/users", value: "https://api.local/users/1/posts/", match: false},
		{pattern: "status", value: "https://api.local/status/", match: true},
		{pattern: "*status*", value: "https://api.local/health/", match: false},
		{pattern: "a*a", value: "xa", match: false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.match, MatchesPattern(tt.pattern, tt.value))
		})
	}
}

func TestMockedResponsesInactiveByDefault(t *testing.T) {
	m := NewMockedResponses()
	assert.False(t, m.IsActive())
	assert.Empty(t, m.Patterns())
}

func TestMockedResponsesFirstMatchWins(t *testing.T) {
	m := NewMockedResponses()
	m.Set(
		Mock("users/*", &Response{StatusCode: 200, Body: []byte("users")}),
		Mock("*", &Response{StatusCode: 404}),
	)
	assert.True(t, m.IsActive())
	assert.Equal(t, []string{"users/*", "*"}, m.Patterns())

	resp, err := m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/users/1/"})
	require.NoError(t, err)
	assert.Equal(t, "users", resp.String())

	resp, err = m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/orders/"})
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestMockedResponsesRepeatedPatternKeepsPosition(t *testing.T) {
	m := NewMockedResponses()
	m.Set(
		Mock("users", &Response{StatusCode: 201}),
		Mock("*", &Response{StatusCode: 404}),
		Mock("users", &Response{StatusCode: 202}),
	)

	assert.Equal(t, []string{"users", "*"}, m.Patterns())
	resp, err := m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/users/"})
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)
}

func TestMockedResponsesSetReplacesTable(t *testing.T) {
	m := NewMockedResponses()
	m.Set(Mock("users", &Response{StatusCode: 200}))
	m.Set(Mock("orders", &Response{StatusCode: 200}))

	_, err := m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/users/"})
	require.Error(t, err)

	m.Set()
	assert.False(t, m.IsActive())
}

func TestMockedResponsesMissing(t *testing.T) {
	m := NewMockedResponses()
	m.Set(Mock("users", &Response{StatusCode: 200}))

	_, err := m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/orders/"})
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch mocked response", err.Error())
	assert.True(t, errors.Is(err, ErrMissingMockedResponse))
	assert.True(t, IsErrorType(err, MockResolutionError))

	var missing interface{ URL() string }
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "https://api.local/orders/", missing.URL())
}

func TestMockedResponsesStaticResponseIsCopied(t *testing.T) {
	m := NewMockedResponses()
	m.Set(Mock("*", &Response{StatusCode: 200, Body: []byte("original")}))

	first, err := m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/"})
	require.NoError(t, err)
	first.Body[0] = 'X'
	first.Stats.Attempts = 9

	second, err := m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/"})
	require.NoError(t, err)
	assert.Equal(t, "original", second.String())
	assert.Zero(t, second.Stats.Attempts)
}

func TestMockedResponsesNilResponseIsEmpty200(t *testing.T) {
	m := NewMockedResponses()
	m.Set(Mock("*", nil))

	resp, err := m.Resolve(context.Background(), &MockRequest{URL: "https://api.local/"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, resp.Body)
}

func TestMockedResponsesResponder(t *testing.T) {
	m := NewMockedResponses()
	calls := 0
	m.Set(MockFunc("*", func(_ context.Context, req *MockRequest) (*Response, error) {
		calls++
		if req.Method == MethodDelete {
			return nil, errors.New("delete refused")
		}
		return &Response{StatusCode: 200 + calls}, nil
	}))

	resp, err := m.Resolve(context.Background(), &MockRequest{Method: MethodGet, URL: "https://api.local/"})
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)

	_, err = m.Resolve(context.Background(), &MockRequest{Method: MethodDelete, URL: "https://api.local/"})
	require.EqualError(t, err, "delete refused")
	assert.Equal(t, 2, calls)
}

func TestMockedResponsesRecorded(t *testing.T) {
	m := NewMockedResponses()
	m.Set(Mock("users", nil))

	_, _ = m.Resolve(context.Background(), &MockRequest{Method: MethodGet, URL: "https://api.local/users/"})
	_, _ = m.Resolve(context.Background(), &MockRequest{Method: MethodPost, URL: "https://api.local/orders/"})

	recorded := m.Recorded()
	require.Len(t, recorded, 2)
	assert.Equal(t, MethodGet, recorded[0].Method)
	assert.Equal(t, "https://api.local/orders/", recorded[1].URL)
}

func TestMockedResponsesResponderResultIsCopied(t *testing.T) {
	shared := &Response{StatusCode: 202, Body: []byte("ok")}
	m := NewMockedResponses()
	m.Set(MockFunc("*", func(context.Context, *MockRequest) (*Response, error) {
		return shared, nil
	}))

	resp, err := m.Resolve(context.Background(), &MockRequest{Method: MethodGet, URL: "https://api.local/"})
	require.NoError(t, err)

	assert.NotSame(t, shared, resp)
	resp.Stats.Attempts = 3
	assert.Zero(t, shared.Stats.Attempts)
}
