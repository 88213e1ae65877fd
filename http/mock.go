package http

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// WildcardPattern matches every request URL.
const WildcardPattern = "*"

// Responder lazily produces a mocked response for an intercepted request.
type Responder func(ctx context.Context, req *MockRequest) (*Response, error)

// MockEntry pairs a URL pattern with the response returned for matching requests.
type MockEntry struct {
	Pattern   string
	Response  *Response
	Responder Responder
}

// Mock registers a static response for pattern.
func Mock(pattern string, resp *Response) MockEntry {
	return MockEntry{Pattern: pattern, Response: resp}
}

// MockFunc registers a responder evaluated each time pattern matches.
func MockFunc(pattern string, fn Responder) MockEntry {
	return MockEntry{Pattern: pattern, Responder: fn}
}

// MockRequest is the request a mocked response was resolved for.
type MockRequest struct {
	Method  Method
	URL     string
	Options *FetchOptions
}

// MockedResponses is the pattern table that short-circuits dispatch while it is non-empty.
type MockedResponses struct {
	mu       sync.Mutex
	table    *linkedhashmap.Map
	recorded []*MockRequest
}

// NewMockedResponses creates an inactive registry.
func NewMockedResponses() *MockedResponses {
	return &MockedResponses{table: linkedhashmap.New()}
}

// Set replaces the whole table. Entries are tried in the given order; a repeated pattern
// keeps its first position and its last response.
func (m *MockedResponses) Set(entries ...MockEntry) {
	table := linkedhashmap.New()
	for _, e := range entries {
		table.Put(e.Pattern, e)
	}

	m.mu.Lock()
	m.table = table
	m.mu.Unlock()
}

// IsActive reports whether any pattern is registered.
func (m *MockedResponses) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.table.Empty()
}

// Patterns returns the registered patterns in match order.
func (m *MockedResponses) Patterns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.table.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.(string))
	}
	return out
}

// Resolve returns the response of the first pattern matching req.URL. When nothing matches
// it returns a MissingMockedResponse error.
func (m *MockedResponses) Resolve(ctx context.Context, req *MockRequest) (*Response, error) {
	m.mu.Lock()
	m.recorded = append(m.recorded, req)
	entry, found := m.match(req.URL)
	m.mu.Unlock()

	if !found {
		return nil, NewMissingMockedResponseError(req.URL)
	}

	if entry.Responder != nil {
		resp, err := entry.Responder(ctx, req)
		if err != nil {
			return nil, err
		}
		// responders may hand out a shared response; dispatch writes stats into it
		return orEmpty(resp.clone()), nil
	}
	return orEmpty(entry.Response.clone()), nil
}

// Recorded returns every request that reached the registry, matched or not.
func (m *MockedResponses) Recorded() []*MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.recorded)
}

func (m *MockedResponses) match(url string) (MockEntry, bool) {
	it := m.table.Iterator()
	for it.Next() {
		if MatchesPattern(it.Key().(string), url) {
			return it.Value().(MockEntry), true
		}
	}
	return MockEntry{}, false
}

func orEmpty(resp *Response) *Response {
	if resp == nil {
		return &Response{StatusCode: 200, Status: "200 OK"}
	}
	return resp
}

// MatchesPattern reports whether value matches pattern. A pattern equal to value or to "*"
// always matches; otherwise the literal segments between "*" tokens must all occur in value,
// in order, with arbitrary text around them.
func MatchesPattern(pattern, value string) bool {
	if pattern == value || pattern == WildcardPattern {
		return true
	}

	pos := 0
	for _, segment := range strings.Split(pattern, WildcardPattern) {
		if segment == "" {
			continue
		}
		idx := strings.Index(value[pos:], segment)
		if idx < 0 {
			return false
		}
		pos += idx + len(segment)
	}
	return true
}
