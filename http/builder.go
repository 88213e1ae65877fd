package http

import (
	"encoding/base64"
	nethttp "net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetch/logger"
)

const (
	// DefaultTokenType is the authorization scheme used by WithToken when none is given
	DefaultTokenType = "Bearer"

	// basicTokenType is the scheme WithBasicAuth sends
	basicTokenType = "Basic"
)

// Known keys of the option bag. Anything else is passed through in FetchOptions.Extra.
const (
	OptionHeaders        = "headers"
	OptionBody           = "body"
	OptionCredentials    = "credentials"
	OptionMode           = "mode"
	OptionKeepAlive      = "keepalive"
	OptionCache          = "cache"
	OptionRedirect       = "redirect"
	OptionReferrer       = "referrer"
	OptionReferrerPolicy = "referrerPolicy"
	OptionIntegrity      = "integrity"
	OptionPriority       = "priority"
)

// PendingRequest is the mutable state accumulated by a builder chain. It is read, never
// reset, by the verb that dispatches it.
type PendingRequest struct {
	Method      Method
	URL         string
	Headers     *Headers
	Body        any
	BodyFormat  BodyFormat
	Credentials Credentials
	Options     FetchOptions
	Retry       RetryPolicy
	Timeout     time.Duration

	resolver *URLResolver
}

// HasBody reports whether a body has been attached.
func (p *PendingRequest) HasBody() bool {
	return p.Body != nil
}

// BaseURL returns the base URL relative paths are resolved against.
func (p *PendingRequest) BaseURL() string {
	return p.resolver.BaseURL()
}

// ResolveURL resolves path against the base URL and the accumulated query parameters.
func (p *PendingRequest) ResolveURL(path string) (string, error) {
	return p.resolver.Resolve(path)
}

// Builder configures one pending request through chained calls and dispatches it with a
// verb method. Every method returns the same *Builder. A builder is not safe for
// concurrent use.
type Builder struct {
	pending     *PendingRequest
	mocks       *MockedResponses
	transport   Transport
	logger      logger.Logger
	limiter     *rate.Limiter
	traceHeader string
	err         error
}

// NewBuilder creates a builder rooted at baseURL (which may be empty) and applies the
// default options, e.g. Options{"headers": map[string]string{...}, "credentials": "include"}.
func NewBuilder(baseURL string, defaults ...Options) *Builder {
	b := &Builder{
		pending: &PendingRequest{
			Headers:  NewHeaders(),
			resolver: NewURLResolver(baseURL),
		},
		mocks:     NewMockedResponses(),
		transport: NewNetTransport(nil),
		logger:    logger.Nop(),
	}
	for _, opts := range defaults {
		b.WithOptions(opts)
	}
	return b
}

// Err returns the configuration error that aborted the chain, if any.
func (b *Builder) Err() error {
	return b.err
}

// Pending exposes the accumulated request state.
func (b *Builder) Pending() *PendingRequest {
	return b.pending
}

// Recorded returns the requests intercepted by mocked responses so far.
func (b *Builder) Recorded() []*MockRequest {
	return b.mocks.Recorded()
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
		b.logger.Warn().Err(err).Msg("Request configuration rejected")
	}
	return b
}

// WithTransport replaces the fetch capability used for real (non-mocked) attempts.
func (b *Builder) WithTransport(t Transport) *Builder {
	if t != nil {
		b.transport = t
	}
	return b
}

// WithHTTPClient sends attempts through the given net/http client.
func (b *Builder) WithHTTPClient(c *nethttp.Client) *Builder {
	return b.WithTransport(NewNetTransport(c))
}

// WithLogger sets the logger used for dispatch events.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	if log != nil {
		b.logger = log
	}
	return b
}

// WithRateLimiter makes every attempt wait for a token from limiter.
func (b *Builder) WithRateLimiter(limiter *rate.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithTraceHeader propagates a request id under the given header name on every attempt.
// The id is taken from the dispatch context or generated.
func (b *Builder) WithTraceHeader(name string) *Builder {
	b.traceHeader = name
	return b
}

// Accept indicates the content type the server should return.
func (b *Builder) Accept(contentType string) *Builder {
	return b.WithHeader(HeaderAccept, contentType)
}

// AcceptJSON indicates that JSON should be returned by the server.
func (b *Builder) AcceptJSON() *Builder {
	return b.Accept(ContentTypeJSON)
}

// ContentType sets the request content type, replacing any previous one.
func (b *Builder) ContentType(contentType string) *Builder {
	return b.ReplaceHeader(HeaderContentType, contentType)
}

// AsJSON sends the body as JSON.
func (b *Builder) AsJSON() *Builder {
	return b.asFormat(FormatJSON, ContentTypeJSON)
}

// AsForm sends the body as multipart form data.
func (b *Builder) AsForm() *Builder {
	return b.asFormat(FormatFormData, ContentTypeFormData)
}

// AsURLEncoded sends the body as URL encoded form parameters.
func (b *Builder) AsURLEncoded() *Builder {
	return b.asFormat(FormatURLEncoded, ContentTypeURLEncoded)
}

func (b *Builder) asFormat(format BodyFormat, contentType string) *Builder {
	if b.err != nil {
		return b
	}
	b.pending.BodyFormat = format
	return b.ContentType(contentType)
}

// WithBody attaches body to the request. Verb methods that take data call it for you.
func (b *Builder) WithBody(body any) *Builder {
	if b.err != nil {
		return b
	}
	b.pending.Body = body
	return b
}

// WithBasicAuth sets an Authorization header with basic credentials.
func (b *Builder) WithBasicAuth(username, password string) *Builder {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return b.WithToken(token, basicTokenType)
}

// WithToken sets an Authorization header of the form "{type} {token}". The type defaults
// to Bearer and surrounding whitespace is trimmed from the token.
func (b *Builder) WithToken(token string, tokenType ...string) *Builder {
	scheme := DefaultTokenType
	if len(tokenType) > 0 && tokenType[0] != "" {
		scheme = tokenType[0]
	}
	return b.ReplaceHeader(HeaderAuthorization, scheme+" "+strings.TrimSpace(token))
}

// WithCredentials sends credentials with the request; same-origin when none is given.
func (b *Builder) WithCredentials(credentials ...Credentials) *Builder {
	c := CredentialsSameOrigin
	if len(credentials) > 0 && credentials[0] != "" {
		c = credentials[0]
	}
	return b.WithOption(OptionCredentials, c)
}

// WithHeader appends a value to the named header.
func (b *Builder) WithHeader(name, value string) *Builder {
	if b.err != nil {
		return b
	}
	b.pending.Headers.Add(name, value)
	return b
}

// WithHeaders appends every header of src, which may be a map[string]string,
// map[string][]string, net/http.Header or *Headers.
func (b *Builder) WithHeaders(src any) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.pending.Headers.AddAll(src); err != nil {
		return b.fail(err)
	}
	return b
}

// ReplaceHeader sets the named header to exactly one value.
func (b *Builder) ReplaceHeader(name, value string) *Builder {
	if b.err != nil {
		return b
	}
	b.pending.Headers.Replace(name, value)
	return b
}

// ReplaceHeaders replaces every header named in src.
func (b *Builder) ReplaceHeaders(src any) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.pending.Headers.ReplaceAll(src); err != nil {
		return b.fail(err)
	}
	return b
}

// WithQueryParameters merges query into the request URL parameters.
func (b *Builder) WithQueryParameters(query map[string]any) *Builder {
	if b.err != nil {
		return b
	}
	b.pending.resolver.WithQueryParameters(query)
	return b
}

// Timeout aborts every attempt that runs longer than d.
func (b *Builder) Timeout(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.pending.Timeout = d
	return b
}

// Retry allows times additional attempts, sleeping between them. Without a callback any
// failed attempt or non-2xx response is retried; with one, the callback decides.
func (b *Builder) Retry(times int, sleep time.Duration, when ...RetryCallback) *Builder {
	if b.err != nil {
		return b
	}
	policy := RetryPolicy{Times: max(times, 0), Sleep: max(sleep, 0)}
	if len(when) > 0 {
		policy.When = when[0]
	}
	b.pending.Retry = policy
	return b
}

// Fake intercepts dispatch with mocked responses. Each call replaces the previous table.
func (b *Builder) Fake(entries ...MockEntry) *Builder {
	if b.err != nil {
		return b
	}
	b.mocks.Set(entries...)
	return b
}

// FakeMap is Fake for a map of patterns. Patterns are tried in sorted order with the
// catch-all "*" last.
func (b *Builder) FakeMap(responses map[string]*Response) *Builder {
	patterns := sortedKeys(responses)
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[j] == WildcardPattern && patterns[i] != WildcardPattern
	})
	entries := make([]MockEntry, 0, len(patterns))
	for _, p := range patterns {
		entries = append(entries, Mock(p, responses[p]))
	}
	return b.Fake(entries...)
}

// WithOptions applies every option of opts in key order.
func (b *Builder) WithOptions(opts Options) *Builder {
	for _, key := range sortedKeys(opts) {
		b.WithOption(key, opts[key])
	}
	return b
}

// WithOption sets a single option. "headers" must be a header collection; known transport
// options are type checked and unknown keys are passed through untouched.
func (b *Builder) WithOption(key string, value any) *Builder {
	if b.err != nil {
		return b
	}

	opts := &b.pending.Options
	switch key {
	case OptionHeaders:
		if err := b.pending.Headers.AddAll(value); err != nil {
			return b.fail(err)
		}
	case OptionBody:
		b.pending.Body = value
	case OptionCredentials:
		c, ok := asString(value)
		if !ok {
			return b.fail(NewInvalidOptionError(key, value))
		}
		b.pending.Credentials = Credentials(c)
	case OptionKeepAlive:
		keepAlive, ok := value.(bool)
		if !ok {
			return b.fail(NewInvalidOptionError(key, value))
		}
		opts.KeepAlive = &keepAlive
	case OptionMode, OptionCache, OptionRedirect, OptionReferrer, OptionReferrerPolicy, OptionIntegrity, OptionPriority:
		s, ok := asString(value)
		if !ok {
			return b.fail(NewInvalidOptionError(key, value))
		}
		setStringOption(opts, key, s)
	default:
		if opts.Extra == nil {
			opts.Extra = make(map[string]any)
		}
		opts.Extra[key] = value
	}
	return b
}

func setStringOption(opts *FetchOptions, key, value string) {
	switch key {
	case OptionMode:
		opts.Mode = value
	case OptionCache:
		opts.Cache = value
	case OptionRedirect:
		opts.Redirect = value
	case OptionReferrer:
		opts.Referrer = value
	case OptionReferrerPolicy:
		opts.ReferrerPolicy = value
	case OptionIntegrity:
		opts.Integrity = value
	case OptionPriority:
		opts.Priority = value
	}
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case Credentials:
		return string(s), true
	default:
		return "", false
	}
}
