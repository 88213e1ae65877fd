package http

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Method is an HTTP request method supported by the builder.
type Method string

const (
	MethodGet     Method = nethttp.MethodGet
	MethodHead    Method = nethttp.MethodHead
	MethodPost    Method = nethttp.MethodPost
	MethodPut     Method = nethttp.MethodPut
	MethodPatch   Method = nethttp.MethodPatch
	MethodDelete  Method = nethttp.MethodDelete
	MethodOptions Method = nethttp.MethodOptions
)

// BodyFormat selects how a pending request body is encoded on the wire.
type BodyFormat int

const (
	// FormatString sends strings as-is and structured values as JSON text.
	FormatString BodyFormat = iota
	// FormatJSON serializes the body as JSON.
	FormatJSON
	// FormatFormData produces a multipart/form-data payload.
	FormatFormData
	// FormatURLEncoded produces an application/x-www-form-urlencoded payload.
	FormatURLEncoded
)

func (f BodyFormat) String() string {
	switch f {
	case FormatJSON:
		return "Json"
	case FormatFormData:
		return "FormData"
	case FormatURLEncoded:
		return "URLSearchParams"
	default:
		return "String"
	}
}

// Credentials controls whether credentials (Authorization, Cookie) accompany the request.
type Credentials string

const (
	CredentialsOmit       Credentials = "omit"
	CredentialsSameOrigin Credentials = "same-origin"
	CredentialsInclude    Credentials = "include"
)

// Content types set by the builder shortcuts
const (
	ContentTypeJSON       = "application/json"
	ContentTypeFormData   = "multipart/form-data"
	ContentTypeURLEncoded = "application/x-www-form-urlencoded"
	ContentTypeText       = "text/plain"
)

// Header names used by the builder
const (
	HeaderAccept        = "Accept"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
)

// Options is the loosely typed option bag accepted by NewBuilder, WithOption and WithOptions.
type Options map[string]any

// FetchOptions is the option set handed to a Transport for a single attempt.
type FetchOptions struct {
	Method Method
	// Headers is nil when no header has been configured.
	Headers     nethttp.Header
	Credentials Credentials
	// Body is nil when the pending request has no body.
	Body *EncodedBody

	Mode           string
	KeepAlive      *bool
	Cache          string
	Redirect       string
	Referrer       string
	ReferrerPolicy string
	Integrity      string
	Priority       string

	// Extra carries unknown options through to the transport untouched.
	Extra map[string]any
}

// Transport is the fetch capability the dispatcher sends attempts through.
type Transport interface {
	Fetch(ctx context.Context, url string, opts *FetchOptions) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, url string, opts *FetchOptions) (*Response, error)

// Fetch calls f(ctx, url, opts).
func (f TransportFunc) Fetch(ctx context.Context, url string, opts *FetchOptions) (*Response, error) {
	return f(ctx, url, opts)
}

// RetryCallback decides whether another attempt should be made. Exactly one of resp and err
// is non-nil. The callback may reconfigure b before the next attempt.
type RetryCallback func(resp *Response, b *Builder, err error) bool

// RetryPolicy describes how many additional attempts a dispatch may make.
type RetryPolicy struct {
	Times int
	Sleep time.Duration
	When  RetryCallback
}

// Response represents a settled HTTP response
type Response struct {
	StatusCode int
	Status     string
	Headers    nethttp.Header
	Body       []byte
	Stats      Stats
}

// Stats contains request execution statistics
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
	Mocked      bool
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return IsSuccessStatus(r.StatusCode)
}

// Successful is an alias of OK.
func (r *Response) Successful() bool {
	return r.OK()
}

// Failed reports whether the response is a 4xx or 5xx.
func (r *Response) Failed() bool {
	return r.ClientError() || r.ServerError()
}

// ClientError reports a 4xx status.
func (r *Response) ClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

// ServerError reports a 5xx status.
func (r *Response) ServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// String returns the body as text.
func (r *Response) String() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Get queries the JSON body with a gjson path, e.g. "data.0.name".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// Header returns the first value of the named response header.
func (r *Response) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// clone returns a copy that can be handed out without sharing mutable state.
func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	if r.Headers != nil {
		out.Headers = r.Headers.Clone()
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
