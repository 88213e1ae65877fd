package http

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/gaborage/go-fetch/trace"
)

const (
	// DefaultTransportTimeout bounds a whole exchange on the default client. Per-attempt
	// timeouts configured with Builder.Timeout apply on top of it.
	DefaultTransportTimeout = 30 * time.Second

	redirectError  = "error"
	redirectManual = "manual"

	cacheNoStore = "no-store"
	cacheNoCache = "no-cache"
	cacheReload  = "reload"

	referrerNone = "no-referrer"
)

var errRedirectRejected = errors.New("redirect rejected by redirect=error")

// NetTransport is the default Transport. It sends attempts through a net/http client and
// maps the fetch-style options onto the request. Mode, Integrity, Priority and Extra have no
// net/http equivalent and are ignored.
type NetTransport struct {
	client *nethttp.Client
}

var _ Transport = (*NetTransport)(nil)

// NewNetTransport wraps client, or a client with DefaultTransportTimeout when nil.
func NewNetTransport(client *nethttp.Client) *NetTransport {
	if client == nil {
		client = &nethttp.Client{Timeout: DefaultTransportTimeout}
	}
	return &NetTransport{client: client}
}

// Fetch performs one exchange and reads the full response body.
func (t *NetTransport) Fetch(ctx context.Context, url string, opts *FetchOptions) (*Response, error) {
	if opts == nil {
		opts = &FetchOptions{Method: MethodGet}
	}

	httpReq, err := buildRequest(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := t.clientFor(opts).Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewNetworkError("request execution failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewNetworkError("failed to read response body", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       respBody,
		Stats:      Stats{ElapsedTime: time.Since(start)},
	}, nil
}

// clientFor returns a shallow copy of the client with a redirect policy when one is requested.
func (t *NetTransport) clientFor(opts *FetchOptions) *nethttp.Client {
	switch opts.Redirect {
	case redirectManual, redirectError:
	default:
		return t.client
	}

	c := *t.client
	mode := opts.Redirect
	c.CheckRedirect = func(*nethttp.Request, []*nethttp.Request) error {
		if mode == redirectManual {
			return nethttp.ErrUseLastResponse
		}
		return errRedirectRejected
	}
	return &c
}

func buildRequest(ctx context.Context, url string, opts *FetchOptions) (*nethttp.Request, error) {
	var body io.Reader
	if opts.Body != nil {
		body = opts.Body.Reader()
	}

	method := string(opts.Method)
	if method == "" {
		method = nethttp.MethodGet
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, NewURLError(url, err)
	}

	for name, values := range opts.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	// an explicit traceparent header wins over the active span
	if httpReq.Header.Get(trace.HeaderTraceParent) == "" {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	}

	applyCredentials(httpReq, opts.Credentials)
	applyCache(httpReq, opts.Cache)
	applyReferrer(httpReq, opts.Referrer, opts.ReferrerPolicy)

	if opts.KeepAlive != nil && !*opts.KeepAlive {
		httpReq.Close = true
	}
	return httpReq, nil
}

func applyCredentials(req *nethttp.Request, credentials Credentials) {
	if credentials != CredentialsOmit {
		return
	}
	req.Header.Del(HeaderAuthorization)
	req.Header.Del("Cookie")
}

func applyCache(req *nethttp.Request, mode string) {
	if req.Header.Get("Cache-Control") != "" {
		return
	}
	switch mode {
	case cacheNoStore:
		req.Header.Set("Cache-Control", "no-store")
	case cacheNoCache, cacheReload:
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
}

func applyReferrer(req *nethttp.Request, referrer, policy string) {
	if referrer == "" || policy == referrerNone || req.Header.Get("Referer") != "" {
		return
	}
	req.Header.Set("Referer", referrer)
}
