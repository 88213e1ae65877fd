package fixtures

import (
	"encoding/json"
	nethttp "net/http"
	"strconv"

	"github.com/gaborage/go-fetch/http"
)

// Content type constants
const (
	ApplicationJSONContentType = "application/json"
	TextPlainContentType       = "text/plain; charset=utf-8"
)

// ResponseFixtures provides builders for responses used in Builder.Fake tables and
// MockTransport expectations.

// StatusResponse creates an empty response with the given status code.
func StatusResponse(code int) *http.Response {
	return &http.Response{
		StatusCode: code,
		Status:     statusLine(code),
		Headers:    nethttp.Header{},
	}
}

// JSONResponse creates a response with a raw JSON body.
func JSONResponse(code int, body string) *http.Response {
	resp := StatusResponse(code)
	resp.Headers.Set("Content-Type", ApplicationJSONContentType)
	resp.Body = []byte(body)
	return resp
}

// JSONValueResponse creates a response with v marshaled as the JSON body.
// It panics when v cannot be marshaled, which only happens for invalid test data.
func JSONValueResponse(code int, v any) *http.Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return JSONResponse(code, string(body))
}

// TextResponse creates a response with a plain text body.
func TextResponse(code int, body string) *http.Response {
	resp := StatusResponse(code)
	resp.Headers.Set("Content-Type", TextPlainContentType)
	resp.Body = []byte(body)
	return resp
}

// WithHeader returns resp with an additional header value.
func WithHeader(resp *http.Response, name, value string) *http.Response {
	if resp.Headers == nil {
		resp.Headers = nethttp.Header{}
	}
	resp.Headers.Add(name, value)
	return resp
}

func statusLine(code int) string {
	text := nethttp.StatusText(code)
	if text == "" {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code) + " " + text
}
