package fixtures

import (
	"context"
	nethttp "net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBuilders(t *testing.T) {
	resp := JSONValueResponse(201, map[string]int{"id": 3})
	assert.Equal(t, "201 Created", resp.Status)
	assert.Equal(t, ApplicationJSONContentType, resp.Header("Content-Type"))
	assert.Equal(t, int64(3), resp.Get("id").Int())

	text := WithHeader(TextResponse(200, "ok"), "X-Extra", "1")
	assert.Equal(t, "ok", text.String())
	assert.Equal(t, "1", text.Header("X-Extra"))

	assert.Equal(t, "599", StatusResponse(599).Status)
}

func TestUpstreamScript(t *testing.T) {
	u := NewUpstream(t,
		Reply{Status: 500, Body: `{"error":"boom"}`},
		Reply{Status: 200, Body: "pong", Headers: map[string]string{"Content-Type": TextPlainContentType}},
	)

	for _, want := range []int{500, 200, 200} {
		req, err := nethttp.NewRequestWithContext(context.Background(), nethttp.MethodPut, u.URL+"/ping?x=1", strings.NewReader("hi"))
		require.NoError(t, err)
		resp, err := u.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode)
	}

	require.Equal(t, 3, u.Count())
	first := u.Requests()[0]
	assert.Equal(t, nethttp.MethodPut, first.Method)
	assert.Equal(t, "/ping", first.Path)
	assert.Equal(t, "x=1", first.Query)
	assert.Equal(t, "hi", string(first.Body))
}
