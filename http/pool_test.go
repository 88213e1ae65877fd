package http

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCall(path string, transport Transport) Call {
	return func(ctx context.Context) (*Response, error) {
		return NewBuilder(testBaseURL).WithTransport(transport).Get(ctx, path)
	}
}

func TestPoolDoKeepsCallOrder(t *testing.T) {
	transport := &stubTransport{handler: func(ctx context.Context, _ int) (*Response, error) {
		return &Response{StatusCode: 200}, nil
	}}
	failing := TransportFunc(func(context.Context, string, *FetchOptions) (*Response, error) {
		return nil, errors.New("refused")
	})

	results := NewPool(2).Do(context.Background(),
		getCall("a", transport),
		getCall("b", failing),
		getCall("c", transport),
	)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, 200, results[0].Response.StatusCode)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Response)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, 2, transport.count())
}

func TestPoolRespectsLimit(t *testing.T) {
	var running, peak atomic.Int32
	transport := TransportFunc(func(context.Context, string, *FetchOptions) (*Response, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return &Response{StatusCode: 204}, nil
	})

	calls := make([]Call, 6)
	for i := range calls {
		calls[i] = getCall("item", transport)
	}
	results := NewPool(2).Do(context.Background(), calls...)

	for _, r := range results {
		require.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolDoFirstError(t *testing.T) {
	boom := errors.New("boom")
	failing := TransportFunc(func(context.Context, string, *FetchOptions) (*Response, error) {
		return nil, boom
	})
	blocking := TransportFunc(func(ctx context.Context, _ string, _ *FetchOptions) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := NewPool(0).DoFirstError(context.Background(),
		getCall("fail", failing),
		getCall("wait", blocking),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPoolDoFirstErrorSuccess(t *testing.T) {
	transport := respondWith(200)

	responses, err := NewPool(0).DoFirstError(context.Background(),
		getCall("a", transport),
		getCall("b", transport),
	)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, 200, responses[1].StatusCode)
}
