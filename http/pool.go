package http

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Call is one request dispatched by a Pool.
type Call func(ctx context.Context) (*Response, error)

// Result is the outcome of one Call.
type Result struct {
	Response *Response
	Err      error
}

// Pool dispatches independent calls concurrently. Every call should use its own Builder
// since builders are not safe for concurrent use.
type Pool struct {
	limit int
}

// NewPool creates a pool running at most limit calls at a time. A limit <= 0 means no limit.
func NewPool(limit int) *Pool {
	return &Pool{limit: limit}
}

// Do runs every call and returns their results in call order. A failed call does not cancel
// the others; its error is reported in its Result.
func (p *Pool) Do(ctx context.Context, calls ...Call) []Result {
	results := make([]Result, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i, call := range calls {
		g.Go(func() error {
			resp, err := call(gctx)
			results[i] = Result{Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// DoFirstError is Do but cancels the remaining calls once one fails and returns that error.
func (p *Pool) DoFirstError(ctx context.Context, calls ...Call) ([]*Response, error) {
	responses := make([]*Response, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i, call := range calls {
		g.Go(func() error {
			resp, err := call(gctx)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return responses, err
	}
	return responses, nil
}
