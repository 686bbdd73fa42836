package webclient

import (
	"context"
)

// WebClient executes requests against the backend.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	Close() error
}

// Middleware decorates a WebClient. Middlewares compose around every request.
type Middleware func(next WebClient) WebClient

// Chain wraps base with mws; the first middleware is the outermost.
func Chain(base WebClient, mws ...Middleware) WebClient {
	wc := base
	for i := len(mws) - 1; i >= 0; i-- {
		wc = mws[i](wc)
	}
	return wc
}
