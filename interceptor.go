package pubkit

import (
	"context"
	"net/url"
)

// Request is a fully assembled call as handed to the transport.
type Request struct {
	RequestContext
	Method  string
	Params  url.Values
	Payload []byte
}

// SendFunc dispatches a request. It is the next step in an interceptor chain.
type SendFunc func(ctx context.Context, req *Request, onResponse ResponseFunc) Call

// Interceptor wraps request dispatch. Interceptors can:
//   - Inspect or modify the request before calling next
//   - Wrap onResponse to observe the outcome
//   - Short-circuit by invoking onResponse without calling next
type Interceptor func(ctx context.Context, req *Request, onResponse ResponseFunc, next SendFunc) Call

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []Interceptor) Interceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(ctx context.Context, req *Request, onResponse ResponseFunc, send SendFunc) Call {
		chain := send
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(ctx context.Context, req *Request, onResponse ResponseFunc) Call {
				return current(ctx, req, onResponse, next)
			}
		}
		return chain(ctx, req, onResponse)
	}
}
