package pubkit

import (
	"context"
	"net/url"
	"time"
)

// RequestContext describes where and how long a single request goes.
type RequestContext struct {
	URL       string
	Operation Operation
	Timeout   time.Duration
}

// ResponseFunc is invoked exactly once per dispatched request.
// payload is nil when status.Error is true.
type ResponseFunc func(status Status, payload []byte)

// Call is the handle of a dispatched request.
type Call interface {
	// Cancel aborts the request. The response func then reports
	// CategoryCancelled unless the request already completed.
	Cancel()
	// Done is closed once the response func has returned.
	Done() <-chan struct{}
}

// Transport sends requests to the service.
type Transport interface {
	Get(ctx context.Context, params url.Values, req RequestContext, onResponse ResponseFunc) Call
	Post(ctx context.Context, params url.Values, payload []byte, req RequestContext, onResponse ResponseFunc) Call
}

// Signer produces request signatures for access-management operations.
type Signer interface {
	HMACSHA256(input string) string
}
