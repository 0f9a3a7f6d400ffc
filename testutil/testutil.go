// Package testutil provides fakes for exercising endpoints and the executor
// without a network. It is import-cycle safe for external test packages.
package testutil

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
)

// Config returns a deterministic configuration with every key set and the
// optional identifiers disabled.
func Config() *config.Config {
	c := config.New().
		WithKeys("sub-x", "pub-x").
		WithSecretKey("sec-x").
		WithUUID("client-1")
	c.InstanceID = "instance-1"
	return c
}

// Recorded is a request captured by Transport.
type Recorded struct {
	Method  string
	Params  url.Values
	Payload []byte
	Context pubkit.RequestContext
}

// Responder produces the outcome of a recorded request.
type Responder func(req Recorded) (pubkit.Status, []byte)

// Respond returns a Responder that always succeeds with payload.
func Respond(payload string) Responder {
	return func(req Recorded) (pubkit.Status, []byte) {
		return pubkit.OK(req.Context.Operation, http.StatusOK), []byte(payload)
	}
}

// Fail returns a Responder that always fails with the given HTTP status.
func Fail(statusCode int, message string) Responder {
	return func(req Recorded) (pubkit.Status, []byte) {
		code := pubkit.CodeFromHTTPStatus(statusCode)
		return pubkit.Failure(req.Context.Operation, statusCode, pubkit.NewError(code, message)), nil
	}
}

// Transport is a recording fake. Responses are delivered synchronously
// unless Hold is set, in which case they are delivered by Release.
type Transport struct {
	Responder Responder
	Hold      bool

	mu       sync.Mutex
	requests []Recorded
	pending  []*Call
}

// NewTransport returns a Transport answering every request with an empty
// JSON object.
func NewTransport() *Transport {
	return &Transport{Responder: Respond(`{}`)}
}

func (t *Transport) Get(ctx context.Context, params url.Values, req pubkit.RequestContext, onResponse pubkit.ResponseFunc) pubkit.Call {
	return t.record(Recorded{Method: http.MethodGet, Params: params, Context: req}, onResponse)
}

func (t *Transport) Post(ctx context.Context, params url.Values, payload []byte, req pubkit.RequestContext, onResponse pubkit.ResponseFunc) pubkit.Call {
	return t.record(Recorded{Method: http.MethodPost, Params: params, Payload: payload, Context: req}, onResponse)
}

func (t *Transport) record(rec Recorded, onResponse pubkit.ResponseFunc) pubkit.Call {
	call := &Call{rec: rec, onResponse: onResponse, responder: t.Responder, done: make(chan struct{})}

	t.mu.Lock()
	t.requests = append(t.requests, rec)
	if t.Hold {
		t.pending = append(t.pending, call)
	}
	t.mu.Unlock()

	if !t.Hold {
		call.complete()
	}
	return call
}

// Release delivers responses for every held request.
func (t *Transport) Release() {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, c := range pending {
		c.complete()
	}
}

// Requests returns a copy of the recorded requests.
func (t *Transport) Requests() []Recorded {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Recorded, len(t.requests))
	copy(out, t.requests)
	return out
}

// Count returns the number of recorded requests.
func (t *Transport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// Last returns the most recent request. It fails the test if none was made.
func (t *Transport) Last(tb testing.TB) Recorded {
	tb.Helper()
	reqs := t.Requests()
	if len(reqs) == 0 {
		tb.Fatal("expected at least one transport request")
	}
	return reqs[len(reqs)-1]
}

// Call is the handle returned by Transport.
type Call struct {
	rec        Recorded
	onResponse pubkit.ResponseFunc
	responder  Responder

	once      sync.Once
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
}

func (c *Call) complete() {
	c.once.Do(func() {
		defer close(c.done)
		c.mu.Lock()
		cancelled := c.cancelled
		c.mu.Unlock()

		if cancelled {
			c.onResponse(pubkit.Failure(c.rec.Context.Operation, 0, context.Canceled), nil)
			return
		}
		status, payload := c.responder(c.rec)
		c.onResponse(status, payload)
	})
}

// Cancel marks the call cancelled and delivers a cancelled status if the
// response is still pending.
func (c *Call) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.complete()
}

// Cancelled reports whether Cancel was called.
func (c *Call) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result captures the invocations of a callback.
type Result[R any] struct {
	mu       sync.Mutex
	Calls    int
	Status   pubkit.Status
	Response R
	done     chan struct{}
	once     sync.Once
}

// NewResult returns an empty Result.
func NewResult[R any]() *Result[R] {
	return &Result[R]{done: make(chan struct{})}
}

// Callback returns a callback recording into r.
func (r *Result[R]) Callback() pubkit.Callback[R] {
	return func(status pubkit.Status, res R) {
		r.mu.Lock()
		r.Calls++
		r.Status = status
		r.Response = res
		r.mu.Unlock()
		r.once.Do(func() { close(r.done) })
	}
}

// Wait blocks until the callback fired or timeout elapsed and fails the
// test on timeout.
func (r *Result[R]) Wait(tb testing.TB, timeout time.Duration) {
	tb.Helper()
	select {
	case <-r.done:
	case <-time.After(timeout):
		tb.Fatalf("callback not invoked within %v", timeout)
	}
}
