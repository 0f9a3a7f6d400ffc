package pubkit

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Registry is the dispatch table of endpoints keyed by Operation.
// It backs the untyped Invoke entry point; typed callers can use Execute
// directly.
type Registry struct {
	mu     sync.RWMutex
	routes map[Operation]route
	logger *slog.Logger
}

// route is the type-erased view of a registered endpoint.
type route interface {
	takesParams() bool
	invoke(ctx context.Context, m Modules, args []any) (Call, error)
}

func NewRegistry() *Registry {
	return &Registry{
		routes: make(map[Operation]route),
	}
}

// WithLogger sets a custom logger for the registry.
// If not set, slog.Default() will be used.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds ep to the registry under its operation. If an endpoint is
// already registered for the operation it is replaced and a warning is
// logged.
func Register[P any, R any](r *Registry, ep Endpoint[P, R]) {
	op := ep.Operation()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.routes[op]; exists {
		logger := r.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("duplicate endpoint registration",
			slog.String("operation", op.String()))
	}
	r.routes[op] = binding[P, R]{ep: ep}
}

// Operations returns the registered operations in sorted order.
func (r *Registry) Operations() []Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]Operation, 0, len(r.routes))
	for op := range r.routes {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// TakesParams reports whether op expects a parameter value before its
// callback. ok is false if op is not registered.
func (r *Registry) TakesParams(op Operation) (takes bool, ok bool) {
	r.mu.RLock()
	rt, ok := r.routes[op]
	r.mu.RUnlock()
	if !ok {
		return false, false
	}
	return rt.takesParams(), true
}

// Invoke executes the endpoint registered for op. args is [callback] for
// endpoints that take no parameters and [params, callback] otherwise.
// params must have the endpoint's parameter type; callback may be a
// Callback[R], a func(Status, R) or a func(Status, any).
//
// An error is returned only when op is unknown or args do not fit the
// endpoint; every outcome of the call itself goes to the callback.
func (r *Registry) Invoke(ctx context.Context, m Modules, op Operation, args ...any) (Call, error) {
	r.mu.RLock()
	rt, ok := r.routes[op]
	r.mu.RUnlock()

	if !ok {
		return nil, Errorf(CodeNotFound, "no endpoint registered for %s", op)
	}
	return rt.invoke(ctx, m, args)
}

type binding[P any, R any] struct {
	ep Endpoint[P, R]
}

func (b binding[P, R]) takesParams() bool {
	return b.ep.TakesParams()
}

func (b binding[P, R]) invoke(ctx context.Context, m Modules, args []any) (Call, error) {
	op := b.ep.Operation()

	var params P
	var cbArg any
	if b.ep.TakesParams() {
		if len(args) != 2 {
			return nil, Errorf(CodeInvalidArgument, "%s: expected params and callback, got %d arguments", op, len(args))
		}
		p, ok := args[0].(P)
		if !ok {
			return nil, Errorf(CodeInvalidArgument, "%s: params have type %T, want %T", op, args[0], params)
		}
		params = p
		cbArg = args[1]
	} else {
		if len(args) != 1 {
			return nil, Errorf(CodeInvalidArgument, "%s: expected callback only, got %d arguments", op, len(args))
		}
		cbArg = args[0]
	}

	callback, err := asCallback[R](op, cbArg)
	if err != nil {
		return nil, err
	}
	return Execute(ctx, m, b.ep, params, callback), nil
}

func asCallback[R any](op Operation, v any) (Callback[R], error) {
	switch fn := v.(type) {
	case nil:
		return nil, nil
	case Callback[R]:
		return fn, nil
	case func(Status, R):
		return fn, nil
	case func(Status, any):
		return func(s Status, res R) {
			if s.Error {
				fn(s, nil)
				return
			}
			fn(s, res)
		}, nil
	default:
		var res R
		return nil, Errorf(CodeInvalidArgument, "%s: callback has type %T, want func(pubkit.Status, %T)", op, v, res)
	}
}
