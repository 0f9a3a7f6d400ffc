package pubkit

import (
	"context"
)

type contextKey struct {
	name string
}

var callInfoKey = &contextKey{"call_info"}

// CallInfo identifies the call a request belongs to. Interceptors and
// transports read it from the request context.
type CallInfo struct {
	Operation Operation
	// RequestID is the requestid param, empty unless the config enables it.
	RequestID string
}

// CallInfoFromContext returns the info of the call being dispatched.
// ok is false outside of Execute.
func CallInfoFromContext(ctx context.Context) (info CallInfo, ok bool) {
	info, ok = ctx.Value(callInfoKey).(CallInfo)
	return info, ok
}

func newContext(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey, info)
}
