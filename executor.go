package pubkit

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/broady/pubkit/config"
	"github.com/google/uuid"
)

// Modules are the collaborators shared by every call. Config is read-only
// for the lifetime of a call.
type Modules struct {
	Config       *config.Config
	Transport    Transport
	Crypto       Signer
	Logger       *slog.Logger
	Interceptors []Interceptor

	// NewRequestID generates the per-call request id. Defaults to UUID v4.
	NewRequestID func() string
	// Now stamps signed requests. Defaults to time.Now.
	Now func() time.Time
}

func (m Modules) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func (m Modules) requestID() string {
	if m.NewRequestID == nil {
		return uuid.NewString()
	}
	return m.NewRequestID()
}

func (m Modules) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// SDKSignature returns the pnsdk value: family[-partner]/version.
func SDKSignature(cfg *config.Config) string {
	base := cfg.SDKFamily
	if cfg.PartnerID != "" {
		base += "-" + cfg.PartnerID
	}
	return base + "/" + cfg.SDKVersion
}

// Execute drives one call of ep to completion:
//
//  1. Validate params; a rejection is reported through callback with
//     CategoryValidationError and nothing is sent.
//  2. Assemble outgoing params: the endpoint's own fields plus uuid, pnsdk,
//     instanceid, requestid and auth as configured.
//  3. Sign the params for access-manager operations.
//  4. Dispatch as POST when the endpoint opts in, GET otherwise.
//  5. Shape the payload with HandleResponse and invoke callback. Failed
//     statuses are forwarded unchanged without calling HandleResponse.
//
// The transport handle is returned for long-poll operations; every other
// operation returns nil. A nil callback discards the outcome.
func Execute[P any, R any](ctx context.Context, m Modules, ep Endpoint[P, R], params P, callback Callback[R]) Call {
	var zero R
	if ctx == nil {
		ctx = context.Background()
	}
	if callback == nil {
		callback = func(Status, R) {}
	}

	op := ep.Operation()
	cfg := m.Config
	if !ep.TakesParams() {
		var none P
		params = none
	}

	if msg := ep.Validate(cfg, params); msg != "" {
		m.logger().DebugContext(ctx, "request rejected",
			slog.String("operation", op.String()),
			slog.String("reason", msg))
		callback(ValidationFailure(op, msg), zero)
		return nil
	}

	out := ep.PrepareParams(cfg, params)
	if out == nil {
		out = url.Values{}
	}
	out.Set("uuid", cfg.UUID)
	out.Set("pnsdk", SDKSignature(cfg))
	if cfg.UseInstanceID {
		out.Set("instanceid", cfg.InstanceID)
	}
	if cfg.UseRequestID {
		out.Set("requestid", m.requestID())
	}
	if ep.AuthSupported() && cfg.AuthKey != "" {
		out.Set("auth", cfg.AuthKey)
	}

	if op.Signed() {
		if err := sign(cfg, m.Crypto, m.now(), op, out); err != nil {
			callback(Status{Error: true, Category: CategoryUnknown, Operation: op, Err: err}, zero)
			return nil
		}
	}

	req := &Request{
		RequestContext: RequestContext{
			URL:       ep.URL(cfg, params),
			Operation: op,
			Timeout:   ep.Timeout(cfg),
		},
		Method: http.MethodGet,
		Params: out,
	}

	if pe, ok := any(ep).(PostEndpoint[P]); ok && pe.UsePost(cfg, params) {
		payload, err := pe.PostPayload(cfg, params)
		if err != nil {
			callback(Failure(op, 0, NewError(CodeInvalidArgument, err.Error())), zero)
			return nil
		}
		req.Method = http.MethodPost
		req.URL = pe.PostURL(cfg, params)
		req.Payload = payload
	}

	onResponse := func(status Status, payload []byte) {
		if status.Error {
			callback(status, zero)
			return
		}
		res, err := ep.HandleResponse(cfg, payload, params)
		if err != nil {
			callback(Status{
				Error:      true,
				Category:   CategoryBadRequest,
				Operation:  op,
				StatusCode: status.StatusCode,
				Err:        Errorf(CodeMalformedResponse, "%v", err),
			}, zero)
			return
		}
		callback(status, res)
	}

	ctx = newContext(ctx, CallInfo{Operation: op, RequestID: out.Get("requestid")})
	call := m.send(ctx, req, onResponse)
	if op.LongPoll() {
		return call
	}
	return nil
}

// send runs req through the interceptors and into the transport.
func (m Modules) send(ctx context.Context, req *Request, onResponse ResponseFunc) Call {
	final := func(ctx context.Context, req *Request, onResponse ResponseFunc) Call {
		if req.Method == http.MethodPost {
			return m.Transport.Post(ctx, req.Params, req.Payload, req.RequestContext, onResponse)
		}
		return m.Transport.Get(ctx, req.Params, req.RequestContext, onResponse)
	}

	if chain := chainInterceptors(m.Interceptors); chain != nil {
		return chain(ctx, req, onResponse, final)
	}
	return final(ctx, req, onResponse)
}
