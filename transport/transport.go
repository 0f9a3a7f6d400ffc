// Package transport sends assembled requests to the service over HTTP.
//
// Each request runs on its own goroutine under a context bounded by the
// endpoint timeout. The returned handle cancels that context.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	"github.com/broady/pubkit/internal/pamenc"
	"github.com/tidwall/gjson"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 32 << 20

// HTTP implements pubkit.Transport with net/http.
type HTTP struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ pubkit.Transport = (*HTTP)(nil)

// New returns a transport sending to cfg's origin.
func New(cfg *config.Config) *HTTP {
	return &HTTP{
		baseURL: cfg.BaseURL(),
		client:  &http.Client{},
	}
}

// WithHTTPClient sets the client used for requests. Per-request timeouts
// come from the request context, so the client's own Timeout can stay zero.
func (t *HTTP) WithHTTPClient(c *http.Client) *HTTP {
	t.client = c
	return t
}

// WithBaseURL overrides the scheme and origin derived from config.
func (t *HTTP) WithBaseURL(u string) *HTTP {
	t.baseURL = u
	return t
}

// WithLogger sets a custom logger. If not set, slog.Default() will be used.
func (t *HTTP) WithLogger(logger *slog.Logger) *HTTP {
	t.logger = logger
	return t
}

func (t *HTTP) getLogger() *slog.Logger {
	if t.logger == nil {
		return slog.Default()
	}
	return t.logger
}

func (t *HTTP) Get(ctx context.Context, params url.Values, req pubkit.RequestContext, onResponse pubkit.ResponseFunc) pubkit.Call {
	return t.start(ctx, http.MethodGet, params, nil, req, onResponse)
}

func (t *HTTP) Post(ctx context.Context, params url.Values, payload []byte, req pubkit.RequestContext, onResponse pubkit.ResponseFunc) pubkit.Call {
	return t.start(ctx, http.MethodPost, params, payload, req, onResponse)
}

// URL returns the full request URL for path and params.
func (t *HTTP) URL(path string, params url.Values) string {
	u := t.baseURL + path
	if q := pamenc.Encode(params); q != "" {
		u += "?" + q
	}
	return u
}

func (t *HTTP) start(ctx context.Context, method string, params url.Values, payload []byte, req pubkit.RequestContext, onResponse pubkit.ResponseFunc) pubkit.Call {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	c := &call{cancel: cancel, done: make(chan struct{})}
	fullURL := t.URL(req.URL, params)

	go func() {
		defer close(c.done)
		defer cancel()
		status, body := t.do(ctx, method, fullURL, payload, req.Operation)
		if onResponse != nil {
			onResponse(status, body)
		}
	}()
	return c
}

func (t *HTTP) do(ctx context.Context, method, fullURL string, payload []byte, op pubkit.Operation) (pubkit.Status, []byte) {
	logger := t.getLogger()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return pubkit.Failure(op, 0, pubkit.Errorf(pubkit.CodeInternal, "failed to create request: %v", err)), nil
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		status := pubkit.Failure(op, 0, contextErr(ctx, err))
		if status.Category != pubkit.CategoryCancelled {
			logger.WarnContext(ctx, "request failed",
				slog.String("operation", op.String()),
				slog.String("method", method),
				slog.Any("error", err))
		}
		return status, nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return pubkit.Failure(op, resp.StatusCode, contextErr(ctx, err)), nil
	}

	if code := pubkit.CodeFromHTTPStatus(resp.StatusCode); code != "" {
		e := pubkit.NewError(code, serviceMessage(resp.StatusCode, data)).
			WithDetail("body", string(data))
		logger.WarnContext(ctx, "service returned error",
			slog.String("operation", op.String()),
			slog.Int("status", resp.StatusCode),
			slog.String("message", e.Message))
		return pubkit.Failure(op, resp.StatusCode, e), nil
	}

	return pubkit.OK(op, resp.StatusCode), data
}

// contextErr prefers the context's error so that timeouts and cancellation
// are classified even when the client wraps them.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// serviceMessage extracts the service's error text from a failed response.
func serviceMessage(statusCode int, data []byte) string {
	if gjson.ValidBytes(data) {
		doc := gjson.ParseBytes(data)
		for _, path := range []string{"message", "error.message", "error_message", "payload.message"} {
			if v := doc.Get(path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return fmt.Sprintf("service responded with %d %s", statusCode, http.StatusText(statusCode))
}

type call struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *call) Cancel() {
	c.cancel()
}

func (c *call) Done() <-chan struct{} {
	return c.done
}
