package pubkit_test

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	"github.com/broady/pubkit/crypto"
	"github.com/broady/pubkit/testutil"
)

type echoParams struct {
	Channel string `label:"Channel" validate:"required"`
	Body    string
}

// echoEndpoint is a configurable endpoint that counts HandleResponse calls.
type echoEndpoint struct {
	op      pubkit.Operation
	noArgs  bool
	noAuth  bool
	handled *int
}

func (e echoEndpoint) Operation() pubkit.Operation {
	if e.op == "" {
		return pubkit.PNHistoryOperation
	}
	return e.op
}

func (e echoEndpoint) TakesParams() bool   { return !e.noArgs }
func (e echoEndpoint) AuthSupported() bool { return !e.noAuth }

func (e echoEndpoint) Validate(cfg *config.Config, p echoParams) string {
	if e.noArgs {
		return ""
	}
	return pubkit.ValidateParams(p)
}

func (e echoEndpoint) URL(cfg *config.Config, p echoParams) string {
	return "/echo/" + cfg.SubscribeKey + "/" + p.Channel
}

func (e echoEndpoint) Timeout(cfg *config.Config) time.Duration { return cfg.TransactionTimeout }

func (e echoEndpoint) PrepareParams(cfg *config.Config, p echoParams) url.Values {
	if p.Channel == "" {
		return nil
	}
	return url.Values{"channel": {p.Channel}}
}

func (e echoEndpoint) HandleResponse(cfg *config.Config, payload []byte, p echoParams) (string, error) {
	if e.handled != nil {
		*e.handled++
	}
	if string(payload) == "garbage" {
		return "", errors.New("unexpected payload")
	}
	return p.Channel + ":" + string(payload), nil
}

// postEcho sends its body by POST when one is given.
type postEcho struct{ echoEndpoint }

func (postEcho) UsePost(cfg *config.Config, p echoParams) bool { return p.Body != "" }
func (postEcho) PostURL(cfg *config.Config, p echoParams) string {
	return "/echo-post/" + p.Channel
}

func (postEcho) PostPayload(cfg *config.Config, p echoParams) ([]byte, error) {
	if p.Body == "bad" {
		return nil, errors.New("Invalid Body")
	}
	return []byte(p.Body), nil
}

func modules(tr *testutil.Transport) pubkit.Modules {
	cfg := testutil.Config()
	return pubkit.Modules{
		Config:       cfg,
		Transport:    tr,
		Crypto:       crypto.NewHMAC(cfg.SecretKey),
		NewRequestID: func() string { return "req-1" },
		Now:          func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func TestExecute_ValidationShortCircuits(t *testing.T) {
	tr := testutil.NewTransport()
	res := testutil.NewResult[string]()
	handled := 0

	call := pubkit.Execute(context.Background(), modules(tr), echoEndpoint{handled: &handled}, echoParams{}, res.Callback())

	if call != nil {
		t.Error("expected nil call for rejected params")
	}
	if tr.Count() != 0 || handled != 0 {
		t.Fatalf("expected nothing sent, got %d requests and %d handled", tr.Count(), handled)
	}
	if res.Calls != 1 {
		t.Fatalf("expected 1 callback, got %d", res.Calls)
	}
	if !res.Status.Error || res.Status.Category != pubkit.CategoryValidationError {
		t.Errorf("expected validation error, got %+v", res.Status)
	}
	if res.Status.Operation != pubkit.PNHistoryOperation {
		t.Errorf("expected operation %s, got %s", pubkit.PNHistoryOperation, res.Status.Operation)
	}
	if res.Status.Err.Message != "Missing Channel" {
		t.Errorf("expected message 'Missing Channel', got %q", res.Status.Err.Message)
	}
	if res.Response != "" {
		t.Errorf("expected no response, got %q", res.Response)
	}
}

func TestExecute_CommonParams(t *testing.T) {
	tr := testutil.NewTransport()
	m := modules(tr)

	pubkit.Execute(context.Background(), m, echoEndpoint{}, echoParams{Channel: "news"}, nil)

	params := tr.Last(t).Params
	for key, want := range map[string]string{"channel": "news", "uuid": "client-1", "pnsdk": "PubNub-Go/1.0.0"} {
		if got := params.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	for _, key := range []string{"instanceid", "requestid", "auth", "signature"} {
		if params.Has(key) {
			t.Errorf("unexpected %s param %q", key, params.Get(key))
		}
	}

	m.Config.UseInstanceID = true
	m.Config.UseRequestID = true
	m.Config.PartnerID = "acme"
	pubkit.Execute(context.Background(), m, echoEndpoint{}, echoParams{Channel: "news"}, nil)

	params = tr.Last(t).Params
	for key, want := range map[string]string{"instanceid": "instance-1", "requestid": "req-1", "pnsdk": "PubNub-Go-acme/1.0.0"} {
		if got := params.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestExecute_DefaultRequestID(t *testing.T) {
	tr := testutil.NewTransport()
	cfg := testutil.Config()
	cfg.UseRequestID = true

	pubkit.Execute(context.Background(), pubkit.Modules{Config: cfg, Transport: tr}, echoEndpoint{}, echoParams{Channel: "a"}, nil)
	pubkit.Execute(context.Background(), pubkit.Modules{Config: cfg, Transport: tr}, echoEndpoint{}, echoParams{Channel: "a"}, nil)

	reqs := tr.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	first, second := reqs[0].Params.Get("requestid"), reqs[1].Params.Get("requestid")
	if len(first) != 36 {
		t.Errorf("expected a uuid request id, got %q", first)
	}
	if first == second {
		t.Errorf("request ids should differ, both %q", first)
	}
}

func TestExecute_AuthKey(t *testing.T) {
	tr := testutil.NewTransport()
	m := modules(tr)
	m.Config.AuthKey = "my-auth"

	pubkit.Execute(context.Background(), m, echoEndpoint{}, echoParams{Channel: "a"}, nil)
	if got := tr.Last(t).Params.Get("auth"); got != "my-auth" {
		t.Errorf("expected auth 'my-auth', got %q", got)
	}

	pubkit.Execute(context.Background(), m, echoEndpoint{noAuth: true}, echoParams{Channel: "a"}, nil)
	if tr.Last(t).Params.Has("auth") {
		t.Error("auth must not be sent when the endpoint does not support it")
	}
}

func TestExecute_Success(t *testing.T) {
	tr := testutil.NewTransport()
	tr.Responder = testutil.Respond(`[1]`)
	res := testutil.NewResult[string]()

	call := pubkit.Execute(context.Background(), modules(tr), echoEndpoint{}, echoParams{Channel: "a"}, res.Callback())

	if call != nil {
		t.Error("only long-poll operations return their call")
	}
	if res.Calls != 1 {
		t.Fatalf("expected 1 callback, got %d", res.Calls)
	}
	if res.Status.Error || res.Status.Category != pubkit.CategoryAcknowledgment {
		t.Errorf("expected acknowledgment, got %+v", res.Status)
	}
	if res.Status.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.Status.StatusCode)
	}
	if res.Response != "a:[1]" {
		t.Errorf("expected response 'a:[1]', got %q", res.Response)
	}

	rec := tr.Last(t)
	if rec.Method != http.MethodGet {
		t.Errorf("expected GET, got %s", rec.Method)
	}
	if rec.Context.URL != "/echo/sub-x/a" {
		t.Errorf("unexpected URL %q", rec.Context.URL)
	}
	if rec.Context.Timeout != 15*time.Second {
		t.Errorf("expected 15s timeout, got %v", rec.Context.Timeout)
	}
}

func TestExecute_ErrorStatusForwarded(t *testing.T) {
	tr := testutil.NewTransport()
	tr.Responder = testutil.Fail(http.StatusForbidden, "Forbidden")
	res := testutil.NewResult[string]()
	handled := 0

	pubkit.Execute(context.Background(), modules(tr), echoEndpoint{handled: &handled}, echoParams{Channel: "a"}, res.Callback())

	if handled != 0 {
		t.Error("HandleResponse must not run for failed statuses")
	}
	if res.Calls != 1 {
		t.Fatalf("expected 1 callback, got %d", res.Calls)
	}
	if !res.Status.Error || res.Status.Category != pubkit.CategoryAccessDenied {
		t.Errorf("expected access denied, got %+v", res.Status)
	}
	if res.Status.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", res.Status.StatusCode)
	}
	if res.Status.Err.Message != "Forbidden" {
		t.Errorf("expected message 'Forbidden', got %q", res.Status.Err.Message)
	}
	if res.Response != "" {
		t.Errorf("expected no response, got %q", res.Response)
	}
}

func TestExecute_MalformedResponse(t *testing.T) {
	tr := testutil.NewTransport()
	tr.Responder = testutil.Respond("garbage")
	res := testutil.NewResult[string]()

	pubkit.Execute(context.Background(), modules(tr), echoEndpoint{}, echoParams{Channel: "a"}, res.Callback())

	if res.Calls != 1 {
		t.Fatalf("expected 1 callback, got %d", res.Calls)
	}
	if !res.Status.Error || res.Status.Category != pubkit.CategoryBadRequest {
		t.Errorf("expected bad request, got %+v", res.Status)
	}
	if res.Status.Err.Code != pubkit.CodeMalformedResponse {
		t.Errorf("expected code %s, got %s", pubkit.CodeMalformedResponse, res.Status.Err.Code)
	}
	if res.Status.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.Status.StatusCode)
	}
}

func TestExecute_NoParamsEndpoint(t *testing.T) {
	tr := testutil.NewTransport()
	res := testutil.NewResult[string]()

	pubkit.Execute(context.Background(), modules(tr), echoEndpoint{noArgs: true}, echoParams{Channel: "ignored"}, res.Callback())

	if res.Calls != 1 {
		t.Fatalf("expected 1 callback, got %d", res.Calls)
	}
	rec := tr.Last(t)
	if rec.Context.URL != "/echo/sub-x/" {
		t.Errorf("unexpected URL %q", rec.Context.URL)
	}
	if rec.Params.Has("channel") {
		t.Error("params must be ignored for endpoints that take none")
	}
}

func TestExecute_Post(t *testing.T) {
	tr := testutil.NewTransport()
	m := modules(tr)

	pubkit.Execute(context.Background(), m, postEcho{}, echoParams{Channel: "a", Body: `{"x":1}`}, nil)
	rec := tr.Last(t)
	if rec.Method != http.MethodPost || rec.Context.URL != "/echo-post/a" {
		t.Errorf("expected POST /echo-post/a, got %s %s", rec.Method, rec.Context.URL)
	}
	if string(rec.Payload) != `{"x":1}` {
		t.Errorf("unexpected payload %q", rec.Payload)
	}

	pubkit.Execute(context.Background(), m, postEcho{}, echoParams{Channel: "a"}, nil)
	rec = tr.Last(t)
	if rec.Method != http.MethodGet || rec.Payload != nil {
		t.Errorf("expected GET without payload, got %s %q", rec.Method, rec.Payload)
	}
}

func TestExecute_PostPayloadFailure(t *testing.T) {
	tr := testutil.NewTransport()
	res := testutil.NewResult[string]()

	call := pubkit.Execute(context.Background(), modules(tr), postEcho{}, echoParams{Channel: "a", Body: "bad"}, res.Callback())

	if call != nil {
		t.Error("expected nil call when the payload cannot be built")
	}
	if tr.Count() != 0 {
		t.Fatalf("expected nothing sent, got %d requests", tr.Count())
	}
	if res.Calls != 1 {
		t.Fatalf("expected 1 callback, got %d", res.Calls)
	}
	if !res.Status.Error || res.Status.Category != pubkit.CategoryBadRequest {
		t.Errorf("expected bad request, got %+v", res.Status)
	}
	if res.Status.Err.Code != pubkit.CodeInvalidArgument {
		t.Errorf("expected code %s, got %s", pubkit.CodeInvalidArgument, res.Status.Err.Code)
	}
	if res.Status.Err.Message != "Invalid Body" {
		t.Errorf("expected message 'Invalid Body', got %q", res.Status.Err.Message)
	}
}

func TestExecute_Signed(t *testing.T) {
	tr := testutil.NewTransport()
	m := modules(tr)
	ep := echoEndpoint{op: pubkit.PNAccessManagerAudit, noAuth: true}

	pubkit.Execute(context.Background(), m, ep, echoParams{Channel: "a"}, nil)
	pubkit.Execute(context.Background(), m, ep, echoParams{Channel: "a"}, nil)

	reqs := tr.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	first := reqs[0].Params
	if got := first.Get("timestamp"); got != "1700000000" {
		t.Errorf("expected timestamp 1700000000, got %q", got)
	}
	sig := first.Get("signature")
	if sig == "" {
		t.Fatal("expected a signature")
	}
	if other := reqs[1].Params.Get("signature"); other != sig {
		t.Errorf("same inputs must sign identically: %q != %q", sig, other)
	}

	unsigned := maps.Clone(first)
	unsigned.Del("signature")
	input := pubkit.SignInput(m.Config, pubkit.PNAccessManagerAudit, unsigned)
	if want := crypto.NewHMAC("sec-x").HMACSHA256(input); sig != want {
		t.Errorf("signature = %q, want %q", sig, want)
	}
	if !strings.HasPrefix(input, "sub-x\npub-x\naudit\n") {
		t.Errorf("unexpected sign input %q", input)
	}
}

func TestExecute_SignedWithoutSigner(t *testing.T) {
	tr := testutil.NewTransport()
	m := modules(tr)
	m.Crypto = nil
	res := testutil.NewResult[string]()

	pubkit.Execute(context.Background(), m, echoEndpoint{op: pubkit.PNAccessManagerGrant}, echoParams{Channel: "a"}, res.Callback())

	if tr.Count() != 0 {
		t.Fatalf("expected nothing sent, got %d requests", tr.Count())
	}
	if res.Calls != 1 {
		t.Fatalf("expected 1 callback, got %d", res.Calls)
	}
	if !res.Status.Error || res.Status.Err.Code != pubkit.CodeInternal {
		t.Errorf("expected internal error, got %+v", res.Status)
	}
}

func TestExecute_LongPollReturnsCall(t *testing.T) {
	tr := testutil.NewTransport()
	tr.Hold = true
	res := testutil.NewResult[string]()

	call := pubkit.Execute(context.Background(), modules(tr), echoEndpoint{op: pubkit.PNSubscribeOperation}, echoParams{Channel: "a"}, res.Callback())
	if call == nil {
		t.Fatal("expected a call for long-poll operations")
	}
	if res.Calls != 0 {
		t.Errorf("expected no callback before release, got %d", res.Calls)
	}

	tr.Release()
	res.Wait(t, time.Second)
	if res.Status.Error {
		t.Errorf("unexpected error %+v", res.Status)
	}
	if res.Status.Operation != pubkit.PNSubscribeOperation {
		t.Errorf("expected operation %s, got %s", pubkit.PNSubscribeOperation, res.Status.Operation)
	}
}

func TestExecute_Interceptors(t *testing.T) {
	tr := testutil.NewTransport()
	m := modules(tr)
	var order []string
	m.Interceptors = []pubkit.Interceptor{
		func(ctx context.Context, req *pubkit.Request, onResponse pubkit.ResponseFunc, next pubkit.SendFunc) pubkit.Call {
			order = append(order, "outer")
			req.Params.Set("trace", "t-1")
			return next(ctx, req, onResponse)
		},
		func(ctx context.Context, req *pubkit.Request, onResponse pubkit.ResponseFunc, next pubkit.SendFunc) pubkit.Call {
			order = append(order, "inner:"+req.Params.Get("trace"))
			info, ok := pubkit.CallInfoFromContext(ctx)
			if ok {
				order = append(order, "info:"+info.Operation.String()+":"+info.RequestID)
			}
			return next(ctx, req, onResponse)
		},
	}
	m.Config.UseRequestID = true

	pubkit.Execute(context.Background(), m, echoEndpoint{}, echoParams{Channel: "a"}, nil)

	want := []string{"outer", "inner:t-1", "info:PNHistoryOperation:req-1"}
	if !slices.Equal(order, want) {
		t.Errorf("expected order %v, got %v", want, order)
	}
	if got := tr.Last(t).Params.Get("trace"); got != "t-1" {
		t.Errorf("expected trace param 't-1', got %q", got)
	}
}

func TestSDKSignature(t *testing.T) {
	cfg := config.New()
	if got := pubkit.SDKSignature(cfg); got != "PubNub-Go/1.0.0" {
		t.Errorf("unexpected signature %q", got)
	}
	cfg.PartnerID = "acme"
	if got := pubkit.SDKSignature(cfg); got != "PubNub-Go-acme/1.0.0" {
		t.Errorf("unexpected partner signature %q", got)
	}
}
