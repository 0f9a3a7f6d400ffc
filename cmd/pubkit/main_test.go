package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cli := &CLI{}
	cli.out = &buf

	parser, err := newParser(cli, kong.Exit(func(code int) { t.Fatalf("unexpected exit %d", code) }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)

	kctx.BindTo(context.Background(), (*context.Context)(nil))
	err = kctx.Run(&cli.Globals)
	return buf.String(), err
}

// fakeService serves payload for every request and records request URIs.
func fakeService(t *testing.T, payload string) <-chan *http.Request {
	t.Helper()
	seen := make(chan *http.Request, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("PUBKIT_ORIGIN", strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv("PUBKIT_SECURE", "false")
	t.Setenv("PUBKIT_SUBSCRIBE_KEY", "sub-x")
	t.Setenv("PUBKIT_PUBLISH_KEY", "pub-x")
	t.Setenv("PUBKIT_UUID", "cli-test")
	return seen
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestTimeCmd(t *testing.T) {
	seen := fakeService(t, `[17290000000000000]`)

	out, err := runCLI(t, "time")
	require.NoError(t, err)

	var res struct {
		Timetoken int64 `json:"timetoken"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, int64(17290000000000000), res.Timetoken)

	r := <-seen
	assert.Equal(t, "/time/0", r.URL.Path)
	assert.Equal(t, "cli-test", r.URL.Query().Get("uuid"))
}

func TestGroupRemoveCmd(t *testing.T) {
	seen := fakeService(t, `{"status":200,"message":"OK","service":"channel-registry","error":false}`)

	_, err := runCLI(t, "group", "remove", "g", "a", "b", "c")
	require.NoError(t, err)

	r := <-seen
	assert.Equal(t, "/v1/channel-registration/sub-key/sub-x/channel-group/g", r.URL.Path)
	assert.Equal(t, "a,b,c", r.URL.Query().Get("remove"))
}

func TestPublishCmd_FlagsOverrideEnv(t *testing.T) {
	seen := fakeService(t, `[1,"Sent","17290000000000001"]`)

	out, err := runCLI(t, "--pub-key", "pub-flag", "publish", "news", `{"text":"hi"}`, "--no-store")
	require.NoError(t, err)
	assert.Contains(t, out, "17290000000000001")

	r := <-seen
	assert.Equal(t, "/publish/pub-flag/sub-x/0/news/0/%7B%22text%22%3A%22hi%22%7D", r.URL.EscapedPath())
	assert.Equal(t, "0", r.URL.Query().Get("store"))
}

func TestPublishCmd_ValidationError(t *testing.T) {
	fakeService(t, `[]`)
	t.Setenv("PUBKIT_PUBLISH_KEY", "")

	_, err := runCLI(t, "publish", "news", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing Publish Key")
	assert.Contains(t, err.Error(), "PNValidationErrorCategory")
}

func TestSubscribeCmd_RequiresTarget(t *testing.T) {
	_, err := runCLI(t, "subscribe")
	require.Error(t, err)
}

func TestJSONArg(t *testing.T) {
	assert.Nil(t, jsonArg(""))
	assert.Equal(t, "hello", jsonArg("hello"))
	assert.Equal(t, json.RawMessage(`{"a":1}`), jsonArg(`{"a":1}`))
	assert.Equal(t, json.RawMessage(`42`), jsonArg(`42`))
}

func TestGrantCmd_Params(t *testing.T) {
	p := (&GrantCmd{Channels: []string{"a"}, Read: true, TTL: -1}).params()
	assert.Nil(t, p.TTL)
	assert.Equal(t, []string{"a"}, p.Channels)

	p = (&GrantCmd{TTL: 0}).params()
	require.NotNil(t, p.TTL)
	assert.Equal(t, 0, *p.TTL)
}
