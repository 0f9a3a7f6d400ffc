// Package client bundles configuration, transport, signer and the endpoint
// registry behind one typed facade.
//
//	cfg := config.New().WithKeys("sub-c-...", "pub-c-...")
//	c, err := client.New(cfg)
//	if err != nil {
//	    return err
//	}
//	c.Publish(ctx, endpoints.PublishParams{Channel: "news", Message: "hi"},
//	    func(status pubkit.Status, res endpoints.PublishResponse) {
//	        ...
//	    })
//
// Every method returns immediately; outcomes arrive on the callback.
// Only Subscribe returns a handle, which cancels the long-poll.
package client

import (
	"context"
	"log/slog"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	"github.com/broady/pubkit/crypto"
	"github.com/broady/pubkit/endpoints"
	"github.com/broady/pubkit/transport"
)

// Client dispatches API operations. It is safe for concurrent use once
// configured; the With* methods must be called before the first request.
type Client struct {
	modules  pubkit.Modules
	registry *pubkit.Registry
	http     *transport.HTTP
}

// New validates cfg and returns a client sending over HTTP to cfg's origin.
// A signer is installed when cfg has a secret key.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, pubkit.NewError(pubkit.CodeInvalidArgument, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, pubkit.Errorf(pubkit.CodeInvalidArgument, "invalid config: %v", err)
	}

	httpTransport := transport.New(cfg)
	c := &Client{
		modules: pubkit.Modules{
			Config:    cfg,
			Transport: httpTransport,
		},
		registry: pubkit.NewRegistry(),
		http:     httpTransport,
	}
	if cfg.SecretKey != "" {
		c.modules.Crypto = crypto.NewHMAC(cfg.SecretKey)
	}
	endpoints.Register(c.registry)
	return c, nil
}

// WithTransport replaces the HTTP transport.
func (c *Client) WithTransport(t pubkit.Transport) *Client {
	c.modules.Transport = t
	c.http = nil
	return c
}

// WithLogger sets the logger used by the executor, the registry and the
// default transport.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.modules.Logger = logger
	c.registry.WithLogger(logger)
	if c.http != nil {
		c.http.WithLogger(logger)
	}
	return c
}

// WithInterceptor appends an interceptor. Interceptors run in the order
// they were added, the first being the outermost.
func (c *Client) WithInterceptor(i pubkit.Interceptor) *Client {
	c.modules.Interceptors = append(c.modules.Interceptors, i)
	return c
}

// WithSigner replaces the signer used for access-manager requests.
func (c *Client) WithSigner(s pubkit.Signer) *Client {
	c.modules.Crypto = s
	return c
}

func (c *Client) Config() *config.Config {
	return c.modules.Config
}

func (c *Client) Registry() *pubkit.Registry {
	return c.registry
}

// Invoke runs op through the registry with untyped arguments. See
// pubkit.Registry.Invoke for the accepted shapes.
func (c *Client) Invoke(ctx context.Context, op pubkit.Operation, args ...any) (pubkit.Call, error) {
	return c.registry.Invoke(ctx, c.modules, op, args...)
}

func (c *Client) Time(ctx context.Context, cb pubkit.Callback[endpoints.TimeResponse]) {
	pubkit.Execute(ctx, c.modules, endpoints.Time{}, pubkit.Empty{}, cb)
}

func (c *Client) Publish(ctx context.Context, p endpoints.PublishParams, cb pubkit.Callback[endpoints.PublishResponse]) {
	pubkit.Execute(ctx, c.modules, endpoints.Publish{}, p, cb)
}

// Subscribe starts one long-poll cycle. The returned call cancels it and
// is nil when params were rejected.
func (c *Client) Subscribe(ctx context.Context, p endpoints.SubscribeParams, cb pubkit.Callback[endpoints.SubscribeResponse]) pubkit.Call {
	return pubkit.Execute(ctx, c.modules, endpoints.Subscribe{}, p, cb)
}

func (c *Client) Leave(ctx context.Context, p endpoints.LeaveParams, cb pubkit.Callback[pubkit.Empty]) {
	pubkit.Execute(ctx, c.modules, endpoints.Leave{}, p, cb)
}

func (c *Client) History(ctx context.Context, p endpoints.HistoryParams, cb pubkit.Callback[endpoints.HistoryResponse]) {
	pubkit.Execute(ctx, c.modules, endpoints.History{}, p, cb)
}

func (c *Client) AddChannelsToGroup(ctx context.Context, p endpoints.ChannelsParams, cb pubkit.Callback[pubkit.Empty]) {
	pubkit.Execute(ctx, c.modules, endpoints.AddChannelsToGroup{}, p, cb)
}

func (c *Client) RemoveChannelsFromGroup(ctx context.Context, p endpoints.ChannelsParams, cb pubkit.Callback[pubkit.Empty]) {
	pubkit.Execute(ctx, c.modules, endpoints.RemoveChannelsFromGroup{}, p, cb)
}

// ListChannels lists the channels in a channel group.
func (c *Client) ListChannels(ctx context.Context, p endpoints.GroupParams, cb pubkit.Callback[endpoints.ChannelsResponse]) {
	pubkit.Execute(ctx, c.modules, endpoints.ChannelsForGroup{}, p, cb)
}

// ListGroups lists every channel group of the subscribe key.
func (c *Client) ListGroups(ctx context.Context, cb pubkit.Callback[endpoints.GroupsResponse]) {
	pubkit.Execute(ctx, c.modules, endpoints.ListGroups{}, pubkit.Empty{}, cb)
}

func (c *Client) DeleteGroup(ctx context.Context, p endpoints.GroupParams, cb pubkit.Callback[pubkit.Empty]) {
	pubkit.Execute(ctx, c.modules, endpoints.RemoveGroup{}, p, cb)
}

func (c *Client) Grant(ctx context.Context, p endpoints.GrantParams, cb pubkit.Callback[pubkit.Empty]) {
	pubkit.Execute(ctx, c.modules, endpoints.Grant{}, p, cb)
}

func (c *Client) Audit(ctx context.Context, p endpoints.AuditParams, cb pubkit.Callback[endpoints.AuditResponse]) {
	pubkit.Execute(ctx, c.modules, endpoints.Audit{}, p, cb)
}

// Wait starts a call and blocks until its callback fires or ctx is done.
// When ctx ends first the returned status carries ctx's error and has no
// operation set.
//
//	status, res := client.Wait(ctx, func(cb pubkit.Callback[endpoints.TimeResponse]) {
//	    c.Time(ctx, cb)
//	})
func Wait[R any](ctx context.Context, start func(cb pubkit.Callback[R])) (pubkit.Status, R) {
	type outcome struct {
		status pubkit.Status
		res    R
	}
	done := make(chan outcome, 1)
	start(func(status pubkit.Status, res R) {
		done <- outcome{status, res}
	})
	select {
	case o := <-done:
		return o.status, o.res
	case <-ctx.Done():
		var zero R
		return pubkit.Failure("", 0, ctx.Err()), zero
	}
}
