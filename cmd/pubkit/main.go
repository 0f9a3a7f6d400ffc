package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/broady/pubkit"
	"github.com/broady/pubkit/client"
	"github.com/broady/pubkit/config"
	"github.com/broady/pubkit/endpoints"
	"github.com/broady/pubkit/middleware"
	"github.com/goccy/go-json"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

// Globals are the flags shared by every command. Unset key flags fall back
// to the PUBKIT_* environment.
type Globals struct {
	EnvFile      []string `help:"Load PUBKIT_* variables from these dotenv files." name:"env-file" type:"existingfile"`
	SubscribeKey string   `help:"Subscribe key." name:"sub-key"`
	PublishKey   string   `help:"Publish key." name:"pub-key"`
	SecretKey    string   `help:"Secret key for grant and audit." name:"secret-key"`
	AuthKey      string   `help:"Auth key sent with requests." name:"auth-key"`
	UUID         string   `help:"Client UUID." name:"uuid"`
	Origin       string   `help:"Service origin host." name:"origin"`
	Verbose      bool     `help:"Log every request." short:"v"`

	out io.Writer
}

type CLI struct {
	Globals

	Version   VersionCmd   `cmd:"" help:"Print version information."`
	Time      TimeCmd      `cmd:"" help:"Print the service time."`
	Publish   PublishCmd   `cmd:"" help:"Publish a message to a channel."`
	Subscribe SubscribeCmd `cmd:"" help:"Print messages from channels and groups until interrupted."`
	Leave     LeaveCmd     `cmd:"" help:"Announce leaving channels and groups."`
	History   HistoryCmd   `cmd:"" help:"Fetch stored messages of a channel."`
	Group     GroupCmd     `cmd:"" help:"Manage the channels of a channel group."`
	Groups    GroupsCmd    `cmd:"" help:"List channel groups."`
	Grant     GrantCmd     `cmd:"" help:"Grant permissions (requires secret key)."`
	Audit     AuditCmd     `cmd:"" help:"Audit permissions (requires secret key)."`
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	zl := zerolog.New(output).With().Timestamp().Logger()
	return slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: level}))
}

func (g *Globals) config() (*config.Config, error) {
	cfg, err := config.FromEnv(g.EnvFile...)
	if err != nil {
		return nil, err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.SubscribeKey, g.SubscribeKey)
	set(&cfg.PublishKey, g.PublishKey)
	set(&cfg.SecretKey, g.SecretKey)
	set(&cfg.AuthKey, g.AuthKey)
	set(&cfg.UUID, g.UUID)
	set(&cfg.Origin, g.Origin)
	return cfg, nil
}

func (g *Globals) client() (*client.Client, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	logger := newLogger(g.Verbose)
	c.WithLogger(logger)
	if g.Verbose {
		c.WithInterceptor(middleware.LoggingInterceptor(logger))
	}
	return c, nil
}

func (g *Globals) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(g.out, string(data))
	return err
}

// call waits for one callback-style operation and prints its response.
func call[R any](ctx context.Context, g *Globals, start func(cb pubkit.Callback[R])) error {
	status, res := client.Wait(ctx, start)
	if err := statusErr(status); err != nil {
		return err
	}
	return g.print(res)
}

func statusErr(status pubkit.Status) error {
	if !status.Error {
		return nil
	}
	if status.Err == nil {
		return fmt.Errorf("%s failed: %s", status.Operation, status.Category)
	}
	return fmt.Errorf("%s failed: %s: %s", status.Operation, status.Category, status.Err.Message)
}

// jsonArg decodes s as JSON when it is valid JSON and keeps it as a
// string otherwise, so `publish news hello` sends "hello".
func jsonArg(s string) any {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintln(g.out, Version())
	return nil
}

type TimeCmd struct{}

func (c *TimeCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[endpoints.TimeResponse]) {
		cl.Time(ctx, cb)
	})
}

type PublishCmd struct {
	Channel string `arg:"" help:"Channel to publish to."`
	Message string `arg:"" help:"Message; valid JSON is sent as-is, anything else as a string."`
	Meta    string `help:"JSON metadata used by subscribe filters."`
	TTL     int    `help:"Hours to keep the message in history; 0 keeps the key default." name:"ttl"`
	NoStore bool   `help:"Do not store the message in history." name:"no-store"`
	Post    bool   `help:"Send the message in the request body."`
}

func (c *PublishCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	p := endpoints.PublishParams{
		Channel:    c.Channel,
		Message:    jsonArg(c.Message),
		Meta:       jsonArg(c.Meta),
		TTL:        c.TTL,
		SendByPost: c.Post,
	}
	if c.NoStore {
		store := false
		p.StoreInHistory = &store
	}
	return call(ctx, g, func(cb pubkit.Callback[endpoints.PublishResponse]) {
		cl.Publish(ctx, p, cb)
	})
}

type SubscribeCmd struct {
	Channels []string `arg:"" optional:"" help:"Channels to subscribe to."`
	Groups   []string `help:"Channel groups to subscribe to." name:"group" short:"g"`
	Filter   string   `help:"Filter expression applied by the service."`
	Count    int      `help:"Exit after this many messages; 0 runs until interrupted."`
}

func (c *SubscribeCmd) Run(ctx context.Context, g *Globals) error {
	if len(c.Channels) == 0 && len(c.Groups) == 0 {
		return fmt.Errorf("at least one channel or --group is required")
	}
	cl, err := g.client()
	if err != nil {
		return err
	}
	defer c.leave(cl)

	p := endpoints.SubscribeParams{
		Channels:         c.Channels,
		ChannelGroups:    c.Groups,
		FilterExpression: c.Filter,
	}
	received := 0
	for {
		status, res := client.Wait(ctx, func(cb pubkit.Callback[endpoints.SubscribeResponse]) {
			cl.Subscribe(ctx, p, cb)
		})
		if ctx.Err() != nil {
			return nil
		}
		if status.Category == pubkit.CategoryTimeout {
			continue
		}
		if err := statusErr(status); err != nil {
			return err
		}

		for _, msg := range res.Messages {
			if err := g.print(msg); err != nil {
				return err
			}
			received++
			if c.Count > 0 && received >= c.Count {
				return nil
			}
		}
		p.Timetoken = res.Metadata.Timetoken
		p.Region = res.Metadata.Region
	}
}

// leave announces departure on a fresh context since the subscribe context
// is usually cancelled by then.
func (c *SubscribeCmd) leave(cl *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.Wait(ctx, func(cb pubkit.Callback[pubkit.Empty]) {
		cl.Leave(ctx, endpoints.LeaveParams{Channels: c.Channels, ChannelGroups: c.Groups}, cb)
	})
}

type LeaveCmd struct {
	Channels []string `arg:"" optional:"" help:"Channels to leave."`
	Groups   []string `help:"Channel groups to leave." name:"group" short:"g"`
}

func (c *LeaveCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[pubkit.Empty]) {
		cl.Leave(ctx, endpoints.LeaveParams{Channels: c.Channels, ChannelGroups: c.Groups}, cb)
	})
}

type HistoryCmd struct {
	Channel    string `arg:"" help:"Channel to read."`
	Count      int    `help:"Number of messages (max 100)." default:"100"`
	Reverse    bool   `help:"Traverse from oldest to newest."`
	Start      int64  `help:"Exclusive start timetoken."`
	End        int64  `help:"Inclusive end timetoken."`
	Timetokens bool   `help:"Include each message's timetoken."`
}

func (c *HistoryCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	p := endpoints.HistoryParams{
		Channel:          c.Channel,
		Count:            c.Count,
		Reverse:          c.Reverse,
		Start:            c.Start,
		End:              c.End,
		IncludeTimetoken: c.Timetokens,
	}
	return call(ctx, g, func(cb pubkit.Callback[endpoints.HistoryResponse]) {
		cl.History(ctx, p, cb)
	})
}

type GroupCmd struct {
	Add    GroupAddCmd    `cmd:"" help:"Add channels to a group."`
	Remove GroupRemoveCmd `cmd:"" help:"Remove channels from a group."`
	List   GroupListCmd   `cmd:"" help:"List the channels of a group."`
	Delete GroupDeleteCmd `cmd:"" help:"Delete a group."`
}

type GroupAddCmd struct {
	Group    string   `arg:"" help:"Channel group."`
	Channels []string `arg:"" help:"Channels to add."`
}

func (c *GroupAddCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[pubkit.Empty]) {
		cl.AddChannelsToGroup(ctx, endpoints.ChannelsParams{ChannelGroup: c.Group, Channels: c.Channels}, cb)
	})
}

type GroupRemoveCmd struct {
	Group    string   `arg:"" help:"Channel group."`
	Channels []string `arg:"" help:"Channels to remove."`
}

func (c *GroupRemoveCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[pubkit.Empty]) {
		cl.RemoveChannelsFromGroup(ctx, endpoints.ChannelsParams{ChannelGroup: c.Group, Channels: c.Channels}, cb)
	})
}

type GroupListCmd struct {
	Group string `arg:"" help:"Channel group."`
}

func (c *GroupListCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[endpoints.ChannelsResponse]) {
		cl.ListChannels(ctx, endpoints.GroupParams{ChannelGroup: c.Group}, cb)
	})
}

type GroupDeleteCmd struct {
	Group string `arg:"" help:"Channel group."`
}

func (c *GroupDeleteCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[pubkit.Empty]) {
		cl.DeleteGroup(ctx, endpoints.GroupParams{ChannelGroup: c.Group}, cb)
	})
}

type GroupsCmd struct{}

func (c *GroupsCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[endpoints.GroupsResponse]) {
		cl.ListGroups(ctx, cb)
	})
}

type GrantCmd struct {
	Channels []string `help:"Channels to grant on; empty grants key-wide." name:"channel"`
	Groups   []string `help:"Channel groups to grant on." name:"group"`
	AuthKeys []string `help:"Auth keys receiving the grant." name:"grant-auth"`
	Read     bool     `help:"Allow read." short:"r"`
	Write    bool     `help:"Allow write." short:"w"`
	Manage   bool     `help:"Allow manage." short:"m"`
	TTL      int      `help:"Minutes until the grant expires; 0 never expires, -1 uses the service default." name:"ttl" default:"-1"`
}

func (c *GrantCmd) params() endpoints.GrantParams {
	p := endpoints.GrantParams{
		Channels:      c.Channels,
		ChannelGroups: c.Groups,
		AuthKeys:      c.AuthKeys,
		Read:          c.Read,
		Write:         c.Write,
		Manage:        c.Manage,
	}
	if c.TTL >= 0 {
		ttl := c.TTL
		p.TTL = &ttl
	}
	return p
}

func (c *GrantCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[pubkit.Empty]) {
		cl.Grant(ctx, c.params(), cb)
	})
}

type AuditCmd struct {
	Channel  string   `help:"Channel to audit." name:"channel"`
	Group    string   `help:"Channel group to audit." name:"group"`
	AuthKeys []string `help:"Auth keys to audit." name:"grant-auth"`
}

func (c *AuditCmd) Run(ctx context.Context, g *Globals) error {
	cl, err := g.client()
	if err != nil {
		return err
	}
	return call(ctx, g, func(cb pubkit.Callback[endpoints.AuditResponse]) {
		cl.Audit(ctx, endpoints.AuditParams{Channel: c.Channel, ChannelGroup: c.Group, AuthKeys: c.AuthKeys}, cb)
	})
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("pubkit"),
		kong.Description("Command-line client for the publish/subscribe service."),
		kong.UsageOnError(),
	}, opts...)
	return kong.New(cli, opts...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := &CLI{}
	cli.out = os.Stdout
	parser, err := newParser(cli)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
