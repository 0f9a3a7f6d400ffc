package endpoints

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	json "github.com/goccy/go-json"
)

// SubscribeParams describes one long-poll cycle. Timetoken and Region come
// from the metadata of the previous cycle; zero starts a new subscription.
type SubscribeParams struct {
	Channels      []string
	ChannelGroups []string
	Timetoken     int64
	Region        int
	// FilterExpression overrides the configured filter when set.
	FilterExpression string
	// State is the presence state announced for every subscribed channel.
	State map[string]any
}

type subscribeQuery struct {
	ChannelGroup string `schema:"channel-group,omitempty"`
	Timetoken    string `schema:"tt"`
	Region       int    `schema:"tr,omitempty"`
	FilterExpr   string `schema:"filter-expr,omitempty"`
	Heartbeat    int    `schema:"heartbeat,omitempty"`
	State        string `schema:"state,omitempty"`
}

// SubscribeMetadata is the cursor for the next cycle.
type SubscribeMetadata struct {
	Timetoken int64 `json:"timetoken"`
	Region    int   `json:"region"`
}

// Envelope is one message delivered by subscribe.
type Envelope struct {
	Channel      string          `json:"channel"`
	Subscription string          `json:"subscription,omitempty"`
	Publisher    string          `json:"publisher,omitempty"`
	Timetoken    int64           `json:"timetoken"`
	Region       int             `json:"region"`
	Payload      json.RawMessage `json:"payload"`
	UserMetadata json.RawMessage `json:"userMetadata,omitempty"`
}

// SubscribeResponse is the result of one cycle.
type SubscribeResponse struct {
	Metadata SubscribeMetadata `json:"metadata"`
	Messages []Envelope        `json:"messages"`
}

// Subscribe long-polls for messages on channels and channel groups.
// Its call handle is returned to the caller for cancellation.
type Subscribe struct{ transaction }

var _ pubkit.Endpoint[SubscribeParams, SubscribeResponse] = Subscribe{}

func (Subscribe) Operation() pubkit.Operation { return pubkit.PNSubscribeOperation }

func (Subscribe) Timeout(cfg *config.Config) time.Duration { return cfg.SubscribeTimeout }

func (Subscribe) Validate(cfg *config.Config, p SubscribeParams) string {
	if p.State != nil {
		if _, err := json.Marshal(p.State); err != nil {
			return "Invalid State"
		}
	}
	return keys{subscribe: true}.missing(cfg)
}

func (Subscribe) URL(cfg *config.Config, p SubscribeParams) string {
	return "/v2/subscribe/" + cfg.SubscribeKey + "/" + joinOrComma(p.Channels) + "/0"
}

func (Subscribe) PrepareParams(cfg *config.Config, p SubscribeParams) url.Values {
	q := subscribeQuery{
		ChannelGroup: strings.Join(p.ChannelGroups, ","),
		Timetoken:    formatTimetoken(p.Timetoken),
		Region:       p.Region,
		FilterExpr:   cfg.FilterExpression,
		Heartbeat:    cfg.PresenceTimeout,
	}
	if p.FilterExpression != "" {
		q.FilterExpr = p.FilterExpression
	}
	if len(p.State) > 0 {
		state, _ := json.Marshal(p.State)
		q.State = string(state)
	}
	return encodeQuery(q)
}

func (Subscribe) HandleResponse(_ *config.Config, payload []byte, _ SubscribeParams) (SubscribeResponse, error) {
	doc, err := parse(payload)
	if err != nil {
		return SubscribeResponse{}, err
	}
	cursor := doc.Get("t")
	if !cursor.Exists() {
		return SubscribeResponse{}, errors.New("subscribe payload has no cursor")
	}

	res := SubscribeResponse{
		Metadata: SubscribeMetadata{
			Timetoken: cursor.Get("t").Int(),
			Region:    int(cursor.Get("r").Int()),
		},
		Messages: []Envelope{},
	}
	for _, m := range doc.Get("m").Array() {
		env := Envelope{
			Channel:      m.Get("c").String(),
			Subscription: m.Get("b").String(),
			Publisher:    m.Get("i").String(),
			Timetoken:    m.Get("p.t").Int(),
			Region:       int(m.Get("p.r").Int()),
		}
		if d := m.Get("d"); d.Exists() {
			env.Payload = json.RawMessage(d.Raw)
		}
		if um := m.Get("u"); um.Exists() {
			env.UserMetadata = json.RawMessage(um.Raw)
		}
		res.Messages = append(res.Messages, env)
	}
	return res, nil
}

// LeaveParams names the channels and groups to leave.
type LeaveParams struct {
	Channels      []string
	ChannelGroups []string
}

// Leave announces that the client stopped listening on channels.
type Leave struct{ transaction }

var _ pubkit.Endpoint[LeaveParams, pubkit.Empty] = Leave{}

func (Leave) Operation() pubkit.Operation { return pubkit.PNUnsubscribeOperation }

func (Leave) Validate(cfg *config.Config, p LeaveParams) string {
	if len(p.Channels) == 0 && len(p.ChannelGroups) == 0 {
		return "Missing Channels"
	}
	return keys{subscribe: true}.missing(cfg)
}

func (Leave) URL(cfg *config.Config, p LeaveParams) string {
	return "/v2/presence/sub-key/" + cfg.SubscribeKey + "/channel/" + joinOrComma(p.Channels) + "/leave"
}

func (Leave) PrepareParams(_ *config.Config, p LeaveParams) url.Values {
	params := url.Values{}
	if len(p.ChannelGroups) > 0 {
		params.Set("channel-group", strings.Join(p.ChannelGroups, ","))
	}
	return params
}

func (Leave) HandleResponse(*config.Config, []byte, LeaveParams) (pubkit.Empty, error) {
	return pubkit.Empty{}, nil
}
