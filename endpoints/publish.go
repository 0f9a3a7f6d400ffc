package endpoints

import (
	"errors"
	"net/url"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	"github.com/broady/pubkit/internal/pamenc"
	json "github.com/goccy/go-json"
)

// PublishParams describes a message to publish. Message and Meta are
// serialized as JSON.
type PublishParams struct {
	Message any
	Channel string `label:"Channel" validate:"required"`
	Meta    any

	// StoreInHistory overrides the key's storage default when set.
	StoreInHistory *bool
	// TTL is the per-message storage time in hours; 0 leaves the default.
	TTL int `label:"TTL" validate:"gte=0"`
	// SendByPost sends the message in the request body.
	SendByPost bool
}

type publishQuery struct {
	Store string `schema:"store,omitempty"`
	TTL   int    `schema:"ttl,omitempty"`
	Meta  string `schema:"meta,omitempty"`
}

// PublishResponse carries the timetoken assigned to the message.
type PublishResponse struct {
	Timetoken int64 `json:"timetoken"`
}

// Publish sends a message to a channel.
type Publish struct{ transaction }

var (
	_ pubkit.Endpoint[PublishParams, PublishResponse] = Publish{}
	_ pubkit.PostEndpoint[PublishParams]              = Publish{}
)

func (Publish) Operation() pubkit.Operation { return pubkit.PNPublishOperation }

func (Publish) Validate(cfg *config.Config, p PublishParams) string {
	if p.Message == nil {
		return "Missing Message"
	}
	if _, err := json.Marshal(p.Message); err != nil {
		return "Invalid Message"
	}
	if p.Meta != nil {
		if _, err := json.Marshal(p.Meta); err != nil {
			return "Invalid Meta"
		}
	}
	return validate(cfg, p, keys{subscribe: true, publish: true})
}

func publishBase(cfg *config.Config, channel string) string {
	return "/publish/" + cfg.PublishKey + "/" + cfg.SubscribeKey + "/0/" + channel + "/0"
}

// URL embeds the JSON-encoded message in the path.
func (Publish) URL(cfg *config.Config, p PublishParams) string {
	msg, _ := json.Marshal(p.Message)
	return publishBase(cfg, p.Channel) + "/" + pamenc.Escape(string(msg))
}

func (Publish) PrepareParams(_ *config.Config, p PublishParams) url.Values {
	q := publishQuery{TTL: p.TTL}
	if p.StoreInHistory != nil {
		q.Store = flag(*p.StoreInHistory)
	}
	if p.Meta != nil {
		meta, _ := json.Marshal(p.Meta)
		q.Meta = string(meta)
	}
	return encodeQuery(q)
}

func (Publish) UsePost(_ *config.Config, p PublishParams) bool {
	return p.SendByPost
}

func (Publish) PostURL(cfg *config.Config, p PublishParams) string {
	return publishBase(cfg, p.Channel)
}

func (Publish) PostPayload(_ *config.Config, p PublishParams) ([]byte, error) {
	return json.Marshal(p.Message)
}

// HandleResponse reads the timetoken from [1,"Sent","<timetoken>"].
func (Publish) HandleResponse(_ *config.Config, payload []byte, _ PublishParams) (PublishResponse, error) {
	doc, err := parse(payload)
	if err != nil {
		return PublishResponse{}, err
	}
	tt := doc.Get("2")
	if !tt.Exists() {
		return PublishResponse{}, errors.New("publish payload has no timetoken")
	}
	return PublishResponse{Timetoken: tt.Int()}, nil
}
