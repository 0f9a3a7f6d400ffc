package endpoints

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	json "github.com/goccy/go-json"
)

const authPath = "/v1/auth/"

// GrantParams sets permissions for auth keys on channels and channel
// groups. Empty lists widen the grant to the whole subscribe key.
type GrantParams struct {
	Channels      []string
	ChannelGroups []string
	AuthKeys      []string
	Read          bool
	Write         bool
	Manage        bool
	// TTL in minutes. Nil leaves the service default; 0 grants forever.
	TTL *int
}

type grantQuery struct {
	Channel      string `schema:"channel,omitempty"`
	ChannelGroup string `schema:"channel-group,omitempty"`
	Auth         string `schema:"auth,omitempty"`
	Read         string `schema:"r"`
	Write        string `schema:"w"`
	Manage       string `schema:"m"`
	TTL          string `schema:"ttl,omitempty"`
}

// Grant changes access permissions. Requests are signed with the secret key.
type Grant struct{ transaction }

var _ pubkit.Endpoint[GrantParams, pubkit.Empty] = Grant{}

func (Grant) Operation() pubkit.Operation { return pubkit.PNAccessManagerGrant }

// AuthSupported is false: the auth query field carries the keys being
// granted, not the caller's auth key.
func (Grant) AuthSupported() bool { return false }

func (Grant) Validate(cfg *config.Config, p GrantParams) string {
	if msg := (keys{subscribe: true, publish: true, secret: true}).missing(cfg); msg != "" {
		return msg
	}
	if p.TTL != nil && *p.TTL < 0 {
		return "Invalid TTL"
	}
	return ""
}

func (Grant) URL(cfg *config.Config, _ GrantParams) string {
	return authPath + "grant/sub-key/" + cfg.SubscribeKey
}

func (Grant) PrepareParams(_ *config.Config, p GrantParams) url.Values {
	q := grantQuery{
		Channel:      strings.Join(p.Channels, ","),
		ChannelGroup: strings.Join(p.ChannelGroups, ","),
		Auth:         strings.Join(p.AuthKeys, ","),
		Read:         flag(p.Read),
		Write:        flag(p.Write),
		Manage:       flag(p.Manage),
	}
	if p.TTL != nil {
		q.TTL = strconv.Itoa(*p.TTL)
	}
	return encodeQuery(q)
}

func (Grant) HandleResponse(*config.Config, []byte, GrantParams) (pubkit.Empty, error) {
	return pubkit.Empty{}, nil
}

// AuditParams narrows an audit to a channel or channel group and auth keys.
type AuditParams struct {
	Channel      string
	ChannelGroup string
	AuthKeys     []string
}

type auditQuery struct {
	Channel      string `schema:"channel,omitempty"`
	ChannelGroup string `schema:"channel-group,omitempty"`
	Auth         string `schema:"auth,omitempty"`
}

// AuditResponse is the permission report. Payload is the service's report
// object as returned.
type AuditResponse struct {
	Level        string          `json:"level"`
	SubscribeKey string          `json:"subscribeKey"`
	Payload      json.RawMessage `json:"payload"`
}

// Audit reports current permissions. Requests are signed with the secret key.
type Audit struct{ transaction }

var _ pubkit.Endpoint[AuditParams, AuditResponse] = Audit{}

func (Audit) Operation() pubkit.Operation { return pubkit.PNAccessManagerAudit }
func (Audit) AuthSupported() bool         { return false }

func (Audit) Validate(cfg *config.Config, _ AuditParams) string {
	return keys{subscribe: true, publish: true, secret: true}.missing(cfg)
}

func (Audit) URL(cfg *config.Config, _ AuditParams) string {
	return authPath + "audit/sub-key/" + cfg.SubscribeKey
}

func (Audit) PrepareParams(_ *config.Config, p AuditParams) url.Values {
	return encodeQuery(auditQuery{
		Channel:      p.Channel,
		ChannelGroup: p.ChannelGroup,
		Auth:         strings.Join(p.AuthKeys, ","),
	})
}

func (Audit) HandleResponse(_ *config.Config, payload []byte, _ AuditParams) (AuditResponse, error) {
	doc, err := parse(payload)
	if err != nil {
		return AuditResponse{}, err
	}
	report := doc.Get("payload")
	res := AuditResponse{
		Level:        report.Get("level").String(),
		SubscribeKey: report.Get("subscribe_key").String(),
	}
	if report.Exists() {
		res.Payload = json.RawMessage(report.Raw)
	}
	return res, nil
}
