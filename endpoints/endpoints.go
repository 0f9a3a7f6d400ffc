// Package endpoints defines one descriptor per service operation. Each
// descriptor is a stateless value implementing pubkit.Endpoint.
package endpoints

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	"github.com/gorilla/schema"
	"github.com/tidwall/gjson"
)

var schemaEncoder = schema.NewEncoder()

var errInvalidPayload = errors.New("payload is not valid JSON")

// Register adds every endpoint in this package to r.
func Register(r *pubkit.Registry) {
	pubkit.Register(r, Time{})
	pubkit.Register(r, Publish{})
	pubkit.Register(r, Subscribe{})
	pubkit.Register(r, Leave{})
	pubkit.Register(r, History{})
	pubkit.Register(r, AddChannelsToGroup{})
	pubkit.Register(r, RemoveChannelsFromGroup{})
	pubkit.Register(r, ChannelsForGroup{})
	pubkit.Register(r, ListGroups{})
	pubkit.Register(r, RemoveGroup{})
	pubkit.Register(r, Grant{})
	pubkit.Register(r, Audit{})
}

// transaction carries the defaults shared by short request/response calls.
type transaction struct{}

func (transaction) TakesParams() bool                        { return true }
func (transaction) AuthSupported() bool                      { return true }
func (transaction) Timeout(cfg *config.Config) time.Duration { return cfg.TransactionTimeout }

// keys lists the credentials an operation needs, checked in order.
type keys struct {
	subscribe, publish, secret bool
}

func (k keys) missing(cfg *config.Config) string {
	switch {
	case k.subscribe && cfg.SubscribeKey == "":
		return "Missing Subscribe Key"
	case k.publish && cfg.PublishKey == "":
		return "Missing Publish Key"
	case k.secret && cfg.SecretKey == "":
		return "Missing Secret Key"
	}
	return ""
}

// validate runs the struct checks on params first and the key checks second.
func validate(cfg *config.Config, params any, k keys) string {
	if msg := pubkit.ValidateParams(params); msg != "" {
		return msg
	}
	return k.missing(cfg)
}

// encodeQuery turns a schema-tagged struct into query values.
func encodeQuery(q any) url.Values {
	values := url.Values{}
	if err := schemaEncoder.Encode(q, values); err != nil {
		// Query structs only hold strings, ints and bools.
		panic("endpoints: encode query: " + err.Error())
	}
	return values
}

func parse(payload []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, errInvalidPayload
	}
	return gjson.ParseBytes(payload), nil
}

func strs(r gjson.Result) []string {
	arr := r.Array()
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.String())
	}
	return out
}

// joinOrComma joins names for a path segment; the service expects "," when
// the list is empty.
func joinOrComma(names []string) string {
	if len(names) == 0 {
		return ","
	}
	return strings.Join(names, ",")
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatTimetoken(tt int64) string {
	return strconv.FormatInt(tt, 10)
}
