package endpoints

import (
	"net/url"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
	json "github.com/goccy/go-json"
)

const defaultHistoryCount = 100

// HistoryParams selects stored messages of one channel.
type HistoryParams struct {
	Channel string `label:"Channel" validate:"required"`
	// Count is the page size, 1 to 100. Zero means 100.
	Count int `label:"Count" validate:"gte=0,lte=100"`
	// Reverse returns the oldest messages first.
	Reverse bool
	Start   int64
	End     int64
	// IncludeTimetoken asks for each message's timetoken.
	IncludeTimetoken bool
}

type historyQuery struct {
	Count        int    `schema:"count"`
	Reverse      bool   `schema:"reverse,omitempty"`
	Start        string `schema:"start,omitempty"`
	End          string `schema:"end,omitempty"`
	IncludeToken bool   `schema:"include_token,omitempty"`
	StringToken  bool   `schema:"stringtoken"`
}

// HistoryItem is a stored message. Timetoken is zero unless requested.
type HistoryItem struct {
	Entry     json.RawMessage `json:"entry"`
	Timetoken int64           `json:"timetoken,omitempty"`
}

// HistoryResponse is one page of stored messages.
type HistoryResponse struct {
	Messages       []HistoryItem `json:"messages"`
	StartTimetoken int64         `json:"startTimeToken"`
	EndTimetoken   int64         `json:"endTimeToken"`
}

// History fetches stored messages of a channel.
type History struct{ transaction }

var _ pubkit.Endpoint[HistoryParams, HistoryResponse] = History{}

func (History) Operation() pubkit.Operation { return pubkit.PNHistoryOperation }

func (History) Validate(cfg *config.Config, p HistoryParams) string {
	return validate(cfg, p, keys{subscribe: true})
}

func (History) URL(cfg *config.Config, p HistoryParams) string {
	return "/v2/history/sub-key/" + cfg.SubscribeKey + "/channel/" + p.Channel
}

func (History) PrepareParams(_ *config.Config, p HistoryParams) url.Values {
	q := historyQuery{
		Count:        p.Count,
		Reverse:      p.Reverse,
		IncludeToken: p.IncludeTimetoken,
		StringToken:  true,
	}
	if q.Count == 0 {
		q.Count = defaultHistoryCount
	}
	if p.Start != 0 {
		q.Start = formatTimetoken(p.Start)
	}
	if p.End != 0 {
		q.End = formatTimetoken(p.End)
	}
	return encodeQuery(q)
}

// HandleResponse reads [[messages...], start, end]. With timetokens
// requested, each message is {"message": ..., "timetoken": ...}.
func (History) HandleResponse(_ *config.Config, payload []byte, p HistoryParams) (HistoryResponse, error) {
	doc, err := parse(payload)
	if err != nil {
		return HistoryResponse{}, err
	}

	res := HistoryResponse{
		Messages:       []HistoryItem{},
		StartTimetoken: doc.Get("1").Int(),
		EndTimetoken:   doc.Get("2").Int(),
	}
	for _, m := range doc.Get("0").Array() {
		if p.IncludeTimetoken && m.IsObject() && m.Get("message").Exists() {
			res.Messages = append(res.Messages, HistoryItem{
				Entry:     json.RawMessage(m.Get("message").Raw),
				Timetoken: m.Get("timetoken").Int(),
			})
			continue
		}
		res.Messages = append(res.Messages, HistoryItem{Entry: json.RawMessage(m.Raw)})
	}
	return res, nil
}
