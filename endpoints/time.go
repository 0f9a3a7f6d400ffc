package endpoints

import (
	"errors"
	"net/url"

	"github.com/broady/pubkit"
	"github.com/broady/pubkit/config"
)

// TimeResponse carries the service clock as a timetoken (1e-7 s units).
type TimeResponse struct {
	Timetoken int64 `json:"timetoken"`
}

// Time fetches the current service time. It takes no parameters and needs
// no keys.
type Time struct{ transaction }

var _ pubkit.Endpoint[pubkit.Empty, TimeResponse] = Time{}

func (Time) Operation() pubkit.Operation { return pubkit.PNTimeOperation }
func (Time) TakesParams() bool           { return false }
func (Time) AuthSupported() bool         { return false }

func (Time) Validate(*config.Config, pubkit.Empty) string { return "" }

func (Time) URL(*config.Config, pubkit.Empty) string { return "/time/0" }

func (Time) PrepareParams(*config.Config, pubkit.Empty) url.Values {
	return url.Values{}
}

func (Time) HandleResponse(_ *config.Config, payload []byte, _ pubkit.Empty) (TimeResponse, error) {
	doc, err := parse(payload)
	if err != nil {
		return TimeResponse{}, err
	}
	tt := doc.Get("0")
	if !tt.Exists() {
		return TimeResponse{}, errors.New("time payload has no timetoken")
	}
	return TimeResponse{Timetoken: tt.Int()}, nil
}
