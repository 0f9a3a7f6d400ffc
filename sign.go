package pubkit

import (
	"net/url"
	"strconv"
	"time"

	"github.com/broady/pubkit/config"
	"github.com/broady/pubkit/internal/pamenc"
)

// SignInput builds the string an access-manager request is signed over:
//
//	subscribeKey \n publishKey \n grant|audit \n sorted-encoded-params
func SignInput(cfg *config.Config, op Operation, params url.Values) string {
	return cfg.SubscribeKey + "\n" + cfg.PublishKey + "\n" + signTags[op] + "\n" + pamenc.Encode(params)
}

// sign stamps params with a timestamp and the resulting signature.
func sign(cfg *config.Config, signer Signer, now time.Time, op Operation, params url.Values) *Error {
	if signer == nil {
		return Errorf(CodeInternal, "%s requires a signer", op)
	}
	params.Set("timestamp", strconv.FormatInt(now.Unix(), 10))
	params.Set("signature", signer.HMACSHA256(SignInput(cfg, op, params)))
	return nil
}
