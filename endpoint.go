package pubkit

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/broady/pubkit/config"
	"github.com/go-playground/validator/v10"
)

// Endpoint describes one API operation: how to validate its parameters,
// where to send it and how to shape what comes back. Implementations are
// stateless and safe for concurrent use.
type Endpoint[P any, R any] interface {
	Operation() Operation

	// TakesParams reports whether callers supply a parameter value.
	// Endpoints that return false receive the zero value of P.
	TakesParams() bool

	// Validate returns "" when params are acceptable, otherwise a message
	// naming the first missing or invalid field.
	Validate(cfg *config.Config, params P) string

	URL(cfg *config.Config, params P) string
	Timeout(cfg *config.Config) time.Duration
	AuthSupported() bool

	// PrepareParams returns the operation-specific query fields.
	PrepareParams(cfg *config.Config, params P) url.Values

	// HandleResponse shapes a successful payload for the callback.
	HandleResponse(cfg *config.Config, payload []byte, params P) (R, error)
}

// PostEndpoint is implemented by endpoints that can send their data in a
// request body instead of the URL.
type PostEndpoint[P any] interface {
	UsePost(cfg *config.Config, params P) bool
	PostURL(cfg *config.Config, params P) string
	PostPayload(cfg *config.Config, params P) ([]byte, error)
}

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return strings.ToLower(fld.Name[:1]) + fld.Name[1:]
	})
}

// ValidateParams checks params against its validate tags and returns the
// message for the first failing field, in field declaration order.
// Fields are named by their label tag:
//
//	type Params struct {
//	    ChannelGroup string   `label:"Channel Group" validate:"required"`
//	    Channels     []string `label:"Channels" validate:"min=1"`
//	}
func ValidateParams(params any) string {
	err := validate.Struct(params)
	if err == nil {
		return ""
	}
	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) && len(valErrs) > 0 {
		return formatValidationError(valErrs[0])
	}
	return err.Error()
}
