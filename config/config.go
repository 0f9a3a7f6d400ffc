// Package config holds the long-lived client settings read by every request.
//
// A Config is built once, validated, and then shared read-only between
// concurrent calls.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	DefaultOrigin             = "ps.pndsn.com"
	DefaultSDKFamily          = "PubNub-Go"
	DefaultSDKVersion         = "1.0.0"
	DefaultTransactionTimeout = 15 * time.Second
	DefaultSubscribeTimeout   = 310 * time.Second
	DefaultPresenceTimeout    = 300
)

var validate = validator.New()

// Config contains account credentials, identity and per-call settings.
type Config struct {
	SubscribeKey string
	PublishKey   string
	SecretKey    string
	AuthKey      string

	UUID       string `validate:"required"`
	InstanceID string

	Origin string `validate:"required"`
	Secure bool

	SDKFamily  string `validate:"required"`
	SDKVersion string `validate:"required"`
	PartnerID  string

	UseInstanceID bool
	UseRequestID  bool

	TransactionTimeout time.Duration `validate:"gt=0"`
	SubscribeTimeout   time.Duration `validate:"gt=0"`

	// PresenceTimeout is sent as the heartbeat value on subscribe.
	PresenceTimeout  int `validate:"gte=0"`
	FilterExpression string
}

// New returns a Config with defaults and a freshly generated UUID and
// instance id.
func New() *Config {
	return &Config{
		UUID:               "pn-" + uuid.NewString(),
		InstanceID:         uuid.NewString(),
		Origin:             DefaultOrigin,
		Secure:             true,
		SDKFamily:          DefaultSDKFamily,
		SDKVersion:         DefaultSDKVersion,
		TransactionTimeout: DefaultTransactionTimeout,
		SubscribeTimeout:   DefaultSubscribeTimeout,
		PresenceTimeout:    DefaultPresenceTimeout,
	}
}

// WithKeys sets the subscribe and publish keys and returns the config for chaining.
func (c *Config) WithKeys(subscribeKey, publishKey string) *Config {
	c.SubscribeKey = subscribeKey
	c.PublishKey = publishKey
	return c
}

// WithSecretKey sets the secret key used to sign access-management calls.
func (c *Config) WithSecretKey(secretKey string) *Config {
	c.SecretKey = secretKey
	return c
}

// WithAuthKey sets the auth key attached to calls that support it.
func (c *Config) WithAuthKey(authKey string) *Config {
	c.AuthKey = authKey
	return c
}

// WithUUID overrides the generated client UUID.
func (c *Config) WithUUID(id string) *Config {
	c.UUID = id
	return c
}

// BaseURL returns the scheme and origin requests are sent to.
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return scheme + "://" + c.Origin
}

// Validate checks the settings every request depends on. Per-operation
// requirements such as a publish key are checked by the operations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) {
			msgs := make([]string, 0, len(valErrs))
			for _, ve := range valErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s validation", ve.Field(), ve.Tag()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// FromEnv builds a Config from PUBKIT_* environment variables. Any files
// given are loaded with godotenv first; variables already set in the
// environment win.
func FromEnv(files ...string) (*Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, fmt.Errorf("config: load env: %w", err)
		}
	}

	c := New()
	c.SubscribeKey = os.Getenv("PUBKIT_SUBSCRIBE_KEY")
	c.PublishKey = os.Getenv("PUBKIT_PUBLISH_KEY")
	c.SecretKey = os.Getenv("PUBKIT_SECRET_KEY")
	c.AuthKey = os.Getenv("PUBKIT_AUTH_KEY")
	c.PartnerID = os.Getenv("PUBKIT_PARTNER_ID")
	c.FilterExpression = os.Getenv("PUBKIT_FILTER_EXPRESSION")
	if v := os.Getenv("PUBKIT_UUID"); v != "" {
		c.UUID = v
	}
	if v := os.Getenv("PUBKIT_ORIGIN"); v != "" {
		c.Origin = v
	}

	var err error
	if c.Secure, err = envBool("PUBKIT_SECURE", c.Secure); err != nil {
		return nil, err
	}
	if c.UseInstanceID, err = envBool("PUBKIT_USE_INSTANCE_ID", false); err != nil {
		return nil, err
	}
	if c.UseRequestID, err = envBool("PUBKIT_USE_REQUEST_ID", false); err != nil {
		return nil, err
	}
	if c.TransactionTimeout, err = envDuration("PUBKIT_TRANSACTION_TIMEOUT", c.TransactionTimeout); err != nil {
		return nil, err
	}
	if c.SubscribeTimeout, err = envDuration("PUBKIT_SUBSCRIBE_TIMEOUT", c.SubscribeTimeout); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
