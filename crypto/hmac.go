// Package crypto provides the request signer for access-manager calls.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// HMAC signs sign-input strings with a secret key.
type HMAC struct {
	secret []byte
}

// NewHMAC returns a signer keyed with secretKey.
func NewHMAC(secretKey string) *HMAC {
	return &HMAC{secret: []byte(secretKey)}
}

// HMACSHA256 returns the URL-safe base64 HMAC-SHA256 of input: standard
// base64 with '+' and '/' replaced by '-' and '_', padding kept.
func (h *HMAC) HMACSHA256(input string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(input))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return strings.NewReplacer("+", "-", "/", "_").Replace(sig)
}
