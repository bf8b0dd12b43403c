// Package guesttoken implements the signed capability tokens that stand in
// for guest authentication on the RSVP pages.
//
// A token is two base64url segments joined by a dot: the JSON payload and an
// HMAC-SHA256 over the encoded payload. Possession of a valid, unexpired
// token is the only authorization proof for reading or writing that guest's
// RSVP; there is no session store and no revocation list. Tokens carry only
// the stable guest id and an optional expiry, never mutable state, so a link
// stays valid across repeated verifies without re-issuance.
package guesttoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for every verification failure: bad
	// format, bad signature or expired. Callers must not be able to tell
	// these apart.
	ErrInvalidToken = errors.New("guesttoken: invalid or expired token")

	// ErrMissingSecret reports a missing signing secret. This is a startup
	// configuration error, never a per-request condition.
	ErrMissingSecret = errors.New("guesttoken: signing secret is not set")
)

// Payload is the signed token body.
type Payload struct {
	GuestID string `json:"guestId"`
	// Exp is an optional expiry as Unix milliseconds. Zero means the token
	// never expires.
	Exp int64 `json:"exp,omitempty"`
}

// Codec signs and verifies guest tokens with a server-held secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec returns a Codec using the given signing secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// Sign serializes the payload and returns "body.signature".
func (c *Codec) Sign(p Payload) (string, error) {
	if p.GuestID == "" {
		return "", errors.New("guesttoken: guest id is required")
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + c.mac(body), nil
}

// Verify checks the signature and expiry and returns the payload. All
// failures collapse to ErrInvalidToken.
func (c *Codec) Verify(token string) (Payload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Payload{}, ErrInvalidToken
	}
	body, sig := parts[0], parts[1]

	expected := c.mac(body)

	// Constant-time compare over same-length strings. A plain == would
	// leak how many leading bytes of the signature matched.
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return Payload{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Payload{}, ErrInvalidToken
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrInvalidToken
	}
	if p.GuestID == "" {
		return Payload{}, ErrInvalidToken
	}

	if p.Exp != 0 && c.now().UnixMilli() > p.Exp {
		return Payload{}, ErrInvalidToken
	}

	return p, nil
}

func (c *Codec) mac(body string) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
