// Package email talks to the outbound email provider (Resend) and builds the
// wedding's HTML email bodies.
package email

import (
	"context"
	"errors"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ErrThrottled reports a provider rate-limit rejection (HTTP 429). The
// broadcaster retries these once; everything else is a hard failure.
var ErrThrottled = errors.New("email: provider throttled")

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender sends email through the provider. Implementations must be safe for
// concurrent use.
type Sender interface {
	// Enabled reports whether the provider is configured. When false, Send
	// must not be called; callers treat sending as silently unavailable.
	Enabled() bool

	// Send delivers one message and returns the provider's message id.
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendSender sends through the Resend API. A missing API key or from
// address disables sending rather than erroring, matching the product
// behaviour of running without email in dev.
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	if apiKey == "" || from == "" {
		return &ResendSender{}
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

func (s *ResendSender) Enabled() bool { return s.client != nil }

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.client == nil {
		return "", errors.New("email: sender not configured")
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		if isThrottleErr(err) {
			return "", errors.Join(ErrThrottled, err)
		}
		return "", err
	}
	return sent.Id, nil
}

// isThrottleErr spots the provider's 429 responses. Resend surfaces the
// status inside the error message, so match on it.
func isThrottleErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "too many requests")
}
