package service

import (
	"errors"
	"fmt"
	"time"
)

// Failure kinds surfaced by the RSVP pipeline. Handlers map these to the
// wire-level error codes; auth failures are deliberately a single opaque
// condition so callers cannot distinguish bad signatures from expiry or
// malformed tokens.
var (
	ErrInvalidToken      = errors.New("service: invalid or expired token")
	ErrGuestNotFound     = errors.New("service: guest not found")
	ErrRSVPClosed        = errors.New("service: rsvp window closed")
	ErrInvalidAttendance = errors.New("service: attendance must be yes or no")
	ErrInvalidPax        = errors.New("service: seats attending out of range")
	ErrEmailRequired     = errors.New("service: a valid email is required")

	ErrMissingName = errors.New("service: guest name is required")
	ErrInvalidName = errors.New("service: guest name must not be empty")

	ErrInvalidAdminCode = errors.New("service: invalid admin code")
	ErrInvalidTOTP      = errors.New("service: invalid totp code")

	ErrBroadcastRunning          = errors.New("service: announcement already running")
	ErrBroadcastCooldown         = errors.New("service: announcement cooldown active")
	ErrTooManyRecipients         = errors.New("service: too many recipients")
	ErrMissingContent            = errors.New("service: subject and body required")
	ErrConfirmProductionRequired = errors.New("service: confirmProduction required for guests audience")
	ErrSenderDisabled            = errors.New("service: email provider not configured")
)

// RateLimitedError is a retryable rejection from the verify endpoint's
// ip+token limiter.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("service: rate limited, retry after %s", e.RetryAfter)
}
