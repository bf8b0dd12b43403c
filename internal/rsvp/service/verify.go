package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/pkg/guesttoken"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

// GuestView is the guest portion of the verify projection, used by the RSVP
// page to render the greeting and seat picker.
type GuestView struct {
	GuestID           string `json:"guestId"`
	FullName          string `json:"fullName"`
	PaxAllowed        int    `json:"paxAllowed"`
	Role              string `json:"role"`
	Relation          string `json:"relation"`
	RSVPSubmitted     bool   `json:"rsvpSubmitted"`
	Email             string `json:"email,omitempty"`
	AnnouncementOptIn *bool  `json:"announcementOptIn,omitempty"`
}

// RSVPView is the prefill portion of the projection. Nil when the guest has
// not submitted yet.
type RSVPView struct {
	Attendance        string `json:"attendance"`
	PaxAttending      int    `json:"paxAttending"`
	Message           string `json:"message"`
	AnnouncementOptIn *bool  `json:"announcementOptIn,omitempty"`
	SubmittedAt       string `json:"submittedAt"`
	UpdatedAt         string `json:"updatedAt"`
}

// Projection is the read view returned by Verify.
type Projection struct {
	Guest       GuestView `json:"guest"`
	RSVP        *RSVPView `json:"rsvp,omitempty"`
	DeadlineISO *string   `json:"deadlineIso"`
}

// VerifyService validates a capability token and composes the read view for
// form prefill. Read-only and safely retryable.
type VerifyService struct {
	Store    store.Store
	Codec    *guesttoken.Codec
	Deadline *time.Time // nil means submissions never close

	limiter *httpx.KeyedLimiter
	cache   *expirable.LRU[string, Projection]
}

// NewVerifyService wires the ip+token rate limiter and the short-TTL
// response cache. The cache shields the store from repeated polling of the
// same still-valid link; both are in-memory and reset on restart, which only
// weakens throttling, not correctness.
func NewVerifyService(
	st store.Store,
	codec *guesttoken.Codec,
	deadline *time.Time,
	limit httpx.RateLimitConfig,
	cacheSize int,
	cacheTTL time.Duration,
) *VerifyService {
	return &VerifyService{
		Store:    st,
		Codec:    codec,
		Deadline: deadline,
		limiter:  httpx.NewKeyedLimiter(limit),
		cache:    expirable.NewLRU[string, Projection](cacheSize, nil, cacheTTL),
	}
}

// Verify runs the read pipeline: rate limit by clientIP+token, response
// cache, token verification, guest and RSVP loads, projection.
func (s *VerifyService) Verify(ctx context.Context, clientIP, token string) (Projection, error) {
	log := slogx.FromContext(ctx)

	// 1. Fixed-window rate limit keyed by client address + token.
	if ok, retryAfter := s.limiter.Allow(clientIP + ":" + token); !ok {
		log.Warn("verify rate limited", slog.String("client_ip", clientIP))
		return Projection{}, &RateLimitedError{RetryAfter: retryAfter}
	}

	// 2. Response cache keyed by the raw token.
	if proj, ok := s.cache.Get(token); ok {
		return proj, nil
	}

	// 3. Token verification. Invalid and expired are the same opaque
	// failure; whether the guest exists is not revealed here.
	payload, err := s.Codec.Verify(token)
	if err != nil {
		return Projection{}, ErrInvalidToken
	}

	// 4. Guest load. A valid signature for an unknown guest means the
	// record was deleted; that is a distinct not-found condition.
	guest, err := s.Store.Guests().GetGuestByID(ctx, payload.GuestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Projection{}, ErrGuestNotFound
		}
		log.Error("verify: guest load failed", slog.Any("error", err))
		return Projection{}, err
	}

	// 5. RSVP load; absent before first submission.
	var rsvpView *RSVPView
	rsvp, err := s.Store.RSVPs().GetRSVPByGuestID(ctx, payload.GuestID)
	switch {
	case err == nil:
		rsvpView = newRSVPView(rsvp)
	case errors.Is(err, store.ErrNotFound):
		// no submission yet, prefill stays empty
	default:
		log.Error("verify: rsvp load failed", slog.Any("error", err))
		return Projection{}, err
	}

	proj := Projection{
		Guest: GuestView{
			GuestID:           guest.ID,
			FullName:          guest.FullName,
			PaxAllowed:        guest.SeatsAllowed(),
			Role:              guest.Role,
			Relation:          guest.Relation,
			RSVPSubmitted:     guest.RSVPSubmitted,
			Email:             guest.Email,
			AnnouncementOptIn: guest.AnnouncementOptIn,
		},
		RSVP:        rsvpView,
		DeadlineISO: deadlineISO(s.Deadline),
	}

	// 6. Cache the composed projection under the same TTL.
	s.cache.Add(token, proj)

	return proj, nil
}

func newRSVPView(r domain.RSVP) *RSVPView {
	return &RSVPView{
		Attendance:        r.Attendance,
		PaxAttending:      r.PaxAttending,
		Message:           r.Message,
		AnnouncementOptIn: r.AnnouncementOptIn,
		SubmittedAt:       r.SubmittedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func deadlineISO(deadline *time.Time) *string {
	if deadline == nil {
		return nil
	}
	iso := deadline.UTC().Format(time.RFC3339)
	return &iso
}
