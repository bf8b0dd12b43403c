package service

import (
	"context"
	"testing"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/pkg/guesttoken"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func newVerifyService(t *testing.T, deadline *time.Time, limit httpx.RateLimitConfig) (*VerifyService, *guesttoken.Codec) {
	t.Helper()

	st := newTestStore(t)
	codec := newTestCodec(t)
	return NewVerifyService(st, codec, deadline, limit, 64, time.Minute), codec
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	wide := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}

	t.Run("returns guest projection before first submission", func(t *testing.T) {
		svc, codec := newVerifyService(t, nil, wide)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		proj, err := svc.Verify(ctx, "1.2.3.4", token)
		require.NoError(t, err)
		require.Equal(t, guest.ID, proj.Guest.GuestID)
		require.Equal(t, "Ada Lovelace", proj.Guest.FullName)
		require.Equal(t, 3, proj.Guest.PaxAllowed)
		require.False(t, proj.Guest.RSVPSubmitted)
		require.Nil(t, proj.RSVP)
		require.Nil(t, proj.DeadlineISO)
	})

	t.Run("includes prefill after a submission", func(t *testing.T) {
		svc, codec := newVerifyService(t, nil, wide)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		now := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, svc.Store.RSVPs().UpsertResponse(ctx, domain.RSVP{
			GuestID:      guest.ID,
			Attendance:   domain.AttendanceYes,
			PaxAttending: 2,
			Message:      "see you there",
			Email:        "ada@example.com",
			SubmittedAt:  now,
			UpdatedAt:    now,
		}))
		require.NoError(t, svc.Store.Guests().MarkGuestSubmitted(ctx, guest.ID, 2, domain.AttendanceYes, now))

		proj, err := svc.Verify(ctx, "1.2.3.4", token)
		require.NoError(t, err)
		require.True(t, proj.Guest.RSVPSubmitted)
		require.NotNil(t, proj.RSVP)
		require.Equal(t, domain.AttendanceYes, proj.RSVP.Attendance)
		require.Equal(t, 2, proj.RSVP.PaxAttending)
		require.Equal(t, "see you there", proj.RSVP.Message)
	})

	t.Run("rejects a tampered token", func(t *testing.T) {
		svc, codec := newVerifyService(t, nil, wide)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		_, err := svc.Verify(ctx, "1.2.3.4", token+"x")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		svc, codec := newVerifyService(t, nil, wide)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)

		token, err := codec.Sign(guesttoken.Payload{
			GuestID: guest.ID,
			Exp:     time.Now().Add(-time.Hour).UnixMilli(),
		})
		require.NoError(t, err)

		_, err = svc.Verify(ctx, "1.2.3.4", token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("distinguishes a deleted guest from a bad token", func(t *testing.T) {
		svc, codec := newVerifyService(t, nil, wide)
		token := signToken(t, codec, "no-such-guest")

		_, err := svc.Verify(ctx, "1.2.3.4", token)
		require.ErrorIs(t, err, ErrGuestNotFound)
	})

	t.Run("serves repeated verifies from the response cache", func(t *testing.T) {
		svc, codec := newVerifyService(t, nil, wide)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		_, err := svc.Verify(ctx, "1.2.3.4", token)
		require.NoError(t, err)

		// A deleted guest still verifies while the cached projection lives.
		require.NoError(t, svc.Store.Guests().DeleteGuest(ctx, guest.ID))

		proj, err := svc.Verify(ctx, "1.2.3.4", token)
		require.NoError(t, err)
		require.Equal(t, guest.ID, proj.Guest.GuestID)
	})

	t.Run("rate limits per client and token", func(t *testing.T) {
		svc, codec := newVerifyService(t, nil, httpx.RateLimitConfig{
			RequestsPerWindow: 2,
			Window:            time.Minute,
			Burst:             2,
		})
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		for range 2 {
			_, err := svc.Verify(ctx, "1.2.3.4", token)
			require.NoError(t, err)
		}

		_, err := svc.Verify(ctx, "1.2.3.4", token)
		var rle *RateLimitedError
		require.ErrorAs(t, err, &rle)
		require.GreaterOrEqual(t, rle.RetryAfter, time.Second)

		// Another client is unaffected.
		_, err = svc.Verify(ctx, "5.6.7.8", token)
		require.NoError(t, err)
	})

	t.Run("remains readable after the submission deadline", func(t *testing.T) {
		past := time.Now().Add(-24 * time.Hour).UTC()
		svc, codec := newVerifyService(t, &past, wide)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		proj, err := svc.Verify(ctx, "1.2.3.4", token)
		require.NoError(t, err)
		require.NotNil(t, proj.DeadlineISO)
		require.Equal(t, past.Format(time.RFC3339), *proj.DeadlineISO)
	})
}
