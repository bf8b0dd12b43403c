package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/internal/rsvp/email"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/stretchr/testify/require"
)

func newAnnounceService(t *testing.T) (*AnnounceService, *fakeSender) {
	t.Helper()

	sender := &fakeSender{}
	return &AnnounceService{
		Store:         newTestStore(t),
		Sender:        sender,
		MaxRecipients: 10,
		Sleep:         func(context.Context, time.Duration) {},
	}, sender
}

// seedRespondent creates a guest who has submitted an RSVP with the given
// email, making them a broadcast candidate.
func seedRespondent(t *testing.T, st store.Store, name, addr string, optIn *bool) domain.Guest {
	t.Helper()

	ctx := context.Background()
	guest := seedGuest(t, st, name, 2)
	now := time.Now().UTC()

	require.NoError(t, st.Guests().SetGuestEmail(ctx, guest.ID, addr, optIn, now))
	require.NoError(t, st.RSVPs().UpsertResponse(ctx, domain.RSVP{
		GuestID:           guest.ID,
		Attendance:        domain.AttendanceYes,
		PaxAttending:      1,
		Email:             addr,
		AnnouncementOptIn: optIn,
		SubmittedAt:       now,
		UpdatedAt:         now,
	}))
	return guest
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("dry run counts recipients without sending", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		seedRespondent(t, svc.Store, "Grace Hopper", "grace@example.com", ptr(true))
		sender.disabled = true

		res, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject: "Save the date",
			Body:    "Details inside.",
			DryRun:  true,
		})
		require.NoError(t, err)
		require.True(t, res.DryRun)
		require.Equal(t, 2, res.Total)
		require.Zero(t, sender.calls)
	})

	t.Run("rejects empty subject or body", func(t *testing.T) {
		svc, _ := newAnnounceService(t)

		_, err := svc.Broadcast(ctx, AnnounceRequest{Subject: "  ", Body: "hi"})
		require.ErrorIs(t, err, ErrMissingContent)

		_, err = svc.Broadcast(ctx, AnnounceRequest{Subject: "hi", Body: ""})
		require.ErrorIs(t, err, ErrMissingContent)
	})

	t.Run("live audience requires explicit confirmation", func(t *testing.T) {
		svc, _ := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))

		_, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject: "Save the date",
			Body:    "Details inside.",
		})
		require.ErrorIs(t, err, ErrConfirmProductionRequired)
	})

	t.Run("sends to the live audience when confirmed", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		seedRespondent(t, svc.Store, "Grace Hopper", "grace@example.com", ptr(true))

		res, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Save the date",
			Body:              "Details inside.",
			ConfirmProduction: true,
		})
		require.NoError(t, err)
		require.Equal(t, 2, res.Sent)
		require.Zero(t, res.Failed)
		require.ElementsMatch(t, []string{"ada@example.com", "grace@example.com"}, sender.sentTo())
	})

	t.Run("backup audience is the safe test target", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		require.NoError(t, svc.Store.Guests().SnapshotBackup(ctx, time.Now().UTC()))

		res, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:  "Test run",
			Body:     "Does this render?",
			Audience: AudienceBackup,
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Sent)
		require.Equal(t, AudienceBackup, res.Audience)
		require.Len(t, sender.sent, 1)
	})

	t.Run("opt-in filter drops guests who declined announcements", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		seedRespondent(t, svc.Store, "Grace Hopper", "grace@example.com", ptr(false))

		res, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Save the date",
			Body:              "Details inside.",
			OptInOnly:         true,
			ConfirmProduction: true,
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Sent)
		require.Equal(t, []string{"ada@example.com"}, sender.sentTo())
	})

	t.Run("personalizes subject and body per recipient", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))

		_, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Hello #fullname",
			Body:              "You have #paxallowed seats.",
			ConfirmProduction: true,
		})
		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		require.Equal(t, "Hello Ada Lovelace", sender.sent[0].Subject)
		require.Contains(t, sender.sent[0].HTML, "You have 2 seats.")
	})

	t.Run("enforces the recipient cap", func(t *testing.T) {
		svc, _ := newAnnounceService(t)
		svc.MaxRecipients = 1
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		seedRespondent(t, svc.Store, "Grace Hopper", "grace@example.com", ptr(true))

		_, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Save the date",
			Body:              "Details inside.",
			ConfirmProduction: true,
		})
		require.ErrorIs(t, err, ErrTooManyRecipients)
	})

	t.Run("retries once after a provider throttle", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		sender.errs = []error{email.ErrThrottled}

		res, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Save the date",
			Body:              "Details inside.",
			ConfirmProduction: true,
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Sent)
		require.Equal(t, 2, sender.calls)
	})

	t.Run("a hard failure skips the recipient and continues", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		seedRespondent(t, svc.Store, "Grace Hopper", "grace@example.com", ptr(true))
		sender.errs = []error{errors.New("mailbox full")}

		res, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Save the date",
			Body:              "Details inside.",
			ConfirmProduction: true,
		})
		require.NoError(t, err)
		require.Equal(t, 1, res.Sent)
		require.Equal(t, 1, res.Failed)
		require.Equal(t, 2, res.Total)
	})

	t.Run("cooldown blocks back-to-back broadcasts", func(t *testing.T) {
		svc, _ := newAnnounceService(t)
		svc.Cooldown = time.Hour
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))

		base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		svc.Now = func() time.Time { return base }

		_, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Save the date",
			Body:              "Details inside.",
			ConfirmProduction: true,
		})
		require.NoError(t, err)

		_, err = svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Again",
			Body:              "Oops.",
			ConfirmProduction: true,
		})
		require.ErrorIs(t, err, ErrBroadcastCooldown)
	})

	t.Run("non dry run with a disabled sender fails", func(t *testing.T) {
		svc, sender := newAnnounceService(t)
		seedRespondent(t, svc.Store, "Ada Lovelace", "ada@example.com", ptr(true))
		sender.disabled = true

		_, err := svc.Broadcast(ctx, AnnounceRequest{
			Subject:           "Save the date",
			Body:              "Details inside.",
			ConfirmProduction: true,
		})
		require.ErrorIs(t, err, ErrSenderDisabled)
	})
}
