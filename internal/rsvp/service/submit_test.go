package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/pkg/guesttoken"
	"github.com/stretchr/testify/require"
)

func newSubmitService(t *testing.T) (*SubmitService, *guesttoken.Codec, *fakeSender) {
	t.Helper()

	st := newTestStore(t)
	codec := newTestCodec(t)
	sender := &fakeSender{}

	return &SubmitService{
		Store:         st,
		Codec:         codec,
		Sender:        sender,
		PublicBaseURL: "https://wedding.example.com",
	}, codec, sender
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("first submission persists and confirms", func(t *testing.T) {
		svc, codec, sender := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		res, err := svc.Submit(ctx, SubmitRequest{
			Token:             token,
			Attendance:        domain.AttendanceYes,
			PaxAttending:      ptr(2.0),
			Message:           "can't wait!",
			Email:             "Ada@Example.com",
			AnnouncementOptIn: ptr(true),
		})
		require.NoError(t, err)
		require.True(t, res.EmailSent)
		require.NotEmpty(t, res.EmailID)

		rsvp, err := svc.Store.RSVPs().GetRSVPByGuestID(ctx, guest.ID)
		require.NoError(t, err)
		require.Equal(t, domain.AttendanceYes, rsvp.Attendance)
		require.Equal(t, 2, rsvp.PaxAttending)
		require.Equal(t, "can't wait!", rsvp.Message)
		require.Equal(t, "ada@example.com", rsvp.Email)
		require.True(t, rsvp.ConfirmationSent())

		stored, err := svc.Store.Guests().GetGuestByID(ctx, guest.ID)
		require.NoError(t, err)
		require.True(t, stored.RSVPSubmitted)
		require.Equal(t, "ada@example.com", stored.Email)
		require.NotNil(t, stored.AnnouncementOptIn)
		require.True(t, *stored.AnnouncementOptIn)

		require.Len(t, sender.sent, 1)
		require.Equal(t, "ada@example.com", sender.sent[0].To)
		require.Contains(t, sender.sent[0].HTML, token)
	})

	t.Run("rejects an invalid token", func(t *testing.T) {
		svc, _, _ := newSubmitService(t)

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:      "not-a-token",
			Attendance: domain.AttendanceYes,
		})
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects an unknown attendance value", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:        signToken(t, codec, guest.ID),
			Attendance:   "maybe",
			PaxAttending: ptr(1.0),
		})
		require.ErrorIs(t, err, ErrInvalidAttendance)
	})

	t.Run("rejects seat counts outside the allowance", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 2)
		token := signToken(t, codec, guest.ID)

		for name, pax := range map[string]*float64{
			"missing":      nil,
			"zero":         ptr(0.0),
			"negative":     ptr(-1.0),
			"fractional":   ptr(1.5),
			"over alloted": ptr(3.0),
		} {
			t.Run(name, func(t *testing.T) {
				_, err := svc.Submit(ctx, SubmitRequest{
					Token:        token,
					Attendance:   domain.AttendanceYes,
					PaxAttending: pax,
					Email:        "ada@example.com",
				})
				require.ErrorIs(t, err, ErrInvalidPax)
			})
		}

		// Nothing was written along the way.
		_, err := svc.Store.RSVPs().GetRSVPByGuestID(ctx, guest.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		stored, err := svc.Store.Guests().GetGuestByID(ctx, guest.ID)
		require.NoError(t, err)
		require.False(t, stored.RSVPSubmitted)
		require.Empty(t, stored.Email)
	})

	t.Run("declining forces the seat count to zero", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:        signToken(t, codec, guest.ID),
			Attendance:   domain.AttendanceNo,
			PaxAttending: ptr(3.0),
			Email:        "ada@example.com",
		})
		require.NoError(t, err)

		rsvp, err := svc.Store.RSVPs().GetRSVPByGuestID(ctx, guest.ID)
		require.NoError(t, err)
		require.Equal(t, domain.AttendanceNo, rsvp.Attendance)
		require.Zero(t, rsvp.PaxAttending)
	})

	t.Run("requires a valid email on the first submission", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		for name, addr := range map[string]string{
			"missing":   "",
			"no at":     "ada.example.com",
			"no domain": "ada@",
			"spaces":    "ada lovelace@example.com",
		} {
			t.Run(name, func(t *testing.T) {
				_, err := svc.Submit(ctx, SubmitRequest{
					Token:        token,
					Attendance:   domain.AttendanceYes,
					PaxAttending: ptr(1.0),
					Email:        addr,
				})
				require.ErrorIs(t, err, ErrEmailRequired)
			})
		}
	})

	t.Run("stored email wins over a resubmitted one", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:        token,
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(1.0),
			Email:        "ada@example.com",
		})
		require.NoError(t, err)

		_, err = svc.Submit(ctx, SubmitRequest{
			Token:        token,
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(2.0),
			Email:        "attacker@example.com",
		})
		require.NoError(t, err)

		rsvp, err := svc.Store.RSVPs().GetRSVPByGuestID(ctx, guest.ID)
		require.NoError(t, err)
		require.Equal(t, "ada@example.com", rsvp.Email)

		stored, err := svc.Store.Guests().GetGuestByID(ctx, guest.ID)
		require.NoError(t, err)
		require.Equal(t, "ada@example.com", stored.Email)
	})

	t.Run("resubmission keeps the first submission timestamp", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		svc.Now = func() time.Time { return first }

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:        token,
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(2.0),
			Email:        "ada@example.com",
		})
		require.NoError(t, err)

		second := first.Add(48 * time.Hour)
		svc.Now = func() time.Time { return second }

		_, err = svc.Submit(ctx, SubmitRequest{
			Token:        token,
			Attendance:   domain.AttendanceNo,
			PaxAttending: ptr(0.0),
		})
		require.NoError(t, err)

		rsvp, err := svc.Store.RSVPs().GetRSVPByGuestID(ctx, guest.ID)
		require.NoError(t, err)
		require.Equal(t, first.Unix(), rsvp.SubmittedAt.Unix())
		require.Equal(t, second.Unix(), rsvp.UpdatedAt.Unix())
		require.Equal(t, domain.AttendanceNo, rsvp.Attendance)
	})

	t.Run("confirmation email goes out at most once", func(t *testing.T) {
		svc, codec, sender := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:        token,
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(1.0),
			Email:        "ada@example.com",
		})
		require.NoError(t, err)

		res, err := svc.Submit(ctx, SubmitRequest{
			Token:        token,
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(2.0),
		})
		require.NoError(t, err)
		require.False(t, res.EmailSent)
		require.Len(t, sender.sent, 1)
	})

	t.Run("a failed confirmation email never fails the submission", func(t *testing.T) {
		svc, codec, sender := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		sender.errs = []error{errors.New("provider down")}

		res, err := svc.Submit(ctx, SubmitRequest{
			Token:        signToken(t, codec, guest.ID),
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(1.0),
			Email:        "ada@example.com",
		})
		require.NoError(t, err)
		require.False(t, res.EmailSent)

		rsvp, err := svc.Store.RSVPs().GetRSVPByGuestID(ctx, guest.ID)
		require.NoError(t, err)
		require.False(t, rsvp.ConfirmationSent())
	})

	t.Run("a nil opt-in preserves the stored flag", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)
		token := signToken(t, codec, guest.ID)

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:             token,
			Attendance:        domain.AttendanceYes,
			PaxAttending:      ptr(1.0),
			Email:             "ada@example.com",
			AnnouncementOptIn: ptr(true),
		})
		require.NoError(t, err)

		_, err = svc.Submit(ctx, SubmitRequest{
			Token:        token,
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(2.0),
		})
		require.NoError(t, err)

		rsvp, err := svc.Store.RSVPs().GetRSVPByGuestID(ctx, guest.ID)
		require.NoError(t, err)
		require.NotNil(t, rsvp.AnnouncementOptIn)
		require.True(t, *rsvp.AnnouncementOptIn)
	})

	t.Run("closes after the deadline", func(t *testing.T) {
		svc, codec, _ := newSubmitService(t)
		guest := seedGuest(t, svc.Store, "Ada Lovelace", 3)

		past := time.Now().Add(-time.Hour)
		svc.Deadline = &past

		_, err := svc.Submit(ctx, SubmitRequest{
			Token:        signToken(t, codec, guest.ID),
			Attendance:   domain.AttendanceYes,
			PaxAttending: ptr(1.0),
			Email:        "ada@example.com",
		})
		require.ErrorIs(t, err, ErrRSVPClosed)
	})
}
