package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/internal/rsvp/email"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/pkg/guesttoken"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

// Same shape the RSVP form enforces client-side; the server re-checks
// because the client is untrusted.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SubmitRequest carries a guest's submission. PaxAttending is a pointer to
// the raw JSON number so "absent" and "not an integer" can be told apart
// from zero.
type SubmitRequest struct {
	Token             string
	Attendance        string
	PaxAttending      *float64
	Message           string
	Email             string
	AnnouncementOptIn *bool
}

// SubmitResult reports a committed submission and whether a confirmation
// email went out as part of it.
type SubmitResult struct {
	EmailSent bool
	EmailID   string
}

// SubmitService executes the atomic submission transaction: attendance and
// capacity validation, first-time email capture, set-once submission
// timestamp, denormalized guest mirror fields, and the at-most-once
// confirmation email afterwards.
type SubmitService struct {
	Store         store.Store
	Codec         *guesttoken.Codec
	Sender        email.Sender
	Deadline      *time.Time // nil means submissions never close
	PublicBaseURL string     // empty disables confirmation links

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

func (s *SubmitService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Submit validates and commits one RSVP submission.
//
// Every validation failure happens before any write and aborts cleanly; the
// confirmation email runs after commit, is attempted at most once per guest,
// and can never fail the submission.
func (s *SubmitService) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	log := slogx.FromContext(ctx)
	now := s.now()

	// Cheap rejects before touching the store.
	if s.Deadline != nil && now.After(*s.Deadline) {
		return SubmitResult{}, ErrRSVPClosed
	}

	payload, err := s.Codec.Verify(req.Token)
	if err != nil {
		return SubmitResult{}, ErrInvalidToken
	}

	if req.Attendance != domain.AttendanceYes && req.Attendance != domain.AttendanceNo {
		return SubmitResult{}, ErrInvalidAttendance
	}

	submittedEmail := strings.ToLower(strings.TrimSpace(req.Email))
	message := strings.TrimSpace(req.Message)

	var (
		guestName   string
		finalEmail  string
		alreadySent bool
	)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		guest, err := tx.Guests().GetGuestByID(ctx, payload.GuestID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrGuestNotFound
			}
			return fmt.Errorf("load guest: %w", err)
		}

		guestName = guest.FullName
		seatsAllowed := guest.SeatsAllowed()

		// Seat count: hard server-side rejection, never clamping.
		paxAttending := 0
		if req.Attendance == domain.AttendanceYes {
			if req.PaxAttending == nil {
				return ErrInvalidPax
			}
			pax := *req.PaxAttending
			if math.IsNaN(pax) || math.IsInf(pax, 0) || pax != math.Trunc(pax) {
				return ErrInvalidPax
			}
			n := int(pax)
			if n < 1 || n > seatsAllowed {
				return ErrInvalidPax
			}
			paxAttending = n
		}

		// Email resolution: a stored email is authoritative and a
		// submitted one is silently ignored; the first submission must
		// supply a syntactically valid address.
		finalEmail = guest.Email
		capturedEmail := false
		if finalEmail == "" {
			if submittedEmail == "" || !emailPattern.MatchString(submittedEmail) {
				return ErrEmailRequired
			}
			finalEmail = submittedEmail
			capturedEmail = true
		}

		existing, err := tx.RSVPs().GetRSVPByGuestID(ctx, payload.GuestID)
		switch {
		case err == nil:
			alreadySent = existing.ConfirmationSent()
		case errors.Is(err, store.ErrNotFound):
			// first submission
		default:
			return fmt.Errorf("load rsvp: %w", err)
		}

		if capturedEmail {
			if err := tx.Guests().SetGuestEmail(ctx, guest.ID, finalEmail, req.AnnouncementOptIn, now); err != nil {
				return fmt.Errorf("capture email: %w", err)
			}
		} else if req.AnnouncementOptIn != nil {
			if err := tx.Guests().SetGuestAnnouncementOptIn(ctx, guest.ID, *req.AnnouncementOptIn, now); err != nil {
				return fmt.Errorf("update opt-in: %w", err)
			}
		}

		// submitted_at only lands on the insert; later edits keep the
		// original first-submission timestamp.
		if err := tx.RSVPs().UpsertResponse(ctx, domain.RSVP{
			GuestID:           guest.ID,
			Attendance:        req.Attendance,
			PaxAttending:      paxAttending,
			Message:           message,
			Email:             finalEmail,
			AnnouncementOptIn: req.AnnouncementOptIn,
			SubmittedAt:       now,
			UpdatedAt:         now,
		}); err != nil {
			return fmt.Errorf("write rsvp: %w", err)
		}

		if err := tx.Guests().MarkGuestSubmitted(ctx, guest.ID, paxAttending, req.Attendance, now); err != nil {
			return fmt.Errorf("mark guest submitted: %w", err)
		}

		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}

	log.Info("rsvp submitted",
		slog.String("guest_id", payload.GuestID),
		slog.String("attendance", req.Attendance),
	)

	// Post-commit, best-effort: the RSVP write is the durable source of
	// truth, so a failed confirmation email never rolls it back or fails
	// the response.
	result := SubmitResult{}
	if !alreadySent && s.Sender.Enabled() && s.PublicBaseURL != "" && finalEmail != "" {
		updateURL := strings.TrimRight(s.PublicBaseURL, "/") + "/rsvp/" + url.PathEscape(req.Token)

		id, err := s.Sender.Send(ctx, email.Message{
			To:      finalEmail,
			Subject: "We're So Excited to Celebrate With You",
			HTML:    email.ConfirmationHTML(guestName, updateURL),
		})
		if err != nil {
			log.Warn("confirmation email failed",
				slog.String("guest_id", payload.GuestID),
				slog.Any("error", err),
			)
			return result, nil
		}

		result.EmailSent = true
		result.EmailID = id

		if err := s.Store.RSVPs().MarkConfirmationSent(ctx, payload.GuestID, id, s.now()); err != nil {
			log.Error("failed to record confirmation email",
				slog.String("guest_id", payload.GuestID),
				slog.Any("error", err),
			)
		}
	}

	return result, nil
}
