package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/internal/rsvp/email"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

// Audience selectors for a broadcast. The backup table is the safe test
// audience; sending to the live guest list additionally requires
// ConfirmProduction.
const (
	AudienceGuests = "guests"
	AudienceBackup = "guests_backup"
)

// AnnounceRequest is one admin-triggered broadcast.
type AnnounceRequest struct {
	Subject           string
	Body              string
	OptInOnly         bool
	Audience          string // empty defaults to AudienceGuests
	DryRun            bool
	ConfirmProduction bool
}

// AnnounceResult reports aggregate broadcast counts. Partial failure is
// normal and reported, not fatal to the batch.
type AnnounceResult struct {
	Audience string
	DryRun   bool
	Sent     int
	Failed   int
	Total    int
}

// AnnounceService sends templated announcement email to opted-in RSVP
// respondents.
//
// The overlap lock and cooldown are in-process, single-instance guards,
// acceptable because broadcasts are manually triggered by one admin. A
// multi-instance deployment would need a durable lease in the store instead.
type AnnounceService struct {
	Store  store.Store
	Sender email.Sender

	MaxRecipients int           // hard cap, rejected above this
	SendDelay     time.Duration // pause between sends, stays under the provider rate ceiling
	RetryDelay    time.Duration // wait before the single retry after a throttle
	Cooldown      time.Duration // minimum interval between broadcast starts

	mu      sync.Mutex // held for the duration of a run
	lastMu  sync.Mutex
	lastRun time.Time

	// Now and Sleep are replaceable in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)
}

func (s *AnnounceService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AnnounceService) sleep(ctx context.Context, d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(ctx, d)
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Broadcast resolves the recipient set and sends sequentially. Dry runs
// resolve recipients without contacting the provider.
func (s *AnnounceService) Broadcast(ctx context.Context, req AnnounceRequest) (AnnounceResult, error) {
	log := slogx.FromContext(ctx)

	// One broadcast at a time; a second trigger is rejected, not queued.
	if !s.mu.TryLock() {
		return AnnounceResult{}, ErrBroadcastRunning
	}
	defer s.mu.Unlock()

	if s.Cooldown > 0 {
		s.lastMu.Lock()
		since := s.now().Sub(s.lastRun)
		s.lastMu.Unlock()
		if since < s.Cooldown {
			return AnnounceResult{}, ErrBroadcastCooldown
		}
	}

	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		return AnnounceResult{}, ErrMissingContent
	}

	audience := AudienceGuests
	if req.Audience == AudienceBackup || req.Audience == "guestbackup" {
		audience = AudienceBackup
	}

	if audience == AudienceGuests && !req.DryRun && !req.ConfirmProduction {
		return AnnounceResult{}, ErrConfirmProductionRequired
	}

	recipients, lookup, err := s.resolveRecipients(ctx, req.OptInOnly, audience)
	if err != nil {
		return AnnounceResult{}, err
	}

	if len(recipients) > s.MaxRecipients {
		return AnnounceResult{}, ErrTooManyRecipients
	}

	if req.DryRun {
		return AnnounceResult{
			Audience: audience,
			DryRun:   true,
			Total:    len(recipients),
		}, nil
	}

	if !s.Sender.Enabled() {
		return AnnounceResult{}, ErrSenderDisabled
	}

	s.markRun()
	defer s.markRun()

	log.Info("announcement starting",
		slog.String("audience", audience),
		slog.Int("recipients", len(recipients)),
		slog.Bool("opt_in_only", req.OptInOnly),
	)

	sent, failed := 0, 0
	for _, to := range recipients {
		entry := lookup[to]

		subject := email.Personalize(req.Subject, entry.FullName, entry.PaxAllowed)
		body := email.Personalize(req.Body, entry.FullName, entry.PaxAllowed)

		if err := s.sendWithRetry(ctx, email.Message{
			To:      to,
			Subject: subject,
			HTML:    email.AnnouncementHTML(subject, body),
		}); err != nil {
			log.Warn("announcement send failed",
				slog.String("to", to),
				slog.Any("error", err),
			)
			failed++
		} else {
			sent++
		}

		s.sleep(ctx, s.SendDelay)
	}

	log.Info("announcement finished",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
	)

	return AnnounceResult{
		Audience: audience,
		Sent:     sent,
		Failed:   failed,
		Total:    len(recipients),
	}, nil
}

// resolveRecipients intersects the distinct RSVP emails with the audience
// lookup table; emails without a lookup entry are dropped.
func (s *AnnounceService) resolveRecipients(
	ctx context.Context,
	optInOnly bool,
	audience string,
) ([]string, map[string]domain.AudienceEntry, error) {
	emails, err := s.Store.RSVPs().ListRecipientEmails(ctx, optInOnly)
	if err != nil {
		return nil, nil, err
	}

	if len(emails) > s.MaxRecipients {
		return nil, nil, ErrTooManyRecipients
	}

	entries, err := s.Store.Guests().ListAudience(ctx, audience)
	if err != nil {
		return nil, nil, err
	}

	lookup := make(map[string]domain.AudienceEntry, len(entries))
	for _, e := range entries {
		if e.FullName == "" {
			e.FullName = "Guest"
		}
		lookup[e.Email] = e
	}

	recipients := make([]string, 0, len(emails))
	for _, e := range emails {
		if !emailPattern.MatchString(e) {
			continue
		}
		if _, ok := lookup[e]; !ok {
			continue
		}
		recipients = append(recipients, e)
	}

	return recipients, lookup, nil
}

// sendWithRetry retries exactly once after a provider throttle; any other
// error, or a second throttle, fails this recipient.
func (s *AnnounceService) sendWithRetry(ctx context.Context, msg email.Message) error {
	return retry.Do(
		func() error {
			_, err := s.Sender.Send(ctx, msg)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(s.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, email.ErrThrottled)
		}),
	)
}

func (s *AnnounceService) markRun() {
	s.lastMu.Lock()
	s.lastRun = s.now()
	s.lastMu.Unlock()
}
