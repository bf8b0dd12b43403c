package store

import (
	"context"
	"errors"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Guests() Guests
	RSVPs() RSVPs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The submission pipeline uses this so the guest read, capacity check,
	// email capture and RSVP merge apply atomically or not at all.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Guests interface {
	// GetGuestByID returns a guest by id.
	GetGuestByID(ctx context.Context, id string) (domain.Guest, error)

	// ListGuests returns all guests ordered by creation (oldest first).
	ListGuests(ctx context.Context) ([]domain.Guest, error)

	// CreateGuest inserts a new guest (id is provided by app via ULID).
	CreateGuest(ctx context.Context, g domain.Guest) error

	// UpdateGuest persists the mutable admin-editable fields and bumps
	// updated_at.
	UpdateGuest(ctx context.Context, g domain.Guest) error

	// DeleteGuest removes a guest; the RSVP row cascades per schema.
	DeleteGuest(ctx context.Context, id string) error

	// SetGuestEmail records the first captured email (with the opt-in flag
	// when supplied) and bumps email_updated_at.
	SetGuestEmail(ctx context.Context, id, email string, optIn *bool, now time.Time) error

	// SetGuestAnnouncementOptIn updates only the opt-in flag.
	SetGuestAnnouncementOptIn(ctx context.Context, id string, optIn bool, now time.Time) error

	// MarkGuestSubmitted flips rsvp_submitted and refreshes the
	// denormalized rsvp_pax/rsvp_attendance mirror fields.
	MarkGuestSubmitted(ctx context.Context, id string, pax int, attendance string, now time.Time) error

	// SnapshotBackup replaces the guests_backup audience table with the
	// current guests.
	SnapshotBackup(ctx context.Context, now time.Time) error

	// ListAudience returns per-email display data from the given audience
	// table ("guests" or "guests_backup"), keyed by lowercased email.
	// Guests without an email are skipped.
	ListAudience(ctx context.Context, audience string) ([]domain.AudienceEntry, error)
}

type RSVPs interface {
	// GetRSVPByGuestID returns the response for a guest, ErrNotFound when
	// the guest has not submitted yet.
	GetRSVPByGuestID(ctx context.Context, guestID string) (domain.RSVP, error)

	// UpsertResponse inserts or merges a response. submitted_at is written
	// on insert only, giving the set-once first-submission semantics;
	// updated_at is refreshed on every write; a nil opt-in preserves the
	// stored flag.
	UpsertResponse(ctx context.Context, r domain.RSVP) error

	// MarkConfirmationSent records the provider message id and timestamp,
	// at most once per guest.
	MarkConfirmationSent(ctx context.Context, guestID, providerID string, now time.Time) error

	// ListRecipientEmails returns distinct lowercased emails from all
	// responses, optionally restricted to opted-in guests.
	ListRecipientEmails(ctx context.Context, optInOnly bool) ([]string, error)

	// ListMessages returns the most recent responses with a non-empty
	// message, newest submission first.
	ListMessages(ctx context.Context, limit int) ([]domain.RSVP, error)
}
