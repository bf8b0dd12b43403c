package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/pkg/guesttoken"
	"github.com/mossesandvanesa/wedding/pkg/idx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

// GuestPatch carries the admin-editable fields; nil fields are untouched.
type GuestPatch struct {
	FullName   *string
	PaxAllowed *int
	Role       *string
	Relation   *string
}

// GuestLink pairs a guest with their signed RSVP URL.
type GuestLink struct {
	Guest domain.Guest
	Token string
	URL   string
}

// GuestService implements the admin console's guest CRUD, the backup
// snapshot and RSVP link issuance.
type GuestService struct {
	Store         store.Store
	Codec         *guesttoken.Codec
	PublicBaseURL string
	Deadline      *time.Time // token expiry for issued links; nil means no expiry

	Now func() time.Time
}

func (s *GuestService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// AddGuest creates a guest with the original import normalization: trimmed
// name required, seats clamped to at least 1, role/relation lowercased.
func (s *GuestService) AddGuest(
	ctx context.Context,
	fullName string,
	paxAllowed int,
	role, relation string,
) (domain.Guest, error) {
	log := slogx.FromContext(ctx)

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return domain.Guest{}, ErrMissingName
	}
	if paxAllowed < 1 {
		paxAllowed = 1
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = "guest"
	}
	relation = strings.ToLower(strings.TrimSpace(relation))

	now := s.now()
	guest := domain.Guest{
		ID:         idx.New().String(),
		FullName:   fullName,
		PaxAllowed: paxAllowed,
		Role:       role,
		Relation:   relation,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.Store.Guests().CreateGuest(ctx, guest); err != nil {
		log.Error("failed to create guest", slog.Any("error", err))
		return domain.Guest{}, err
	}

	log.Info("guest created",
		slog.String("guest_id", guest.ID),
		slog.Int("pax_allowed", guest.PaxAllowed),
	)
	return guest, nil
}

// EditGuest merges the patch onto the stored guest inside a transaction so
// concurrent edits cannot interleave.
func (s *GuestService) EditGuest(ctx context.Context, id string, patch GuestPatch) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		guest, err := tx.Guests().GetGuestByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrGuestNotFound
			}
			return err
		}

		if patch.FullName != nil {
			name := strings.TrimSpace(*patch.FullName)
			if name == "" {
				return ErrInvalidName
			}
			guest.FullName = name
		}
		if patch.PaxAllowed != nil {
			guest.PaxAllowed = max(1, *patch.PaxAllowed)
		}
		if patch.Role != nil {
			role := strings.ToLower(strings.TrimSpace(*patch.Role))
			if role == "" {
				role = "guest"
			}
			guest.Role = role
		}
		if patch.Relation != nil {
			guest.Relation = strings.ToLower(strings.TrimSpace(*patch.Relation))
		}

		guest.UpdatedAt = s.now()
		return tx.Guests().UpdateGuest(ctx, guest)
	})
}

// DeleteGuest removes a guest; the RSVP row cascades. Admin-only, never
// reachable from the guest-facing pipeline.
func (s *GuestService) DeleteGuest(ctx context.Context, id string) error {
	err := s.Store.Guests().DeleteGuest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrGuestNotFound
	}
	return err
}

// SnapshotBackup freezes the current guest list into the backup audience
// table used for announcement test sends.
func (s *GuestService) SnapshotBackup(ctx context.Context) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Guests().SnapshotBackup(ctx, s.now())
	})
}

// ListGuestLinks returns every guest with a freshly signed RSVP link. Link
// expiry follows the configured submission deadline, so issued links stop
// verifying once the window is long past.
func (s *GuestService) ListGuestLinks(ctx context.Context) ([]GuestLink, error) {
	guests, err := s.Store.Guests().ListGuests(ctx)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(s.PublicBaseURL, "/")

	links := make([]GuestLink, 0, len(guests))
	for _, g := range guests {
		payload := guesttoken.Payload{GuestID: g.ID}
		if s.Deadline != nil {
			payload.Exp = s.Deadline.UnixMilli()
		}

		token, err := s.Codec.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("sign link for guest %s: %w", g.ID, err)
		}

		link := GuestLink{Guest: g, Token: token}
		if base != "" {
			link.URL = base + "/rsvp/" + url.PathEscape(token)
		}
		links = append(links, link)
	}

	// Same ordering the printed guest list uses: entourage and sponsors
	// first, then by relation, then by name.
	sort.SliceStable(links, func(i, j int) bool {
		a, b := links[i].Guest, links[j].Guest
		if rolePriority(a.Role) != rolePriority(b.Role) {
			return rolePriority(a.Role) < rolePriority(b.Role)
		}
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		return a.FullName < b.FullName
	})

	return links, nil
}

func rolePriority(role string) int {
	switch role {
	case "entourage":
		return 1
	case "sponsor":
		return 2
	case "guest":
		return 3
	default:
		return 99
	}
}
