package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
)

type rsvpsRepo struct {
	db dbtx
}

const rsvpColumns = `guest_id, attendance, pax_attending, message, email,
	announcement_opt_in, submitted_at, updated_at,
	email_confirmation_sent_at, email_confirmation_provider_id`

func (r *rsvpsRepo) GetRSVPByGuestID(ctx context.Context, guestID string) (domain.RSVP, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+rsvpColumns+` FROM rsvps WHERE guest_id = ?`, guestID)
	rsvp, err := scanRSVP(row)
	if err != nil {
		return domain.RSVP{}, mapNotFound(err)
	}
	return rsvp, nil
}

// UpsertResponse inserts or merges a response. submitted_at is only ever
// written on insert, which gives the set-once first-submission semantics
// without a read-check; the confirmation email fields are untouched here.
func (r *rsvpsRepo) UpsertResponse(ctx context.Context, rsvp domain.RSVP) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rsvps (
			guest_id, attendance, pax_attending, message, email,
			announcement_opt_in, submitted_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guest_id) DO UPDATE SET
			attendance = excluded.attendance,
			pax_attending = excluded.pax_attending,
			message = excluded.message,
			email = excluded.email,
			announcement_opt_in = COALESCE(excluded.announcement_opt_in, rsvps.announcement_opt_in),
			updated_at = excluded.updated_at`,
		rsvp.GuestID, rsvp.Attendance, rsvp.PaxAttending, rsvp.Message, rsvp.Email,
		mapOptionalBool(rsvp.AnnouncementOptIn), rsvp.SubmittedAt, rsvp.UpdatedAt,
	)
	return err
}

// MarkConfirmationSent is guarded so a second write can never overwrite the
// first provider id.
func (r *rsvpsRepo) MarkConfirmationSent(
	ctx context.Context,
	guestID, providerID string,
	now time.Time,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rsvps
		SET email_confirmation_sent_at = ?, email_confirmation_provider_id = ?
		WHERE guest_id = ? AND email_confirmation_sent_at IS NULL`,
		now, mapStringNull(providerID), guestID,
	)
	if err != nil {
		return err
	}
	return mapNotFound(requireRowAffected(res))
}

func (r *rsvpsRepo) ListRecipientEmails(ctx context.Context, optInOnly bool) ([]string, error) {
	query := `
		SELECT DISTINCT LOWER(TRIM(email))
		FROM rsvps
		WHERE TRIM(email) != ''`
	if optInOnly {
		query += ` AND announcement_opt_in = 1`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (r *rsvpsRepo) ListMessages(ctx context.Context, limit int) ([]domain.RSVP, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rsvpColumns+`
		FROM rsvps
		WHERE TRIM(message) != ''
		ORDER BY submitted_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rsvps []domain.RSVP
	for rows.Next() {
		rsvp, err := scanRSVP(rows)
		if err != nil {
			return nil, err
		}
		rsvps = append(rsvps, rsvp)
	}
	return rsvps, rows.Err()
}

func scanRSVP(row rowScanner) (domain.RSVP, error) {
	var (
		rsvp       domain.RSVP
		optIn      sql.NullBool
		sentAt     sql.NullTime
		providerID sql.NullString
	)
	err := row.Scan(
		&rsvp.GuestID, &rsvp.Attendance, &rsvp.PaxAttending, &rsvp.Message, &rsvp.Email,
		&optIn, &rsvp.SubmittedAt, &rsvp.UpdatedAt,
		&sentAt, &providerID,
	)
	if err != nil {
		return domain.RSVP{}, err
	}

	rsvp.AnnouncementOptIn = mapNullBoolPtr(optIn)
	rsvp.EmailConfirmationSentAt = mapNullTimePtr(sentAt)
	rsvp.EmailConfirmationProviderID = mapNullString(providerID)
	return rsvp, nil
}
