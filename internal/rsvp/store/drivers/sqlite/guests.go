package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
)

type guestsRepo struct {
	db dbtx
}

const guestColumns = `id, full_name, pax_allowed, role, relation, rsvp_submitted,
	email, announcement_opt_in, rsvp_pax, rsvp_attendance,
	email_updated_at, rsvp_updated_at, created_at, updated_at`

func (r *guestsRepo) GetGuestByID(ctx context.Context, id string) (domain.Guest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+guestColumns+` FROM guests WHERE id = ?`, id)
	g, err := scanGuest(row)
	if err != nil {
		return domain.Guest{}, mapNotFound(err)
	}
	return g, nil
}

func (r *guestsRepo) ListGuests(ctx context.Context) ([]domain.Guest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+guestColumns+` FROM guests ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guests []domain.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		guests = append(guests, g)
	}
	return guests, rows.Err()
}

func (r *guestsRepo) CreateGuest(ctx context.Context, g domain.Guest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guests (
			id, full_name, pax_allowed, role, relation, rsvp_submitted,
			email, announcement_opt_in, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.FullName, g.PaxAllowed, g.Role, g.Relation, g.RSVPSubmitted,
		mapStringNull(g.Email), mapOptionalBool(g.AnnouncementOptIn),
		g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func (r *guestsRepo) UpdateGuest(ctx context.Context, g domain.Guest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE guests
		SET full_name = ?, pax_allowed = ?, role = ?, relation = ?, updated_at = ?
		WHERE id = ?`,
		g.FullName, g.PaxAllowed, g.Role, g.Relation, g.UpdatedAt, g.ID,
	)
	if err != nil {
		return err
	}
	return mapNotFound(requireRowAffected(res))
}

func (r *guestsRepo) DeleteGuest(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return mapNotFound(requireRowAffected(res))
}

func (r *guestsRepo) SetGuestEmail(
	ctx context.Context,
	id, email string,
	optIn *bool,
	now time.Time,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE guests
		SET email = ?,
		    email_updated_at = ?,
		    announcement_opt_in = COALESCE(?, announcement_opt_in),
		    updated_at = ?
		WHERE id = ?`,
		email, now, mapOptionalBool(optIn), now, id,
	)
	if err != nil {
		return err
	}
	return mapNotFound(requireRowAffected(res))
}

func (r *guestsRepo) SetGuestAnnouncementOptIn(
	ctx context.Context,
	id string,
	optIn bool,
	now time.Time,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE guests SET announcement_opt_in = ?, updated_at = ? WHERE id = ?`,
		optIn, now, id,
	)
	if err != nil {
		return err
	}
	return mapNotFound(requireRowAffected(res))
}

func (r *guestsRepo) MarkGuestSubmitted(
	ctx context.Context,
	id string,
	pax int,
	attendance string,
	now time.Time,
) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE guests
		SET rsvp_submitted = 1,
		    rsvp_pax = ?,
		    rsvp_attendance = ?,
		    rsvp_updated_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		pax, attendance, now, now, id,
	)
	if err != nil {
		return err
	}
	return mapNotFound(requireRowAffected(res))
}

func (r *guestsRepo) SnapshotBackup(ctx context.Context, now time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM guests_backup`); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guests_backup (id, full_name, pax_allowed, email, snapshotted_at)
		SELECT id, full_name, pax_allowed, email, ? FROM guests`, now)
	return err
}

func (r *guestsRepo) ListAudience(
	ctx context.Context,
	audience string,
) ([]domain.AudienceEntry, error) {
	var table string
	switch audience {
	case "guests":
		table = "guests"
	case "guests_backup":
		table = "guests_backup"
	default:
		return nil, fmt.Errorf("sqlite: unknown audience %q", audience)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT LOWER(TRIM(email)), full_name, pax_allowed
		FROM `+table+`
		WHERE email IS NOT NULL AND TRIM(email) != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.AudienceEntry
	for rows.Next() {
		var e domain.AudienceEntry
		if err := rows.Scan(&e.Email, &e.FullName, &e.PaxAllowed); err != nil {
			return nil, err
		}
		if e.PaxAllowed < 1 {
			e.PaxAllowed = 1
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuest(row rowScanner) (domain.Guest, error) {
	var (
		g              domain.Guest
		email          sql.NullString
		optIn          sql.NullBool
		rsvpPax        sql.NullInt64
		rsvpAttendance sql.NullString
		emailUpdatedAt sql.NullTime
		rsvpUpdatedAt  sql.NullTime
	)
	err := row.Scan(
		&g.ID, &g.FullName, &g.PaxAllowed, &g.Role, &g.Relation, &g.RSVPSubmitted,
		&email, &optIn, &rsvpPax, &rsvpAttendance,
		&emailUpdatedAt, &rsvpUpdatedAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return domain.Guest{}, err
	}

	g.Email = mapNullString(email)
	g.AnnouncementOptIn = mapNullBoolPtr(optIn)
	g.RSVPPax = mapNullIntPtr(rsvpPax)
	g.RSVPAttendance = mapNullString(rsvpAttendance)
	g.EmailUpdatedAt = mapNullTimePtr(emailUpdatedAt)
	g.RSVPUpdatedAt = mapNullTimePtr(rsvpUpdatedAt)
	return g, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
