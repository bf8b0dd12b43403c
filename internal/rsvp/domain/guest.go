package domain

import "time"

// Attendance values accepted on a submission.
const (
	AttendanceYes = "yes"
	AttendanceNo  = "no"
)

// Guest is one invitee or invited party. Created by admin CRUD or bulk
// import; the submission pipeline only ever mutates the email capture,
// submitted flag and the denormalized rsvp_* mirror fields.
type Guest struct {
	ID            string
	FullName      string
	PaxAllowed    int // seats allowed, minimum 1
	Role          string
	Relation      string
	RSVPSubmitted bool

	// Email is captured on the guest's first submission and authoritative
	// afterwards. Empty means not captured yet.
	Email             string
	AnnouncementOptIn *bool

	// Mirror of the RSVP record, kept consistent on every submission so the
	// admin console can filter without joins. Never a source of truth.
	RSVPPax        *int
	RSVPAttendance string

	EmailUpdatedAt *time.Time
	RSVPUpdatedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SeatsAllowed returns the guest's seat allowance clamped to a minimum of 1.
func (g Guest) SeatsAllowed() int {
	if g.PaxAllowed < 1 {
		return 1
	}
	return g.PaxAllowed
}

// AudienceEntry is the per-email display data used to personalize broadcast
// announcements.
type AudienceEntry struct {
	Email      string
	FullName   string
	PaxAllowed int
}
