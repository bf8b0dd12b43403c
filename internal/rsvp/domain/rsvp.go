package domain

import "time"

// RSVP is a guest's recorded response, keyed 1:1 with the Guest and created
// lazily on first submission.
//
// SubmittedAt is set exactly once on the first submission and never
// overwritten; UpdatedAt is refreshed on every write. The confirmation email
// fields are likewise set at most once.
type RSVP struct {
	GuestID           string
	Attendance        string // AttendanceYes or AttendanceNo
	PaxAttending      int    // 0 when declining
	Message           string
	Email             string // denormalized copy of the resolved email
	AnnouncementOptIn *bool

	SubmittedAt time.Time
	UpdatedAt   time.Time

	EmailConfirmationSentAt     *time.Time
	EmailConfirmationProviderID string
}

// ConfirmationSent reports whether a confirmation email was already recorded
// for this response.
func (r RSVP) ConfirmationSent() bool {
	return r.EmailConfirmationSentAt != nil
}
