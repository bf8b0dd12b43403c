package service

import (
	"context"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
)

// messageLimit caps the live wall feed, matching the original listing.
const messageLimit = 300

// MessageView is one entry on the live message wall feed.
type MessageView struct {
	GuestID           string `json:"guestId"`
	Email             string `json:"email,omitempty"`
	Attendance        string `json:"attendance"`
	AnnouncementOptIn bool   `json:"announcementOptIn"`
	PaxAttending      int    `json:"paxAttending"`
	Message           string `json:"message"`
	SubmittedAt       string `json:"submittedAt"`
}

// MessageService feeds the live message wall from submitted RSVPs.
type MessageService struct {
	Store store.Store
}

// ListMessages returns the latest non-empty messages, newest first.
func (s *MessageService) ListMessages(ctx context.Context) ([]MessageView, error) {
	rsvps, err := s.Store.RSVPs().ListMessages(ctx, messageLimit)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(rsvps))
	for _, r := range rsvps {
		optIn := r.AnnouncementOptIn != nil && *r.AnnouncementOptIn
		views = append(views, MessageView{
			GuestID:           r.GuestID,
			Email:             r.Email,
			Attendance:        r.Attendance,
			AnnouncementOptIn: optIn,
			PaxAttending:      r.PaxAttending,
			Message:           r.Message,
			SubmittedAt:       r.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	return views, nil
}
