package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/stretchr/testify/require"
)

func TestListMessages(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &MessageService{Store: st}

	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		guest := seedGuest(t, st, fmt.Sprintf("Guest %d", i), 2)
		msg := fmt.Sprintf("message %d", i)
		if i == 1 {
			msg = "   " // blank messages stay off the wall
		}
		require.NoError(t, st.RSVPs().UpsertResponse(ctx, domain.RSVP{
			GuestID:      guest.ID,
			Attendance:   domain.AttendanceYes,
			PaxAttending: 1,
			Message:      msg,
			Email:        fmt.Sprintf("guest%d@example.com", i),
			SubmittedAt:  base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}

	views, err := svc.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	// Newest first, blanks filtered.
	require.Equal(t, "message 2", views[0].Message)
	require.Equal(t, "message 0", views[1].Message)
	require.Equal(t, base.Add(2*time.Hour).Format(time.RFC3339), views[0].SubmittedAt)
}
