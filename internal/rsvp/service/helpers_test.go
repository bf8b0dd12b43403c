package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/domain"
	"github.com/mossesandvanesa/wedding/internal/rsvp/email"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store/drivers/sqlite"
	"github.com/mossesandvanesa/wedding/pkg/guesttoken"
	"github.com/mossesandvanesa/wedding/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "wedding.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestCodec(t *testing.T) *guesttoken.Codec {
	t.Helper()

	codec, err := guesttoken.NewCodec("test-signing-secret")
	require.NoError(t, err)
	return codec
}

func seedGuest(t *testing.T, st store.Store, name string, pax int) domain.Guest {
	t.Helper()

	now := time.Now().UTC()
	guest := domain.Guest{
		ID:         idx.New().String(),
		FullName:   name,
		PaxAllowed: pax,
		Role:       "guest",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, st.Guests().CreateGuest(context.Background(), guest))
	return guest
}

func signToken(t *testing.T, codec *guesttoken.Codec, guestID string) string {
	t.Helper()

	token, err := codec.Sign(guesttoken.Payload{GuestID: guestID})
	require.NoError(t, err)
	return token
}

// fakeSender records outbound messages. Each Send pops the next queued error;
// an exhausted queue succeeds.
type fakeSender struct {
	mu       sync.Mutex
	disabled bool
	sent     []email.Message
	errs     []error
	calls    int
}

func (f *fakeSender) Enabled() bool { return !f.disabled }

func (f *fakeSender) Send(_ context.Context, msg email.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	f.sent = append(f.sent, msg)
	return "msg_" + msg.To, nil
}

func (f *fakeSender) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	to := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		to = append(to, m.To)
	}
	return to
}

func ptr[T any](v T) *T { return &v }
