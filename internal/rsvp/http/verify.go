package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

type VerifyHandler struct {
	VerifyService *service.VerifyService
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	OK          bool              `json:"ok"`
	Guest       service.GuestView `json:"guest"`
	RSVP        *service.RSVPView `json:"rsvp,omitempty"`
	DeadlineISO *string           `json:"deadlineIso"`
}

// ServeHTTP resolves a guest token into the RSVP page's prefill projection.
// Invalid and expired tokens are indistinguishable on the wire.
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TOKEN")
		return
	}

	proj, err := h.VerifyService.Verify(ctx, httpx.ClientIP(r), req.Token)
	if err != nil {
		var rateLimited *service.RateLimitedError
		switch {
		case errors.As(err, &rateLimited):
			writeRateLimited(w, int(rateLimited.RetryAfter.Seconds()))
		case errors.Is(err, service.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "INVALID_OR_EXPIRED")
		case errors.Is(err, service.ErrGuestNotFound):
			writeError(w, http.StatusNotFound, "GUEST_NOT_FOUND")
		default:
			log.Error("verify failed", "err", err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, verifyResponse{
		OK:          true,
		Guest:       proj.Guest,
		RSVP:        proj.RSVP,
		DeadlineISO: proj.DeadlineISO,
	})
}
