package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

type SubmitHandler struct {
	SubmitService *service.SubmitService
}

type submitRequest struct {
	Token             string   `json:"token"`
	Attendance        string   `json:"attendance"`
	PaxAttending      *float64 `json:"paxAttending"`
	Message           string   `json:"message"`
	Email             string   `json:"email"`
	AnnouncementOptIn *bool    `json:"announcementOptIn"`
}

type submitResponse struct {
	OK        bool   `json:"ok"`
	EmailSent bool   `json:"emailSent"`
	EmailID   string `json:"emailId,omitempty"`
}

// ServeHTTP commits one RSVP submission. All validation failures happen
// before any write; a failed confirmation email never fails the response.
func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "MISSING_TOKEN")
		return
	}

	res, err := h.SubmitService.Submit(ctx, service.SubmitRequest{
		Token:             req.Token,
		Attendance:        req.Attendance,
		PaxAttending:      req.PaxAttending,
		Message:           req.Message,
		Email:             req.Email,
		AnnouncementOptIn: req.AnnouncementOptIn,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRSVPClosed):
			writeError(w, http.StatusForbidden, "RSVP_CLOSED")
		case errors.Is(err, service.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "INVALID_OR_EXPIRED")
		case errors.Is(err, service.ErrInvalidAttendance):
			writeError(w, http.StatusBadRequest, "INVALID_ATTENDANCE")
		case errors.Is(err, service.ErrGuestNotFound):
			writeError(w, http.StatusNotFound, "GUEST_NOT_FOUND")
		case errors.Is(err, service.ErrInvalidPax):
			writeError(w, http.StatusBadRequest, "INVALID_PAX")
		case errors.Is(err, service.ErrEmailRequired):
			writeError(w, http.StatusBadRequest, "EMAIL_REQUIRED")
		default:
			log.Error("submit failed", "err", err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, submitResponse{
		OK:        true,
		EmailSent: res.EmailSent,
		EmailID:   res.EmailID,
	})
}
