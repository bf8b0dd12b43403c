package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

type AnnouncementHandler struct {
	AnnounceService *service.AnnounceService
}

type announcementRequest struct {
	Subject           string `json:"subject"`
	Body              string `json:"body"`
	OptInOnly         bool   `json:"optInOnly"`
	Audience          string `json:"audience"`
	DryRun            bool   `json:"dryRun"`
	ConfirmProduction bool   `json:"confirmProduction"`
}

type announcementResponse struct {
	OK          bool   `json:"ok"`
	Audience    string `json:"audience"`
	DryRun      bool   `json:"dryRun"`
	Sent        int    `json:"sent"`
	FailedCount int    `json:"failedCount"`
	Total       int    `json:"total"`
}

// ServeHTTP triggers one broadcast run. Partial send failures are reported
// in the counts, not as an error status.
func (h *AnnouncementHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_CONTENT")
		return
	}

	res, err := h.AnnounceService.Broadcast(ctx, service.AnnounceRequest{
		Subject:           req.Subject,
		Body:              req.Body,
		OptInOnly:         req.OptInOnly,
		Audience:          req.Audience,
		DryRun:            req.DryRun,
		ConfirmProduction: req.ConfirmProduction,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBroadcastRunning):
			writeError(w, http.StatusConflict, "BROADCAST_RUNNING")
		case errors.Is(err, service.ErrBroadcastCooldown):
			writeError(w, http.StatusTooManyRequests, "BROADCAST_COOLDOWN")
		case errors.Is(err, service.ErrMissingContent):
			writeError(w, http.StatusBadRequest, "MISSING_CONTENT")
		case errors.Is(err, service.ErrConfirmProductionRequired):
			writeError(w, http.StatusBadRequest, "CONFIRM_PRODUCTION_REQUIRED")
		case errors.Is(err, service.ErrTooManyRecipients):
			writeError(w, http.StatusBadRequest, "TOO_MANY_RECIPIENTS")
		case errors.Is(err, service.ErrSenderDisabled):
			writeError(w, http.StatusServiceUnavailable, "SENDER_DISABLED")
		default:
			log.Error("broadcast failed", "err", err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, announcementResponse{
		OK:          true,
		Audience:    res.Audience,
		DryRun:      res.DryRun,
		Sent:        res.Sent,
		FailedCount: res.Failed,
		Total:       res.Total,
	})
}
