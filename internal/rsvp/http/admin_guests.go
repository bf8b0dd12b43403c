package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

type AdminGuestsHandler struct {
	GuestService *service.GuestService
}

type guestLinkView struct {
	ID             string `json:"id"`
	FullName       string `json:"fullName"`
	PaxAllowed     int    `json:"paxAllowed"`
	Role           string `json:"role"`
	Relation       string `json:"relation,omitempty"`
	RSVPSubmitted  bool   `json:"rsvpSubmitted"`
	Email          string `json:"email,omitempty"`
	RSVPAttendance string `json:"rsvpAttendance,omitempty"`
	RSVPPax        *int   `json:"rsvpPax,omitempty"`
	Token          string `json:"token"`
	URL            string `json:"url,omitempty"`
}

type guestMutateRequest struct {
	Mode       string  `json:"mode"`
	ID         string  `json:"id"`
	FullName   *string `json:"fullName"`
	PaxAllowed *int    `json:"paxAllowed"`
	Role       *string `json:"role"`
	Relation   *string `json:"relation"`
}

// HandleList returns every guest with a freshly signed RSVP link, ordered the
// way the printed guest list is.
func (h *AdminGuestsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	links, err := h.GuestService.ListGuestLinks(ctx)
	if err != nil {
		log.Error("guest listing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR")
		return
	}

	views := make([]guestLinkView, 0, len(links))
	for _, l := range links {
		views = append(views, guestLinkView{
			ID:             l.Guest.ID,
			FullName:       l.Guest.FullName,
			PaxAllowed:     l.Guest.PaxAllowed,
			Role:           l.Guest.Role,
			Relation:       l.Guest.Relation,
			RSVPSubmitted:  l.Guest.RSVPSubmitted,
			Email:          l.Guest.Email,
			RSVPAttendance: l.Guest.RSVPAttendance,
			RSVPPax:        l.Guest.RSVPPax,
			Token:          l.Token,
			URL:            l.URL,
		})
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"guests": views,
	})
}

// HandleMutate dispatches the admin console's guest mutations by mode:
// add, edit, delete or backup (snapshot the audience table).
func (h *AdminGuestsHandler) HandleMutate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req guestMutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MODE")
		return
	}

	var err error
	response := map[string]any{"ok": true}

	switch req.Mode {
	case "add":
		var name, role, relation string
		if req.FullName != nil {
			name = *req.FullName
		}
		if req.Role != nil {
			role = *req.Role
		}
		if req.Relation != nil {
			relation = *req.Relation
		}
		pax := 0
		if req.PaxAllowed != nil {
			pax = *req.PaxAllowed
		}

		created, addErr := h.GuestService.AddGuest(ctx, name, pax, role, relation)
		if addErr == nil {
			response["guest"] = guestLinkView{
				ID:         created.ID,
				FullName:   created.FullName,
				PaxAllowed: created.PaxAllowed,
				Role:       created.Role,
				Relation:   created.Relation,
			}
		}
		err = addErr

	case "edit":
		if req.ID == "" {
			writeError(w, http.StatusBadRequest, "MISSING_ID")
			return
		}
		err = h.GuestService.EditGuest(ctx, req.ID, service.GuestPatch{
			FullName:   req.FullName,
			PaxAllowed: req.PaxAllowed,
			Role:       req.Role,
			Relation:   req.Relation,
		})

	case "delete":
		if req.ID == "" {
			writeError(w, http.StatusBadRequest, "MISSING_ID")
			return
		}
		err = h.GuestService.DeleteGuest(ctx, req.ID)

	case "backup":
		err = h.GuestService.SnapshotBackup(ctx)

	default:
		writeError(w, http.StatusBadRequest, "INVALID_MODE")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingName):
			writeError(w, http.StatusBadRequest, "MISSING_NAME")
		case errors.Is(err, service.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "INVALID_NAME")
		case errors.Is(err, service.ErrGuestNotFound):
			writeError(w, http.StatusNotFound, "GUEST_NOT_FOUND")
		default:
			log.Error("guest mutation failed", "mode", req.Mode, "err", err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}
