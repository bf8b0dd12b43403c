package http

import (
	"net/http"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

type MessagesHandler struct {
	MessageService *service.MessageService
}

// ServeHTTP feeds the live message wall: latest non-empty RSVP messages,
// newest first.
func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	views, err := h.MessageService.ListMessages(ctx)
	if err != nil {
		log.Error("message listing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"messages": views,
	})
}
