package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

// SessionCookieName carries the admin session token.
const SessionCookieName = "admin_session"

type AdminLoginHandler struct {
	AdminService *service.AdminService
}

type adminLoginRequest struct {
	Code string `json:"code"`
	TOTP string `json:"totp"`
}

// ServeHTTP exchanges the shared admin code (plus TOTP when configured) for
// an httpOnly session cookie.
func (h *AdminLoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_CODE")
		return
	}

	token, err := h.AdminService.Login(ctx, req.Code, req.TOTP)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAdminCode):
			writeError(w, http.StatusUnauthorized, "INVALID_CODE")
		case errors.Is(err, service.ErrInvalidTOTP):
			writeError(w, http.StatusUnauthorized, "INVALID_TOTP")
		default:
			log.Error("admin login failed", "err", err)
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(service.DefaultSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
