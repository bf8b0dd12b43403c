package http

import (
	"net/http"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

// RequireAdmin gates a route behind admin authentication: either the shared
// code in the X-Admin-Code header or a valid session cookie from login.
func RequireAdmin(admin *service.AdminService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if admin.CheckCode(r.Header.Get("X-Admin-Code")) {
				next.ServeHTTP(w, r)
				return
			}

			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				if admin.VerifySession(cookie.Value) == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			slogx.FromContext(r.Context()).Warn("admin request rejected",
				"endpoint", r.URL.Path,
			)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
		})
	}
}
