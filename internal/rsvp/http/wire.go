package http

import (
	"net/http"
	"strconv"

	"github.com/mossesandvanesa/wedding/pkg/httpx"
)

// errorResponse is the uniform failure envelope: a machine-readable code the
// client renders a targeted message for.
type errorResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	httpx.WriteJSON(w, status, errorResponse{Error: code})
}

func writeRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	httpx.WriteJSON(w, http.StatusTooManyRequests, errorResponse{
		Error:      "RATE_LIMITED",
		RetryAfter: retryAfterSeconds,
	})
}
