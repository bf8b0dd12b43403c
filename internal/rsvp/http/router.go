package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	VerifyService   *service.VerifyService
	SubmitService   *service.SubmitService
	GuestService    *service.GuestService
	AdminService    *service.AdminService
	AnnounceService *service.AnnounceService
	MessageService  *service.MessageService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerRSVP()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerRSVP() {
	// POST /rsvp/verify - rate limited per ip+token inside the service, so the
	// route itself only carries the public IP limit.
	verifyHandler := &VerifyHandler{VerifyService: r.VerifyService}
	r.Mux.Handle("POST /v1/rsvp/verify",
		httpx.Chain(verifyHandler,
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// POST /rsvp/submit - strict rate limit by IP (guest write endpoint)
	submitHandler := &SubmitHandler{SubmitService: r.SubmitService}
	r.Mux.Handle("POST /v1/rsvp/submit",
		httpx.Chain(submitHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	// POST /admin/login - strict rate limit by IP (credential guessing)
	loginHandler := &AdminLoginHandler{AdminService: r.AdminService}
	r.Mux.Handle("POST /v1/admin/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	guestsHandler := &AdminGuestsHandler{GuestService: r.GuestService}
	announceHandler := &AnnouncementHandler{AnnounceService: r.AnnounceService}
	messagesHandler := &MessagesHandler{MessageService: r.MessageService}

	// Everything else sits behind the admin gate with a moderate limit.
	r.Mux.Handle("GET /v1/admin/guests",
		httpx.Chain(http.HandlerFunc(guestsHandler.HandleList),
			RequireAdmin(r.AdminService),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/admin/guests",
		httpx.Chain(http.HandlerFunc(guestsHandler.HandleMutate),
			RequireAdmin(r.AdminService),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/admin/messages",
		httpx.Chain(messagesHandler,
			RequireAdmin(r.AdminService),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/admin/announcement",
		httpx.Chain(announceHandler,
			RequireAdmin(r.AdminService),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
