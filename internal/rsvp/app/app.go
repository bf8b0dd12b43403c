package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mossesandvanesa/wedding/internal/rsvp/email"
	httpapi "github.com/mossesandvanesa/wedding/internal/rsvp/http"
	"github.com/mossesandvanesa/wedding/internal/rsvp/service"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store"
	"github.com/mossesandvanesa/wedding/internal/rsvp/store/drivers/sqlite"
	"github.com/mossesandvanesa/wedding/pkg/guesttoken"
	"github.com/mossesandvanesa/wedding/pkg/httpx"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the RSVP service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     store.Store
	codec  *guesttoken.Codec
	sender email.Sender

	// Services
	verifyService   *service.VerifyService
	submitService   *service.SubmitService
	guestService    *service.GuestService
	adminService    *service.AdminService
	announceService *service.AnnounceService
	messageService  *service.MessageService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "rsvp-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	codec, err := guesttoken.NewCodec(cfg.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.sender = email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	if !app.sender.Enabled() {
		app.logger.Warn("email sending disabled, no provider configured")
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("rsvp service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down rsvp service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("rsvp service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	deadline := app.cfg.Deadline()

	app.verifyService = service.NewVerifyService(
		app.db,
		app.codec,
		deadline,
		httpx.VerifyLimit,
		app.cfg.VerifyCacheSize,
		app.cfg.VerifyCacheTTL,
	)

	app.submitService = &service.SubmitService{
		Store:         app.db,
		Codec:         app.codec,
		Sender:        app.sender,
		Deadline:      deadline,
		PublicBaseURL: app.cfg.PublicBaseURL,
	}

	app.guestService = &service.GuestService{
		Store:         app.db,
		Codec:         app.codec,
		PublicBaseURL: app.cfg.PublicBaseURL,
		Deadline:      deadline,
	}

	app.adminService = &service.AdminService{
		Code:          app.cfg.AdminCode,
		SessionSecret: []byte(app.cfg.AdminSessionSecret),
		TOTPSecret:    app.cfg.AdminTOTPSecret,
	}

	app.announceService = &service.AnnounceService{
		Store:         app.db,
		Sender:        app.sender,
		MaxRecipients: app.cfg.AnnounceMaxRecipients,
		SendDelay:     app.cfg.AnnounceSendDelay,
		RetryDelay:    app.cfg.AnnounceRetryDelay,
		Cooldown:      app.cfg.AnnounceCooldown,
	}

	app.messageService = &service.MessageService{Store: app.db}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	// Wire services to router
	router.VerifyService = app.verifyService
	router.SubmitService = app.submitService
	router.GuestService = app.guestService
	router.AdminService = app.adminService
	router.AnnounceService = app.announceService
	router.MessageService = app.messageService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
