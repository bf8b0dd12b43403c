package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	TokenSecret string // Required: HMAC secret for guest tokens
	DeadlineISO string // Optional: RSVP submission deadline (RFC3339); empty = never closes

	PublicBaseURL string // Optional: base URL for RSVP links; empty disables email links
	ResendAPIKey  string // Optional: email provider API key; empty disables sending
	EmailFrom     string // Optional: From address for outbound email

	AdminCode          string // Optional: shared admin code; empty disables admin endpoints
	AdminSessionSecret string // Optional: HS256 key for admin session cookies (default: derived from TokenSecret)
	AdminTOTPSecret    string // Optional: TOTP second factor for admin login

	DatabaseFile string // Optional: path to SQLite database file (default: ./rsvp.db)

	VerifyCacheTTL  time.Duration // Verify response cache TTL (default: 60s)
	VerifyCacheSize int           // Verify response cache capacity (default: 500)

	AnnounceMaxRecipients int           // Broadcast hard cap (default: 800)
	AnnounceSendDelay     time.Duration // Delay between broadcast sends (default: 600ms)
	AnnounceRetryDelay    time.Duration // Delay before the single throttle retry (default: 1100ms)
	AnnounceCooldown      time.Duration // Minimum interval between broadcast starts (default: 60s)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() (Config, error) {
	cfg := Config{
		TokenSecret:   os.Getenv("RSVP_TOKEN_SECRET"),
		DeadlineISO:   os.Getenv("RSVP_DEADLINE_ISO"),
		PublicBaseURL: os.Getenv("PUBLIC_BASE_URL"),
		ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
		EmailFrom:     os.Getenv("EMAIL_FROM"),

		AdminCode:          os.Getenv("ADMIN_CODE"),
		AdminSessionSecret: os.Getenv("ADMIN_SESSION_SECRET"),
		AdminTOTPSecret:    os.Getenv("ADMIN_TOTP_SECRET"),

		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "rsvp.db"),

		VerifyCacheTTL:  getEnvDurationOrDefault("VERIFY_CACHE_TTL", 60*time.Second),
		VerifyCacheSize: getEnvIntOrDefault("VERIFY_CACHE_SIZE", 500),

		AnnounceMaxRecipients: getEnvIntOrDefault("ANNOUNCE_MAX_RECIPIENTS", 800),
		AnnounceSendDelay:     getEnvDurationOrDefault("ANNOUNCE_SEND_DELAY", 600*time.Millisecond),
		AnnounceRetryDelay:    getEnvDurationOrDefault("ANNOUNCE_RETRY_DELAY", 1100*time.Millisecond),
		AnnounceCooldown:      getEnvDurationOrDefault("ANNOUNCE_COOLDOWN", 60*time.Second),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("RSVP_TOKEN_SECRET is required")
	}

	if cfg.DeadlineISO != "" {
		if _, err := time.Parse(time.RFC3339, cfg.DeadlineISO); err != nil {
			return Config{}, fmt.Errorf("RSVP_DEADLINE_ISO must be RFC3339: %w", err)
		}
	}

	// Session tokens fall back to the guest token secret; the two are signed
	// over disjoint formats (JWT vs body.mac) so reuse is safe.
	if cfg.AdminSessionSecret == "" {
		cfg.AdminSessionSecret = cfg.TokenSecret
	}

	return cfg, nil
}

// Deadline returns the parsed submission deadline, nil when unset.
func (c Config) Deadline() *time.Time {
	if c.DeadlineISO == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, c.DeadlineISO)
	if err != nil {
		return nil
	}
	return &t
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
