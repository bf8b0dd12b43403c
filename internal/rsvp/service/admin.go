package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mossesandvanesa/wedding/pkg/slogx"
	"github.com/pquerna/otp/totp"
)

// DefaultSessionTTL matches the original admin cookie lifetime.
const DefaultSessionTTL = 7 * 24 * time.Hour

// AdminService authenticates the admin console. Login is a shared-code
// compare (plus TOTP when configured) that mints a short HS256 session
// token; admin endpoints accept either the code header or a valid session.
type AdminService struct {
	Code          string // shared admin code; empty disables admin access
	SessionSecret []byte // HS256 key for session tokens
	TOTPSecret    string // optional second factor
	SessionTTL    time.Duration

	Now func() time.Time
}

func (s *AdminService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AdminService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}

// Login checks the shared code (constant time) and the TOTP code when one is
// configured, then mints a session token.
func (s *AdminService) Login(ctx context.Context, code, totpCode string) (string, error) {
	log := slogx.FromContext(ctx)

	if !s.CheckCode(code) {
		log.Warn("admin login rejected")
		return "", ErrInvalidAdminCode
	}

	if s.TOTPSecret != "" && !totp.Validate(totpCode, s.TOTPSecret) {
		log.Warn("admin login rejected", slog.String("reason", "totp"))
		return "", ErrInvalidTOTP
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL())),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.SessionSecret)
	if err != nil {
		return "", err
	}

	log.Info("admin logged in")
	return token, nil
}

// CheckCode compares a presented admin code against the configured one in
// constant time. An unconfigured code never matches.
func (s *AdminService) CheckCode(code string) bool {
	if s.Code == "" || code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.Code)) == 1
}

// VerifySession validates a session token minted by Login.
func (s *AdminService) VerifySession(token string) error {
	if len(s.SessionSecret) == 0 {
		return ErrInvalidAdminCode
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.SessionSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return ErrInvalidAdminCode
	}
	return nil
}
