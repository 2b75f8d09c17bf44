// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/cedricperpignand1/bbbmailer/app/dto"
	"github.com/cedricperpignand1/bbbmailer/app/services"
	"github.com/cedricperpignand1/bbbmailer/config"
)

const (
	subjectLocal           = "auth_subject"
	claimsLocal            = "token_claims"
	requestIDLocal         = "request_id"
	defaultCronHeader      = "X-Cron-Trigger"
	defaultCronHeaderValue = "1"

	// subjects recorded for non-operator callers
	SubjectCron   = "cron"
	SubjectSecret = "trigger-secret"
)

// AuthMiddleware guards trigger and operator endpoints
type AuthMiddleware struct {
	tokenService    services.TokenService
	triggerSecret   string
	trustCronHeader bool
	cronHeader      string
	cronValue       string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, cfg config.AuthConfig) *AuthMiddleware {
	header := cfg.CronHeader
	if header == "" {
		header = defaultCronHeader
	}
	value := cfg.CronHeaderValue
	if value == "" {
		value = defaultCronHeaderValue
	}
	return &AuthMiddleware{
		tokenService:    tokenService,
		triggerSecret:   cfg.TriggerSecret,
		trustCronHeader: cfg.TrustCronHeader,
		cronHeader:      header,
		cronValue:       value,
	}
}

// Operator requires a valid operator bearer token
func (m *AuthMiddleware) Operator() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, code, msg := bearerToken(c)
		if token == "" {
			return unauthorized(c, code, msg)
		}
		claims, err := m.tokenService.ValidateOperatorToken(token)
		if err != nil {
			code, msg := tokenErrorCode(err)
			return unauthorized(c, code, msg)
		}
		m.authenticated(c, claims.Subject)
		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}

// Trigger accepts the scheduler's callers: a trusted cron header, the shared
// trigger secret as a bearer token or ?key= parameter, or an operator token.
func (m *AuthMiddleware) Trigger() fiber.Handler {
	return func(c fiber.Ctx) error {
		if m.trustCronHeader && c.Get(m.cronHeader) == m.cronValue {
			m.authenticated(c, SubjectCron)
			return c.Next()
		}

		if m.matchesSecret(c.Query("key")) {
			m.authenticated(c, SubjectSecret)
			return c.Next()
		}

		token, code, msg := bearerToken(c)
		if token == "" {
			return unauthorized(c, code, msg)
		}
		if m.matchesSecret(token) {
			m.authenticated(c, SubjectSecret)
			return c.Next()
		}
		claims, err := m.tokenService.ValidateOperatorToken(token)
		if err != nil {
			code, msg := tokenErrorCode(err)
			return unauthorized(c, code, msg)
		}
		m.authenticated(c, claims.Subject)
		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}

func (m *AuthMiddleware) matchesSecret(candidate string) bool {
	if m.triggerSecret == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(m.triggerSecret)) == 1
}

func (m *AuthMiddleware) authenticated(c fiber.Ctx, subject string) {
	c.Locals(subjectLocal, subject)
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		c.Locals(requestIDLocal, requestID)
	}
}

func bearerToken(c fiber.Ctx) (token, code, message string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", "MISSING_AUTHORIZATION_HEADER", "Authorization header is required"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "INVALID_AUTHORIZATION_FORMAT", "Invalid authorization header format. Expected 'Bearer <token>'"
	}
	token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "MISSING_ACCESS_TOKEN", "Access token is required"
	}
	return token, "", ""
}

func tokenErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, services.ErrTokenExpired):
		return "TOKEN_EXPIRED", "Access token has expired"
	case errors.Is(err, services.ErrTokenInvalid):
		return "TOKEN_INVALID", "Invalid access token"
	default:
		return "TOKEN_VALIDATION_FAILED", "Token validation failed"
	}
}

func unauthorized(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// GetSubjectFromContext returns who authenticated the request
func GetSubjectFromContext(c fiber.Ctx) (string, bool) {
	subject, ok := c.Locals(subjectLocal).(string)
	return subject, ok && subject != ""
}

// GetTokenClaimsFromContext extracts operator claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.OperatorClaims, bool) {
	claims, ok := c.Locals(claimsLocal).(*services.OperatorClaims)
	return claims, ok
}
