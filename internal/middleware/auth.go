package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/use-lumina/lumina/internal/config"
)

// ContextKey type for context keys
type ContextKey string

const (
	ContextKeySubject  ContextKey = "subject"
	ContextKeyAuthType ContextKey = "authType"
)

// AuthType represents the type of authentication used
type AuthType string

const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeJWT    AuthType = "jwt"
)

// AuthMiddleware validates ingest and query credentials. Two forms are
// accepted on every protected route: a static API key or a signed JWT.
type AuthMiddleware struct {
	// keyHashes are SHA-256 digests of the configured API keys so that
	// comparisons are constant-time over fixed-length values.
	keyHashes [][32]byte
	jwtSecret []byte
}

// NewAuthMiddleware creates a new auth middleware from static configuration
func NewAuthMiddleware(cfg config.AuthConfig) *AuthMiddleware {
	m := &AuthMiddleware{
		jwtSecret: []byte(cfg.JWTSecret),
	}
	for _, key := range cfg.APIKeys {
		m.keyHashes = append(m.keyHashes, sha256.Sum256([]byte(key)))
	}
	return m
}

// RequireAuth validates either API key or JWT authentication
func (m *AuthMiddleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractCredential(c)
		if token == "" {
			return unauthorized(c, "authentication required")
		}

		if m.validAPIKey(token) {
			c.Locals(string(ContextKeyAuthType), AuthTypeAPIKey)
			return c.Next()
		}

		if subject, ok := m.validJWT(token); ok {
			c.Locals(string(ContextKeySubject), subject)
			c.Locals(string(ContextKeyAuthType), AuthTypeJWT)
			return c.Next()
		}

		return unauthorized(c, "invalid credentials")
	}
}

func (m *AuthMiddleware) validAPIKey(token string) bool {
	if len(m.keyHashes) == 0 {
		return false
	}
	digest := sha256.Sum256([]byte(token))
	matched := false
	// Compare against every configured key so timing does not reveal
	// which one matched.
	for i := range m.keyHashes {
		if subtle.ConstantTimeCompare(digest[:], m.keyHashes[i][:]) == 1 {
			matched = true
		}
	}
	return matched
}

func (m *AuthMiddleware) validJWT(token string) (string, bool) {
	if len(m.jwtSecret) == 0 {
		return "", false
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", false
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", false
	}
	return subject, true
}

// extractCredential pulls the credential from the Authorization header or
// the X-API-Key header.
func extractCredential(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if apiKey := c.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	return ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "Unauthorized",
		"message": message,
	})
}

// GetAuthType gets the authentication type from context
func GetAuthType(c *fiber.Ctx) (AuthType, bool) {
	authType, ok := c.Locals(string(ContextKeyAuthType)).(AuthType)
	return authType, ok
}

// GetSubject gets the JWT subject from context, if JWT auth was used
func GetSubject(c *fiber.Ctx) (string, bool) {
	subject, ok := c.Locals(string(ContextKeySubject)).(string)
	return subject, ok
}
