// Package middleware provides authentication, logging, metrics and rate limiting middleware.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"campusboard/internal/config"
	"campusboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// CallerLocalsKey is the fiber locals key holding the request's models.Caller.
const CallerLocalsKey = "caller"

// Claims is the signed credential issued by the external identity service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator decodes caller credentials. It never issues them.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
}

// NewAuthenticator builds an Authenticator from the JWT settings in cfg.
func NewAuthenticator(cfg *config.Config) *Authenticator {
	return &Authenticator{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		audience: cfg.JWTAudience,
	}
}

// ParseToken validates a signed token and returns the caller it identifies.
func (a *Authenticator) ParseToken(tokenString string) (models.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return models.Caller{}, errors.New("invalid or expired token")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return models.Caller{}, errors.New("invalid subject claim")
	}

	return models.Caller{UserID: uint(userID), Role: models.ParseRole(claims.Role)}, nil
}

// RequireCaller rejects requests without a valid credential.
func (a *Authenticator) RequireCaller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		caller, err := a.ParseToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		SetCaller(c, caller)
		return c.Next()
	}
}

// OptionalCaller attaches the caller when a valid credential is present and
// otherwise continues anonymously.
func (a *Authenticator) OptionalCaller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c); tokenString != "" {
			if caller, err := a.ParseToken(tokenString); err == nil {
				SetCaller(c, caller)
			}
		}
		return c.Next()
	}
}

// RequireModerator rejects callers without a moderating role.
// Must be placed after RequireCaller.
func RequireModerator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := CallerFrom(c)
		if !caller.Authenticated() {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !caller.IsModerator() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Moderator access required"))
		}
		return c.Next()
	}
}

// SetCaller stores the caller in locals and in the user context for logging.
func SetCaller(c *fiber.Ctx, caller models.Caller) {
	c.Locals(CallerLocalsKey, caller)
	c.Locals("userID", caller.UserID)
	ctx := context.WithValue(c.UserContext(), UserIDKey, caller.UserID)
	ctx = context.WithValue(ctx, RoleKey, string(caller.Role))
	c.SetUserContext(ctx)
}

// CallerFrom returns the request's caller, anonymous if none was attached.
func CallerFrom(c *fiber.Ctx) models.Caller {
	if caller, ok := c.Locals(CallerLocalsKey).(models.Caller); ok {
		return caller
	}
	return models.Caller{}
}

func bearerToken(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	// Browsers cannot set headers on websocket upgrades.
	if strings.HasPrefix(c.Path(), "/api/ws") {
		return c.Query("token")
	}
	return ""
}
