package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/SistemaEduas/AtendimentoMedico/internal/domain/entity"
	domainErrors "github.com/SistemaEduas/AtendimentoMedico/internal/domain/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// RoleAdmin marks sessions allowed to act on any actor and toggle manual access.
const RoleAdmin = "admin"

var authRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "assinaturas",
	Name:      "auth_rejections_total",
	Help:      "Requests rejected by session validation",
}, []string{"reason"})

// AuthUser represents an authenticated session from JWT
type AuthUser struct {
	Actor entity.Actor `json:"actor"` // zero for admin sessions without an actor
	Email string       `json:"email"`
	Role  string       `json:"role"`
}

func (u *AuthUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SessionClaims are the claims issued by the clinic application's login.
type SessionClaims struct {
	ActorKind string `json:"actor_kind"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// contextKey is used for storing user in context
type contextKey string

const (
	userContextKey contextKey = "authenticated_user"
)

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret    string
	Logger    *zap.Logger
	SkipPaths []string // Paths to skip JWT validation
}

// JWTMiddleware creates a middleware that validates session tokens
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			for _, skipPath := range config.SkipPaths {
				if strings.HasPrefix(path, skipPath) {
					return next(c)
				}
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return reject(c, "missing_header", "Authorization header required", "MISSING_AUTH_HEADER")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return reject(c, "bad_format", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
			}

			claims := &SessionClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(config.Secret), nil
			}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return reject(c, "invalid_token", "Invalid or expired token", "INVALID_TOKEN")
			}

			user, err := userFromClaims(claims)
			if err != nil {
				config.Logger.Warn("Invalid JWT claims",
					zap.Error(err),
					zap.String("path", path))
				return reject(c, "invalid_claims", "Invalid token claims", "INVALID_CLAIMS")
			}

			ctx := context.WithValue(c.Request().Context(), userContextKey, user)
			c.SetRequest(c.Request().WithContext(ctx))

			config.Logger.Debug("Session authenticated",
				zap.String("actor", user.Actor.String()),
				zap.String("role", user.Role),
				zap.String("path", path))

			return next(c)
		}
	}
}

func userFromClaims(claims *SessionClaims) (*AuthUser, error) {
	user := &AuthUser{Email: claims.Email, Role: claims.Role}

	// Admin tokens issued by the back office carry no actor
	if claims.ActorKind == "" && user.IsAdmin() {
		return user, nil
	}

	actor, err := entity.ParseActor(claims.ActorKind, claims.Subject)
	if err != nil {
		return nil, err
	}
	user.Actor = actor
	return user, nil
}

func reject(c echo.Context, reason, message, code string) error {
	authRejections.WithLabelValues(reason).Inc()
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error": message,
		"code":  code,
	})
}

// RequireAdmin allows only sessions with the admin role. Must run after JWTMiddleware.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := GetUserFromContext(c)
			if err != nil {
				authRejections.WithLabelValues("missing_session").Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "Authentication required",
					"code":  "AUTH_REQUIRED",
				})
			}
			if !user.IsAdmin() {
				authRejections.WithLabelValues("not_admin").Inc()
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "Administrator role required",
					"code":  "ADMIN_REQUIRED",
				})
			}
			return next(c)
		}
	}
}

// GetUserFromContext extracts the authenticated user from the request context
func GetUserFromContext(c echo.Context) (*AuthUser, error) {
	user, ok := c.Request().Context().Value(userContextKey).(*AuthUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("no authenticated user found in context")
	}
	return user, nil
}

// ResolveActor picks the actor a request acts on. A requested actor other than
// the session's own is only honoured for admin sessions.
func ResolveActor(user *AuthUser, requested *entity.Actor) (entity.Actor, error) {
	if requested == nil || requested.IsZero() {
		if user.Actor.IsZero() {
			return entity.Actor{}, domainErrors.ErrInvalidActor
		}
		return user.Actor, nil
	}
	if *requested == user.Actor || user.IsAdmin() {
		return *requested, nil
	}
	return entity.Actor{}, domainErrors.ErrActorMismatch
}

// WithUser stores a user in the request context. Used by tests of downstream handlers.
func WithUser(c echo.Context, user *AuthUser) {
	ctx := context.WithValue(c.Request().Context(), userContextKey, user)
	c.SetRequest(c.Request().WithContext(ctx))
}
