// Package middleware provides HTTP middleware for the marketplace layer.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Meridian-Network/marketplace_layer/internal/errors"
	"github.com/Meridian-Network/marketplace_layer/internal/httputil"
	"github.com/Meridian-Network/marketplace_layer/pkg/logger"
)

type contextKey string

const callerKey contextKey = "caller"

// callerHeader names the development-mode identity header accepted when JWT
// verification is disabled.
const callerHeader = "X-Caller"

// Claims are the JWT claims carried by caller tokens. Address is the caller's
// settlement account identity; when absent the registered subject is used.
type Claims struct {
	Address string `json:"address,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies HS256 bearer tokens and injects the caller identity
// into the request context. An empty secret disables verification and trusts
// the X-Caller header instead, for local development only.
type AuthMiddleware struct {
	secret    []byte
	log       *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates an authentication middleware.
func NewAuthMiddleware(secret string, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{
		secret:    []byte(secret),
		log:       log,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		if len(m.secret) == 0 {
			caller := strings.TrimSpace(r.Header.Get(callerHeader))
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("missing Authorization header"))
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.Unauthorized("invalid Authorization header format"))
			return
		}

		caller, err := m.validateToken(parts[1])
		if err != nil {
			m.log.WithError(err).Warn("token validation failed")
			m.respondError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m *AuthMiddleware) validateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Unauthorized("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return "", errors.Unauthorized("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.Unauthorized("invalid token claims")
	}

	caller := claims.Address
	if caller == "" {
		caller = claims.Subject
	}
	if caller == "" {
		return "", errors.Unauthorized("token carries no caller identity")
	}
	return caller, nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnauthorized
	if svcErr, ok := err.(*errors.ServiceError); ok && svcErr.HTTPStatus != 0 {
		status = svcErr.HTTPStatus
	}
	httputil.WriteError(w, status, err)
	m.log.WithField("path", r.URL.Path).
		WithField("method", r.Method).
		WithError(err).
		Warn("authentication failed")
}

// IssueToken mints an HS256 caller token. Used by tests and tooling.
func IssueToken(secret, address string, registered jwt.RegisteredClaims) (string, error) {
	claims := Claims{Address: address, RegisteredClaims: registered}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// WithCaller returns a context carrying the caller identity.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext extracts the authenticated caller identity, if any.
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey).(string)
	return caller
}
