// Package middleware contains HTTP middleware for the scrapegate API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/scrapegate/scrapegate/internal/handler"
	"github.com/scrapegate/scrapegate/internal/service"
)

// AuthMiddleware authenticates requests that carry a bearer access token.
type AuthMiddleware struct {
	userService service.UserService
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(userService service.UserService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		logger:      logger,
	}
}

// WithUser loads the user from the Authorization header if a valid bearer
// token is present, then continues regardless of authentication status.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.VerifyAccessToken(r.Context(), token)
		if err != nil {
			// Bad or expired token: continue unauthenticated. RequireUser
			// rejects downstream if the route needs a user.
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(handler.ContextWithUser(r.Context(), user)))
	})
}

// RequireUser rejects requests without an authenticated user. Must run
// after WithUser.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler.UserFromContext(r.Context()) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from an "Authorization: Bearer x" header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// Stack composes middleware. The first middleware in the list is the
// outermost: it runs first on the request and last on the response.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
