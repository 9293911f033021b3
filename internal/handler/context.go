package handler

import (
	"context"
	"net/http"

	"github.com/scrapegate/scrapegate/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "user"

// ContextWithUser stores the authenticated user in the context. The auth
// middleware calls this; handlers read it back with UserFromContext.
func ContextWithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from the context.
// Returns nil if the request carried no valid access token.
func UserFromContext(ctx context.Context) *domain.User {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}

func userFromContext(r *http.Request) *domain.User {
	return UserFromContext(r.Context())
}
