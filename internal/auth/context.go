// Package auth provides request identity: bearer token verification,
// operator token hashing and the request-scoped AuthContext.
package auth

import (
	"context"

	"github.com/humanizer/humanizer/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// authContextKey is the context key for storing AuthContext.
	authContextKey contextKey = "auth_context"
	// tokenContextKey holds the raw bearer token, used for sign-out.
	tokenContextKey contextKey = "auth_token"
)

// ContextWithAuth adds AuthContext to the context.
func ContextWithAuth(ctx context.Context, auth *model.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// AuthFromContext retrieves AuthContext from the context.
// Returns nil if not present.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	auth, ok := ctx.Value(authContextKey).(*model.AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// UserIDFromContext is a convenience function to get user ID from context.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	auth := AuthFromContext(ctx)
	if auth == nil {
		return ""
	}
	return auth.UserID
}

// ContextWithToken stores the verified token so handlers can revoke it.
func ContextWithToken(ctx context.Context, token *VerifiedToken) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext returns the verified token, or nil for operator requests.
func TokenFromContext(ctx context.Context) *VerifiedToken {
	tok, _ := ctx.Value(tokenContextKey).(*VerifiedToken)
	return tok
}
