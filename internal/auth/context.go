// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating the verified principal via context

package auth

import (
	"context"
	"slices"
	"time"
)

// Principal is the verified identity behind a bearer token.
type Principal struct {
	Subject   string
	ClientID  string
	Scopes    []string
	ExpiresAt *time.Time // nil for non-expiring tokens
}

// HasScopes reports whether p was granted every scope in required.
func (p *Principal) HasScopes(required []string) bool {
	for _, s := range required {
		if !slices.Contains(p.Scopes, s) {
			return false
		}
	}
	return true
}

// authContextKey is the key type for storing the Principal in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the Principal attached.
func WithAuth(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, authContextKey{}, p)
}

// FromContext retrieves the Principal from the context, returning nil if not present.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(authContextKey{}).(*Principal)
	return p
}
