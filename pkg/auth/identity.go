package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a bearer token cannot be resolved to a
// user identity.
var ErrUnauthorized = errors.New("auth: invalid token")

// Identity is the stable, verified caller identity. Tokens are consumed at
// the boundary and never stored.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

// Verifier resolves an opaque bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type ctxIdentityKey struct{}

// WithIdentity injects the verified identity into the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey{}, id)
}

// IdentityFromContext returns the verified identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if v := ctx.Value(ctxIdentityKey{}); v != nil {
		if id, ok := v.(Identity); ok {
			return id, true
		}
	}
	return Identity{}, false
}
