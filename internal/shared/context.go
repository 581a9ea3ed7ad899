package shared

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated tenant extracted from the bearer token.
// MedicoID scopes every row the request may touch.
type Identity struct {
	MedicoID uuid.UUID
	Email    string
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context. The zero value
// means the request was not authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
