package shared

import "context"

// Identity is the authenticated caller passed explicitly into services.
// The core never inspects a session principal; the HTTP layer resolves
// one of these and hands it down.
type Identity struct {
	UserID int64
	Name   string
	Email  string
}

// Anonymous reports whether the identity is unset.
func (id Identity) Anonymous() bool {
	return id.UserID == 0
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context for the HTTP layer.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityContextKey{}).(Identity)
	return id
}
