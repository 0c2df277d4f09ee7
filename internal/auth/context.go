// ABOUTME: Request-scoped identity propagation for HTTP handlers.

package auth

import "context"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	Subject      string
	Capabilities []string
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the attached identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
