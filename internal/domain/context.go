package domain

import "context"

type userKey struct{}

// ContextUser carries the authenticated caller through request context.
type ContextUser struct {
	ID    string
	Email string
}

// WithUser stores a ContextUser in the context.
func WithUser(ctx context.Context, u ContextUser) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext extracts the ContextUser from the context.
func UserFromContext(ctx context.Context) (ContextUser, bool) {
	u, ok := ctx.Value(userKey{}).(ContextUser)
	return u, ok
}
