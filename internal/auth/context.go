package auth

import (
	"context"

	"github.com/dritonf/cerdhe/internal/token"
)

type contextKey struct{}

// WithPrincipal stores the authenticated caller's identity on the context.
func WithPrincipal(ctx context.Context, p token.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal set by the auth middleware, if any.
func FromContext(ctx context.Context) (token.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(token.Principal)
	return p, ok
}

func UserID(ctx context.Context) int64 {
	p, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return p.UserID
}
