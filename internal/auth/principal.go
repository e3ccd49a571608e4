// Package auth resolves operator credentials into a request-scoped Principal.
package auth

import (
	"context"
	"time"
)

// Principal is the authenticated operator behind a request. Handlers pass it
// explicitly to the review gateway; a nil Principal means an anonymous caller.
type Principal struct {
	OperatorID uint
	Username   string
	TokenID    string
	ExpiresAt  time.Time
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the Principal stored in ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
