// Package tenantctx propagates the active tenant identifier through
// context.Context. The tenant is resolved once at request entry and read
// by every tenant-scoped operation below it; it is never stored in
// struct fields or globals, which keeps concurrent requests isolated.
package tenantctx

import (
	"context"
	"errors"
)

// ErrTenantNotSet is returned when a tenant-scoped operation runs on a
// context without a tenant. This is an invariant violation: the request
// middleware resolves the tenant before any scoped work starts.
var ErrTenantNotSet = errors.New("tenant context not set")

type contextKey struct{}

// WithTenant returns a child context carrying the given tenant ID.
func WithTenant(ctx context.Context, tenantID uint64) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// From returns the tenant ID carried by the context, if any.
// Use this at read sites that may legitimately run before the tenant is
// resolved (health checks, platform-level operations).
func From(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(contextKey{}).(uint64)
	return id, ok
}

// Require returns the tenant ID or ErrTenantNotSet.
// Use this inside tenant-scoped operations where a missing tenant means
// a broken call chain.
func Require(ctx context.Context) (uint64, error) {
	id, ok := From(ctx)
	if !ok {
		return 0, ErrTenantNotSet
	}

	return id, nil
}

// Has reports whether the context carries a tenant.
func Has(ctx context.Context) bool {
	_, ok := From(ctx)
	return ok
}
