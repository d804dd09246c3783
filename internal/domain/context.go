package domain

import (
	"context"
	"slices"
)

type principalKey struct{}

// ContextPrincipal carries the authenticated identity through request context.
type ContextPrincipal struct {
	Name          string
	Organizations []string // "*" grants every organization
}

// CanAccess reports whether the principal may query datasets of the organization.
func (p ContextPrincipal) CanAccess(organization string) bool {
	return slices.Contains(p.Organizations, "*") || slices.Contains(p.Organizations, organization)
}

// WithPrincipal stores a ContextPrincipal in the context.
func WithPrincipal(ctx context.Context, p ContextPrincipal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the ContextPrincipal from the context.
func PrincipalFromContext(ctx context.Context) (ContextPrincipal, bool) {
	p, ok := ctx.Value(principalKey{}).(ContextPrincipal)
	return p, ok
}
