package domain

import "context"

// Principal is the verified identity attached to a single request.
type Principal struct {
	AccountID string `json:"accountId"`
	Role      Role   `json:"role"`
}

type principalKey struct{}

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal admitted for the current request, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RoleSet is the static set of roles permitted on a protected operation.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Allows reports whether r is a member of the set.
func (s RoleSet) Allows(r Role) bool {
	_, ok := s[r]
	return ok
}
