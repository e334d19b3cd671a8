package rbac

import (
	"context"
	"slices"
	"strings"
)

// Checker answers whether a role holds a permission. Grants are exact
// ("course:view"), resource wildcards ("course:*") or "*".
type Checker struct {
	RolePermissions map[string][]string
}

// NewChecker uses RolePermissions when rp is nil.
func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	return slices.ContainsFunc(c.RolePermissions[role], func(grant string) bool {
		return grants(grant, perm)
	})
}

func (c *Checker) Any(role string, perms ...string) bool {
	return slices.ContainsFunc(perms, func(p string) bool { return c.Has(role, p) })
}

func grants(grant, perm string) bool {
	if grant == "*" || grant == perm {
		return true
	}
	resource, action, ok := strings.Cut(grant, ":")
	return ok && action == "*" && strings.HasPrefix(perm, resource+":")
}

type roleKey struct{}

// WithRole stores the caller's role, lowercased to match the policy table.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, strings.ToLower(role))
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
