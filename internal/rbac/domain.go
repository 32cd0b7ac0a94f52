package rbac

import (
	"strings"
	"time"
)

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID    int64
	RoleID    int64
	CreatedAt time.Time
}

// Grants holds a subject's effective role and permission sets, deduplicated
// by entity ID. A permission reached via a role and the same permission
// granted directly are one entry. Grants are computed per request and never
// cached, so assignment edits are visible on the next check.
type Grants struct {
	roles       map[int64]Role
	permissions map[int64]Permission
	roleNames   map[string]struct{}
	permNames   map[string]struct{}
}

// NewGrants builds a Grants set from role and permission rows.
func NewGrants(roles []Role, permissions []Permission) Grants {
	g := Grants{
		roles:       make(map[int64]Role, len(roles)),
		permissions: make(map[int64]Permission, len(permissions)),
		roleNames:   make(map[string]struct{}, len(roles)),
		permNames:   make(map[string]struct{}, len(permissions)),
	}
	for _, r := range roles {
		if _, ok := g.roles[r.ID]; ok {
			continue
		}
		g.roles[r.ID] = r
		g.roleNames[normalize(r.Name)] = struct{}{}
	}
	for _, p := range permissions {
		if _, ok := g.permissions[p.ID]; ok {
			continue
		}
		g.permissions[p.ID] = p
		g.permNames[normalize(p.Name)] = struct{}{}
	}
	return g
}

// Roles returns the deduplicated role set.
func (g Grants) Roles() []Role {
	out := make([]Role, 0, len(g.roles))
	for _, r := range g.roles {
		out = append(out, r)
	}
	return out
}

// Permissions returns the deduplicated effective permission set.
func (g Grants) Permissions() []Permission {
	out := make([]Permission, 0, len(g.permissions))
	for _, p := range g.permissions {
		out = append(out, p)
	}
	return out
}

// HasRole reports whether the named role is granted.
func (g Grants) HasRole(name string) bool {
	_, ok := g.roleNames[normalize(name)]
	return ok
}

// HasAnyRole reports whether at least one named role is granted.
// An empty list is vacuously false.
func (g Grants) HasAnyRole(names ...string) bool {
	for _, n := range names {
		if g.HasRole(n) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether every named role is granted.
// An empty list is vacuously true.
func (g Grants) HasAllRoles(names ...string) bool {
	for _, n := range names {
		if !g.HasRole(n) {
			return false
		}
	}
	return true
}

// HasPermission reports whether the named permission is effective.
func (g Grants) HasPermission(name string) bool {
	_, ok := g.permNames[normalize(name)]
	return ok
}

// HasAnyPermission reports whether at least one named permission is
// effective. An empty list is vacuously false.
func (g Grants) HasAnyPermission(names ...string) bool {
	for _, n := range names {
		if g.HasPermission(n) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every named permission is effective.
// An empty list is vacuously true.
func (g Grants) HasAllPermissions(names ...string) bool {
	for _, n := range names {
		if !g.HasPermission(n) {
			return false
		}
	}
	return true
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
