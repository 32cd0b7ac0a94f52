package rbac

import (
	"context"
	"fmt"

	"github.com/meridian-hq/meridian/internal/shared"
)

// GrantsSource is the slice of the repository the resolver needs.
type GrantsSource interface {
	SubjectExists(ctx context.Context, userID int64) (bool, error)
	SubjectRoles(ctx context.Context, userID int64) ([]Role, error)
	SubjectPermissions(ctx context.Context, userID int64) ([]Permission, error)
}

// Resolver computes a subject's effective role and permission sets. It holds
// no state between calls: every decision re-reads the database so concurrent
// assignment edits take effect on the very next check.
type Resolver struct {
	source GrantsSource
}

// NewResolver constructs a Resolver.
func NewResolver(source GrantsSource) *Resolver {
	return &Resolver{source: source}
}

// Grants loads the effective sets for a subject. A missing user row yields
// ErrSubjectNotFound, which callers surface as forbidden rather than
// unauthenticated: the token was valid once, the account is gone.
// Store errors are fatal; an authorization decision cannot be made without
// ground truth.
func (r *Resolver) Grants(ctx context.Context, subjectID int64) (Grants, error) {
	exists, err := r.source.SubjectExists(ctx, subjectID)
	if err != nil {
		return Grants{}, fmt.Errorf("rbac: subject lookup: %w", err)
	}
	if !exists {
		return Grants{}, shared.ErrSubjectNotFound
	}

	roles, err := r.source.SubjectRoles(ctx, subjectID)
	if err != nil {
		return Grants{}, fmt.Errorf("rbac: load roles: %w", err)
	}
	perms, err := r.source.SubjectPermissions(ctx, subjectID)
	if err != nil {
		return Grants{}, fmt.Errorf("rbac: load permissions: %w", err)
	}

	return NewGrants(roles, perms), nil
}
