package gate

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-hq/meridian/internal/ratelimit"
	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/token"
)

// Stage names, used for metrics labels and deny attribution.
const (
	StageRateLimit  = "rate_limit"
	StageToken      = "token"
	StagePermission = "permission"
)

// RateLimitStage enforces a quota preset against the shared counter store.
type RateLimitStage struct {
	limiter   *ratelimit.Limiter
	preset    ratelimit.Preset
	bySubject bool
}

// RateLimitByClient keys the quota on the caller's network address.
func RateLimitByClient(limiter *ratelimit.Limiter, preset ratelimit.Preset) *RateLimitStage {
	return &RateLimitStage{limiter: limiter, preset: preset}
}

// RateLimitBySubject keys the quota on the verified subject, giving
// per-account rather than per-address buckets. Falls back to the client
// key when no claims are present yet.
func RateLimitBySubject(limiter *ratelimit.Limiter, preset ratelimit.Preset) *RateLimitStage {
	return &RateLimitStage{limiter: limiter, preset: preset, bySubject: true}
}

// Name implements Stage.
func (s *RateLimitStage) Name() string { return StageRateLimit }

// Evaluate implements Stage.
func (s *RateLimitStage) Evaluate(ctx context.Context, req *Request) Outcome {
	key := ratelimit.ClientKey(req.HTTP)
	if s.bySubject && req.Claims != nil {
		key = ratelimit.SubjectKey(req.Claims.SubjectID)
	}

	d := s.limiter.Check(ctx, key, s.preset.Max, s.preset.Window)

	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

	if !d.Allowed {
		out := Deny(StageRateLimit, shared.ErrRateLimited)
		out.RetryAfter = d.RetryAfter
		out.Headers = headers
		return out
	}
	out := Allow()
	out.Headers = headers
	return out
}

// TokenStage verifies the bearer token and publishes its claims to
// downstream stages.
type TokenStage struct {
	verifier *token.Verifier
}

// VerifyToken constructs a TokenStage.
func VerifyToken(verifier *token.Verifier) *TokenStage {
	return &TokenStage{verifier: verifier}
}

// Name implements Stage.
func (s *TokenStage) Name() string { return StageToken }

// Evaluate implements Stage.
func (s *TokenStage) Evaluate(ctx context.Context, req *Request) Outcome {
	raw, ok := bearerToken(req.HTTP)
	if !ok {
		return Deny(StageToken, shared.ErrUnauthenticated)
	}
	claims, err := s.verifier.VerifyAccess(raw)
	if err != nil {
		return Deny(StageToken, shared.ErrInvalidToken)
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		return Deny(StageToken, shared.ErrInvalidToken)
	}
	req.Claims = &shared.Claims{SubjectID: subjectID, Kind: claims.Kind}
	return Allow()
}

// PermissionStage resolves the subject's grants and applies a predicate.
type PermissionStage struct {
	resolver *rbac.Resolver
	check    func(rbac.Grants) bool
}

// RequirePermission admits subjects holding the named permission.
func RequirePermission(resolver *rbac.Resolver, name string) *PermissionStage {
	return &PermissionStage{resolver: resolver, check: func(g rbac.Grants) bool {
		return g.HasPermission(name)
	}}
}

// RequireAnyPermission admits subjects holding at least one named permission.
func RequireAnyPermission(resolver *rbac.Resolver, names ...string) *PermissionStage {
	return &PermissionStage{resolver: resolver, check: func(g rbac.Grants) bool {
		return g.HasAnyPermission(names...)
	}}
}

// RequireAllPermissions admits subjects holding every named permission.
func RequireAllPermissions(resolver *rbac.Resolver, names ...string) *PermissionStage {
	return &PermissionStage{resolver: resolver, check: func(g rbac.Grants) bool {
		return g.HasAllPermissions(names...)
	}}
}

// RequireRole admits subjects holding the named role.
func RequireRole(resolver *rbac.Resolver, name string) *PermissionStage {
	return &PermissionStage{resolver: resolver, check: func(g rbac.Grants) bool {
		return g.HasRole(name)
	}}
}

// RequireAnyRole admits subjects holding at least one named role.
func RequireAnyRole(resolver *rbac.Resolver, names ...string) *PermissionStage {
	return &PermissionStage{resolver: resolver, check: func(g rbac.Grants) bool {
		return g.HasAnyRole(names...)
	}}
}

// RequireAllRoles admits subjects holding every named role.
func RequireAllRoles(resolver *rbac.Resolver, names ...string) *PermissionStage {
	return &PermissionStage{resolver: resolver, check: func(g rbac.Grants) bool {
		return g.HasAllRoles(names...)
	}}
}

// Name implements Stage.
func (s *PermissionStage) Name() string { return StagePermission }

// Evaluate implements Stage.
func (s *PermissionStage) Evaluate(ctx context.Context, req *Request) Outcome {
	if req.Claims == nil {
		return Deny(StagePermission, shared.ErrUnauthenticated)
	}
	grants, err := s.resolver.Grants(ctx, req.Claims.SubjectID)
	if err != nil {
		if errors.Is(err, shared.ErrSubjectNotFound) {
			return Deny(StagePermission, shared.ErrSubjectNotFound)
		}
		// Authorization needs ground truth; a store failure is fatal to
		// the request, never fail-open.
		return Deny(StagePermission, err)
	}
	if !s.check(grants) {
		return Deny(StagePermission, shared.ErrForbidden)
	}
	return Allow()
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}
