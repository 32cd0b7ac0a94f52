package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/gate"
	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/ratelimit"
	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/token"
	"github.com/meridian-hq/meridian/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Limiter      *ratelimit.Limiter
	Verifier     *token.Verifier
	Resolver     *rbac.Resolver
	AuthHandler  *auth.Handler
	UsersHandler *users.Handler
	RBACHandler  *rbac.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults. Each route
// group declares its own gate chain; global endpoints simply carry none of
// the auth stages.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	defaultPreset := ratelimit.PresetLenient
	if params.Config != nil {
		defaultPreset = ratelimit.Preset{Max: params.Config.RateLimitMax, Window: params.Config.RateLimitWindow}
	}

	gated := func(stages ...gate.Stage) func(http.Handler) http.Handler {
		return gate.Middleware(gate.NewChain(stages...), params.Logger, params.Metrics)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		// Credential endpoints get the strict preset and no auth stages.
		r.Group(func(r chi.Router) {
			r.Use(gated(gate.RateLimitByClient(params.Limiter, ratelimit.PresetStrict)))
			params.AuthHandler.MountRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(gated(
				gate.VerifyToken(params.Verifier),
				gate.RateLimitBySubject(params.Limiter, defaultPreset),
			))
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(gated(
					gate.VerifyToken(params.Verifier),
					gate.RateLimitBySubject(params.Limiter, defaultPreset),
					gate.RequireAnyPermission(params.Resolver, shared.PermUsersView, shared.PermUsersEdit),
				))
				params.UsersHandler.MountReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(gated(
					gate.VerifyToken(params.Verifier),
					gate.RateLimitBySubject(params.Limiter, defaultPreset),
					gate.RequirePermission(params.Resolver, shared.PermUsersEdit),
				))
				params.UsersHandler.MountWriteRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(gated(
					gate.VerifyToken(params.Verifier),
					gate.RateLimitBySubject(params.Limiter, defaultPreset),
					gate.RequirePermission(params.Resolver, shared.PermRolesEdit),
				))
				params.RBACHandler.MountUserAssignments(r)
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(gated(
					gate.VerifyToken(params.Verifier),
					gate.RateLimitBySubject(params.Limiter, defaultPreset),
					gate.RequireAnyPermission(params.Resolver, shared.PermRolesView, shared.PermRolesEdit),
				))
				params.RBACHandler.MountRoleReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(gated(
					gate.VerifyToken(params.Verifier),
					gate.RateLimitBySubject(params.Limiter, defaultPreset),
					gate.RequirePermission(params.Resolver, shared.PermRolesEdit),
				))
				params.RBACHandler.MountRoleWriteRoutes(r)
			})
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(gated(
					gate.VerifyToken(params.Verifier),
					gate.RateLimitBySubject(params.Limiter, defaultPreset),
					gate.RequireAnyPermission(params.Resolver, shared.PermPermissionsView, shared.PermRolesEdit),
				))
				params.RBACHandler.MountPermissionReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(gated(
					gate.VerifyToken(params.Verifier),
					gate.RateLimitBySubject(params.Limiter, defaultPreset),
					gate.RequirePermission(params.Resolver, shared.PermRolesEdit),
				))
				params.RBACHandler.MountPermissionWriteRoutes(r)
			})
		})
	})

	return r
}
