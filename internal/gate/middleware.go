package gate

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/platform/httpx"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Middleware adapts a chain to chi. Denials are mapped to their status
// codes with generic problem bodies; verified claims are placed on the
// request context for handlers behind the gate.
func Middleware(chain *Chain, logger *slog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &Request{HTTP: r}
			out := chain.Evaluate(r.Context(), req)

			for k, vs := range out.Headers {
				for _, v := range vs {
					w.Header().Set(k, v)
				}
			}

			if !out.Allowed {
				if metrics != nil {
					metrics.ObserveGateDenied(out.Stage)
				}
				if out.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(out.RetryAfter.Seconds())))
				}
				if logger != nil {
					logger.Warn("request denied",
						slog.String("stage", out.Stage),
						slog.String("path", r.URL.Path),
						slog.Any("reason", out.Reason))
				}
				httpx.RespondError(w, out.Reason)
				return
			}

			if metrics != nil {
				metrics.ObserveGateAllowed()
			}
			if req.Claims != nil {
				r = r.WithContext(shared.ContextWithClaims(r.Context(), req.Claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}
