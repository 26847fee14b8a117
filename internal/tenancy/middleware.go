package tenancy

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Middleware binds authenticated requests to a company. It must run after
// auth.Authenticator.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
	Metrics  auth.Metrics
}

// Resolve attaches the company context and its precomputed grants, replacing
// the global-only grants set by the authenticator.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			m.fail(w, r, shared.NewAuthError(shared.KindTokenMissing, "authentication required"))
			return
		}
		res, err := m.Resolver.ResolveContext(r.Context(), p, HarvestHints(r, p))
		if err != nil {
			m.fail(w, r, err)
			return
		}
		ctx := rbac.ContextWithGrants(r.Context(), res.Grants)
		if res.Company != nil {
			ctx = ContextWithCompany(ctx, res.Company)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := shared.KindOf(err)
	if !ok {
		kind = shared.KindInternal
	}
	if m.Metrics != nil {
		m.Metrics.ObserveAuthFailure(string(kind))
	}
	if m.Logger != nil {
		if kind == shared.KindInternal {
			m.Logger.Error("tenant resolution", slog.String("path", r.URL.Path), slog.Any("error", err))
		} else {
			m.Logger.Warn("tenant resolution", slog.String("kind", string(kind)), slog.String("path", r.URL.Path))
		}
	}
	httpx.RespondError(w, err)
}
