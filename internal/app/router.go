package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
	"github.com/odyssey-erp/odyssey-tenancy/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Authenticator    *auth.Authenticator
	Tenancy          tenancy.Middleware
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	CompaniesHandler *tenancy.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Odyssey defaults.
//
//	/auth                               login, logout, me
//	/admin/users                        platform user administration
//	/admin/companies                    company suspension
//	/companies/current                  the resolved tenant
//	/companies/{companyId}/members      company member administration
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Authenticator.Require)

		if params.UsersHandler != nil {
			r.Route("/admin/users", params.UsersHandler.MountAdminRoutes)
		}
		if params.CompaniesHandler != nil {
			r.Route("/admin/companies", params.CompaniesHandler.MountAdminRoutes)
		}

		r.Route("/companies", func(r chi.Router) {
			if params.CompaniesHandler != nil {
				r.Group(func(r chi.Router) {
					r.Use(params.Tenancy.Resolve)
					params.CompaniesHandler.MountTenantRoutes(r)
				})
			}
			// Tenant resolution runs below the {companyId} segment so the
			// path parameter is visible to hint harvesting.
			if params.UsersHandler != nil {
				r.Route("/{companyId}", func(r chi.Router) {
					r.Use(params.Tenancy.Resolve)
					r.Route("/members", params.UsersHandler.MountMemberRoutes)
				})
			}
		})
	})

	return r
}
