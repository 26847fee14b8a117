package app

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/observability"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	"github.com/odyssey-erp/odyssey-tenancy/internal/users"
	"github.com/odyssey-erp/odyssey-tenancy/jobs"
)

// Stores are the persistence collaborators of the HTTP process.
type Stores struct {
	Users       auth.UserStore
	Sessions    auth.SessionStore
	Revocations auth.RevocationList
	Companies   tenancy.AdminRepository
	Members     users.RepositoryPort
}

// ServerDeps groups everything NewServer needs besides the stores.
type ServerDeps struct {
	Config     *Config
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	Principals cache.Store[auth.Principal]
	JobHandler *jobs.Handler
}

// Server is the assembled HTTP process.
type Server struct {
	Handler     http.Handler
	Resolver    *auth.PrincipalResolver
	AuthService *auth.Service
}

// NewServer wires the authorization engine and its endpoints.
func NewServer(deps ServerDeps, stores Stores) *Server {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Typed nil metrics would defeat the nil checks downstream.
	var metrics auth.Metrics
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}

	revocations := stores.Revocations
	if revocations == nil {
		logger.Warn("no shared revocation list, logouts are enforced on this instance only")
		revocations = auth.NewMemoryRevocationList(cfg.TokenTTL, nil)
	}

	policy := auth.StatusPolicy{RequireConfirmed: cfg.RequireConfirmed, AllowPending: cfg.AllowPendingAccounts}
	secrets := auth.StaticSecret(cfg.JWTSecret)

	resolver := auth.NewPrincipalResolver(stores.Users, deps.Principals, auth.ResolverConfig{
		TTL:    cfg.PrincipalCacheTTL,
		Policy: policy,
	}, logger, metrics)
	verifier := auth.NewTokenVerifier(auth.VerifierConfig{
		Secrets:     secrets,
		Issuer:      cfg.JWTIssuer,
		Revocations: revocations,
	})
	authn := auth.NewAuthenticator(verifier, resolver, logger, metrics)

	authService := auth.NewService(auth.ServiceDeps{
		Users:       stores.Users,
		Sessions:    stores.Sessions,
		Issuer:      auth.NewTokenIssuer(secrets, cfg.JWTIssuer, cfg.TokenTTL, nil),
		Revocations: revocations,
		Invalidator: resolver,
		Policy:      policy,
		Logger:      logger,
	})
	authHandler := auth.NewHandler(logger, authService, authn)
	authHandler.LoginLimit = cfg.LoginRate

	guards := rbac.Middleware{Logger: logger}
	companiesHandler := tenancy.NewHandler(logger, tenancy.NewService(stores.Companies, resolver), guards)
	usersHandler := users.NewHandler(logger, users.NewService(stores.Members, resolver), guards)

	router := NewRouter(RouterParams{
		Logger:        logger,
		Config:        cfg,
		Authenticator: authn,
		Tenancy: tenancy.Middleware{
			Resolver: tenancy.NewResolver(stores.Companies),
			Logger:   logger,
			Metrics:  metrics,
		},
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		CompaniesHandler: companiesHandler,
		JobHandler:       deps.JobHandler,
		Metrics:          deps.Metrics,
	})
	return &Server{Handler: router, Resolver: resolver, AuthService: authService}
}
