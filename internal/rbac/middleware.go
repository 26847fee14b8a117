package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Grants is the permission snapshot attached to a request. CompanyID is
// uuid.Nil while no company is bound.
type Grants struct {
	Subject   Subject
	CompanyID uuid.UUID
	Global    PermissionSet
	Company   PermissionSet
}

// NewGrants precomputes the snapshot for subject scoped to companyID.
func NewGrants(s Subject, companyID uuid.UUID) Grants {
	g := Grants{Subject: s, CompanyID: companyID, Global: GlobalPermissions(s), Company: PermissionSet{}}
	if companyID != uuid.Nil {
		g.Company = CompanyPermissions(s, companyID)
	}
	return g
}

// HasCompany reports whether a company is bound.
func (g Grants) HasCompany() bool {
	return g.CompanyID != uuid.Nil
}

type grantsContextKey struct{}

// ContextWithGrants stores the snapshot in ctx.
func ContextWithGrants(ctx context.Context, g Grants) context.Context {
	return context.WithValue(ctx, grantsContextKey{}, g)
}

// GrantsFromContext extracts the snapshot from ctx.
func GrantsFromContext(ctx context.Context) (Grants, bool) {
	g, ok := ctx.Value(grantsContextKey{}).(Grants)
	return g, ok
}

// CheckGlobalPermission returns nil when the request holds perm globally.
func CheckGlobalPermission(ctx context.Context, perm string) error {
	g, ok := GrantsFromContext(ctx)
	if !ok {
		return shared.ErrTokenMissing
	}
	if g.Global.Has(perm) {
		return nil
	}
	return shared.NewAuthError(shared.KindPermissionDenied, "missing permission "+perm)
}

// CheckCompanyContext returns the bound company or CompanyRequired.
func CheckCompanyContext(ctx context.Context) (uuid.UUID, error) {
	g, ok := GrantsFromContext(ctx)
	if !ok {
		return uuid.Nil, shared.ErrTokenMissing
	}
	if !g.HasCompany() {
		return uuid.Nil, shared.NewAuthError(shared.KindCompanyRequired, "company context required")
	}
	return g.CompanyID, nil
}

// CheckCompanyPermission returns nil when the request holds perm in its bound company.
func CheckCompanyPermission(ctx context.Context, perm string) error {
	if _, err := CheckCompanyContext(ctx); err != nil {
		return err
	}
	g, _ := GrantsFromContext(ctx)
	if g.Company.Has(perm) {
		return nil
	}
	return shared.NewAuthError(shared.KindPermissionDenied, "missing permission "+perm)
}

// Middleware wires RBAC authorization guards for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireGlobalPermission rejects requests lacking the global permission.
func (m Middleware) RequireGlobalPermission(perm string) func(http.Handler) http.Handler {
	return m.guard("require global permission", func(r *http.Request) error {
		return CheckGlobalPermission(r.Context(), perm)
	})
}

// RequireCompanyPermission rejects requests lacking perm in the bound company.
func (m Middleware) RequireCompanyPermission(perm string) func(http.Handler) http.Handler {
	return m.guard("require company permission", func(r *http.Request) error {
		return CheckCompanyPermission(r.Context(), perm)
	})
}

// RequireCompanyContext rejects requests without a bound company.
func (m Middleware) RequireCompanyContext() func(http.Handler) http.Handler {
	return m.guard("require company context", func(r *http.Request) error {
		_, err := CheckCompanyContext(r.Context())
		return err
	})
}

// RequireAny passes when any of perms is held, globally or in the bound company.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard("require any", func(r *http.Request) error {
		if len(normalized) == 0 {
			return nil
		}
		g, ok := GrantsFromContext(r.Context())
		if !ok {
			return shared.ErrTokenMissing
		}
		for _, p := range normalized {
			if g.Global.Has(p) || g.Company.Has(p) {
				return nil
			}
		}
		return shared.NewAuthError(shared.KindPermissionDenied, "missing permission")
	})
}

func (m Middleware) guard(name string, check func(*http.Request) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(r); err != nil {
				if m.Logger != nil {
					kind, _ := shared.KindOf(err)
					m.Logger.Warn("rbac "+name, slog.String("kind", string(kind)), slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
