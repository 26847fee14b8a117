package tenancy

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Resolution is the outcome of tenant resolution. Company is nil in
// cross-tenant mode.
type Resolution struct {
	Company *CompanyContext
	Grants  rbac.Grants
}

// Resolver binds requests to a company.
type Resolver struct {
	companies CompanyStore
}

// NewResolver constructs a Resolver over companies.
func NewResolver(companies CompanyStore) *Resolver {
	return &Resolver{companies: companies}
}

// ResolveContext picks the first non-empty hint, loads that company and checks
// p may act on it. With no hint at all, holders of the list-all permission run
// unbound; everyone else gets CompanyRequired.
func (r *Resolver) ResolveContext(ctx context.Context, p *auth.Principal, hints []Hint) (Resolution, error) {
	if p == nil {
		return Resolution{}, shared.NewAuthError(shared.KindTokenMissing, "authentication required")
	}
	override := rbac.HasGlobalPermission(p, rbac.PermManageAllCompanies)

	hint, ok := First(hints)
	if !ok {
		if override || rbac.HasGlobalPermission(p, rbac.PermListAllCompanies) {
			return Resolution{Grants: rbac.NewGrants(p, uuid.Nil)}, nil
		}
		return Resolution{}, shared.NewAuthError(shared.KindCompanyRequired, "company id required")
	}

	companyID, err := uuid.Parse(hint.Value)
	if err != nil || companyID == uuid.Nil {
		return Resolution{}, shared.NewAuthError(shared.KindInvalidCompanyID, "company id from "+string(hint.Source)+" is not a valid identifier")
	}

	company, err := r.companies.LoadCompanyByID(ctx, companyID)
	if errors.Is(err, shared.ErrNotFound) {
		return Resolution{}, shared.NewAuthError(shared.KindCompanyNotFound, "company not found")
	}
	if err != nil {
		return Resolution{}, shared.InternalError("tenancy: load company", err)
	}

	if company.Suspended() && !override {
		detail := "company is suspended"
		if company.SuspendedReason != "" {
			detail += ": " + company.SuspendedReason
		}
		return Resolution{}, shared.NewAuthError(shared.KindCompanySuspended, detail)
	}

	if !override && !rbac.HasCompanyRole(p, companyID) && !p.AnchoredTo(companyID) {
		return Resolution{}, shared.NewAuthError(shared.KindCompanyAccessDenied, "access to company denied")
	}

	return Resolution{
		Company: &CompanyContext{
			ID:     company.ID,
			Name:   company.Name,
			Status: company.Status,
			PlanID: company.PlanID,
		},
		Grants: rbac.NewGrants(p, companyID),
	}, nil
}
