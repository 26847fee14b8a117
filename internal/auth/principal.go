package auth

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// Principal is the resolved caller. Instances handed out by the resolver may be
// shared between requests and must be treated as read-only.
type Principal struct {
	ID               uuid.UUID         `json:"id"`
	Email            string            `json:"email"`
	Name             string            `json:"name"`
	Status           UserStatus        `json:"status"`
	Confirmed        bool              `json:"confirmed"`
	Assignments      []rbac.Assignment `json:"role_assignments"`
	PrimaryCompanyID uuid.NullUUID     `json:"primary_company_id"`

	HasGlobalRole        bool        `json:"has_global_role"`
	AccessibleCompanyIDs []uuid.UUID `json:"accessible_company_ids"`
	AllCompanies         bool        `json:"all_companies"`
}

// NewPrincipal assembles a principal from rec, keeping only active
// assignments and computing the derived flags.
func NewPrincipal(rec UserRecord) *Principal {
	active := make([]rbac.Assignment, 0, len(rec.Assignments))
	for _, a := range rec.Assignments {
		if a.IsActive {
			active = append(active, a)
		}
	}
	p := &Principal{
		ID:               rec.ID,
		Email:            rec.Email,
		Name:             rec.Name,
		Status:           rec.Status,
		Confirmed:        rec.Confirmed,
		Assignments:      active,
		PrimaryCompanyID: rec.PrimaryCompanyID,
	}
	p.HasGlobalRole = rbac.HasGlobalRole(p)
	p.AccessibleCompanyIDs, p.AllCompanies = rbac.AccessibleCompanies(p)
	if p.AccessibleCompanyIDs == nil {
		p.AccessibleCompanyIDs = []uuid.UUID{}
	}
	return p
}

// RoleAssignments implements rbac.Subject.
func (p *Principal) RoleAssignments() []rbac.Assignment {
	if p == nil {
		return nil
	}
	return p.Assignments
}

// AnchoredTo reports whether companyID is the principal's primary company.
func (p *Principal) AnchoredTo(companyID uuid.UUID) bool {
	return p != nil && p.PrimaryCompanyID.Valid && p.PrimaryCompanyID.UUID == companyID
}

var _ rbac.Subject = (*Principal)(nil)
