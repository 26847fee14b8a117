package rbac

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidAssignment reports a role assignment that violates its kind's shape.
var ErrInvalidAssignment = errors.New("rbac: invalid assignment")

// Assignment is one grant of a role to a user. Exactly one of GlobalRole and
// CompanyRole is set, matching Kind.
type Assignment struct {
	ID               uuid.UUID   `json:"id"`
	Kind             RoleKind    `json:"kind"`
	GlobalRole       GlobalRole  `json:"global_role,omitempty"`
	CompanyRole      CompanyRole `json:"company_role,omitempty"`
	CompanyID        uuid.UUID   `json:"company_id"`
	ExtraPermissions []string    `json:"extra_permissions,omitempty"`
	IsActive         bool        `json:"is_active"`
	AssignedAt       time.Time   `json:"assigned_at"`
	AssignedBy       uuid.UUID   `json:"assigned_by"`
}

// NewGlobalAssignment builds a validated, active global grant.
func NewGlobalAssignment(role GlobalRole, extra []string, assignedBy uuid.UUID, at time.Time) (Assignment, error) {
	a := Assignment{
		ID:               uuid.New(),
		Kind:             KindGlobal,
		GlobalRole:       role,
		ExtraPermissions: dedupe(extra),
		IsActive:         true,
		AssignedAt:       at.UTC(),
		AssignedBy:       assignedBy,
	}
	if err := a.Validate(); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// NewCompanyAssignment builds a validated, active company grant.
func NewCompanyAssignment(role CompanyRole, companyID uuid.UUID, extra []string, assignedBy uuid.UUID, at time.Time) (Assignment, error) {
	a := Assignment{
		ID:               uuid.New(),
		Kind:             KindCompany,
		CompanyRole:      role,
		CompanyID:        companyID,
		ExtraPermissions: dedupe(extra),
		IsActive:         true,
		AssignedAt:       at.UTC(),
		AssignedBy:       assignedBy,
	}
	if err := a.Validate(); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// Validate enforces the shape invariants: company grants carry a company id,
// global grants never do, and extra permissions come from the kind's catalog.
func (a Assignment) Validate() error {
	switch a.Kind {
	case KindGlobal:
		if !a.GlobalRole.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, a.GlobalRole)
		}
		if a.CompanyRole != "" {
			return fmt.Errorf("%w: global grant carries company role", ErrInvalidAssignment)
		}
		if a.CompanyID != uuid.Nil {
			return fmt.Errorf("%w: global grant scoped to a company", ErrInvalidAssignment)
		}
		for _, p := range a.ExtraPermissions {
			if !IsGlobalPermission(p) {
				return fmt.Errorf("%w: %q is not a global permission", ErrInvalidAssignment, p)
			}
		}
	case KindCompany:
		if !a.CompanyRole.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, a.CompanyRole)
		}
		if a.GlobalRole != "" {
			return fmt.Errorf("%w: company grant carries global role", ErrInvalidAssignment)
		}
		if a.CompanyID == uuid.Nil {
			return fmt.Errorf("%w: company grant without company id", ErrInvalidAssignment)
		}
		for _, p := range a.ExtraPermissions {
			if !IsCompanyPermission(p) {
				return fmt.Errorf("%w: %q is not a company permission", ErrInvalidAssignment, p)
			}
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidAssignment, a.Kind)
	}
	return nil
}

// RoleName returns the canonical role name regardless of kind.
func (a Assignment) RoleName() string {
	if a.Kind == KindGlobal {
		return string(a.GlobalRole)
	}
	return string(a.CompanyRole)
}

// ParseAssignment rebuilds an assignment from stored text columns, routing the
// role through NormalizeRole.
func ParseAssignment(kind, role string, companyID uuid.UUID) (Assignment, error) {
	a := Assignment{Kind: RoleKind(kind), CompanyID: companyID}
	switch a.Kind {
	case KindGlobal:
		r, err := ParseGlobalRole(role)
		if err != nil {
			return Assignment{}, err
		}
		a.GlobalRole = r
	case KindCompany:
		r, err := ParseCompanyRole(role)
		if err != nil {
			return Assignment{}, err
		}
		a.CompanyRole = r
	default:
		return Assignment{}, fmt.Errorf("%w: kind %q", ErrInvalidAssignment, kind)
	}
	return a, nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// MergeExtraPermissions appends perms to existing without duplicates.
func MergeExtraPermissions(existing, perms []string) []string {
	merged := make([]string, 0, len(existing)+len(perms))
	merged = append(merged, existing...)
	merged = append(merged, perms...)
	return dedupe(merged)
}
