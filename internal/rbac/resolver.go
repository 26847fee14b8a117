package rbac

import "github.com/google/uuid"

// Subject is anything carrying role assignments, typically an authenticated
// principal. Resolvers never mutate what it returns.
type Subject interface {
	RoleAssignments() []Assignment
}

// HasGlobalPermission reports whether any active global assignment grants perm
// through its role table or its extra permissions.
func HasGlobalPermission(s Subject, perm string) bool {
	if s == nil || !IsGlobalPermission(perm) {
		return false
	}
	for _, a := range s.RoleAssignments() {
		if !a.IsActive || a.Kind != KindGlobal {
			continue
		}
		if globalRolePermissions[a.GlobalRole].Has(perm) || contains(a.ExtraPermissions, perm) {
			return true
		}
	}
	return false
}

// HasCompanyPermission reports whether s holds perm in companyID. Holders of
// PermManageAllCompanies satisfy every company permission everywhere.
func HasCompanyPermission(s Subject, perm string, companyID uuid.UUID) bool {
	if s == nil || !IsCompanyPermission(perm) {
		return false
	}
	if HasGlobalPermission(s, PermManageAllCompanies) {
		return true
	}
	if companyID == uuid.Nil {
		return false
	}
	// Duplicate grants for one company are unioned, so any match wins.
	for _, a := range s.RoleAssignments() {
		if !a.IsActive || a.Kind != KindCompany || a.CompanyID != companyID {
			continue
		}
		if companyRolePermissions[a.CompanyRole].Has(perm) || contains(a.ExtraPermissions, perm) {
			return true
		}
	}
	return false
}

// HighestCompanyRole returns the highest role s holds in companyID according to
// CompanyRoleHierarchy.
func HighestCompanyRole(s Subject, companyID uuid.UUID) (CompanyRole, bool) {
	if s == nil || companyID == uuid.Nil {
		return "", false
	}
	held := make(map[CompanyRole]struct{})
	for _, a := range s.RoleAssignments() {
		if a.IsActive && a.Kind == KindCompany && a.CompanyID == companyID {
			held[a.CompanyRole] = struct{}{}
		}
	}
	for _, role := range CompanyRoleHierarchy {
		if _, ok := held[role]; ok {
			return role, true
		}
	}
	return "", false
}

// HasGlobalRole reports whether s has at least one active global assignment.
func HasGlobalRole(s Subject) bool {
	if s == nil {
		return false
	}
	for _, a := range s.RoleAssignments() {
		if a.IsActive && a.Kind == KindGlobal {
			return true
		}
	}
	return false
}

// GlobalPermissions collapses every active global assignment into one set.
func GlobalPermissions(s Subject) PermissionSet {
	out := PermissionSet{}
	if s == nil {
		return out
	}
	for _, a := range s.RoleAssignments() {
		if !a.IsActive || a.Kind != KindGlobal {
			continue
		}
		out.addAll(globalRolePermissions[a.GlobalRole])
		for _, p := range a.ExtraPermissions {
			if IsGlobalPermission(p) {
				out[p] = struct{}{}
			}
		}
	}
	return out
}

// CompanyPermissions collapses every active assignment for companyID into one
// set. Holders of the platform override receive the whole company catalog.
func CompanyPermissions(s Subject, companyID uuid.UUID) PermissionSet {
	if s == nil {
		return PermissionSet{}
	}
	if HasGlobalPermission(s, PermManageAllCompanies) {
		return CompanyCatalog()
	}
	out := PermissionSet{}
	if companyID == uuid.Nil {
		return out
	}
	for _, a := range s.RoleAssignments() {
		if !a.IsActive || a.Kind != KindCompany || a.CompanyID != companyID {
			continue
		}
		out.addAll(companyRolePermissions[a.CompanyRole])
		for _, p := range a.ExtraPermissions {
			if IsCompanyPermission(p) {
				out[p] = struct{}{}
			}
		}
	}
	return out
}

// AccessibleCompanies lists the companies s holds an active role in. all is
// true, and ids empty, when s may reach every company.
func AccessibleCompanies(s Subject) (ids []uuid.UUID, all bool) {
	if s == nil {
		return nil, false
	}
	if HasGlobalPermission(s, PermManageAllCompanies) || HasGlobalPermission(s, PermListAllCompanies) {
		return nil, true
	}
	seen := make(map[uuid.UUID]struct{})
	for _, a := range s.RoleAssignments() {
		if !a.IsActive || a.Kind != KindCompany {
			continue
		}
		if _, ok := seen[a.CompanyID]; ok {
			continue
		}
		seen[a.CompanyID] = struct{}{}
		ids = append(ids, a.CompanyID)
	}
	return ids, false
}

// HasCompanyRole reports whether s holds any active role in companyID.
func HasCompanyRole(s Subject, companyID uuid.UUID) bool {
	_, ok := HighestCompanyRole(s, companyID)
	return ok
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
