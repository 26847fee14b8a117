package rbac

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// ErrUnknownRole reports a role value outside the closed vocabulary of its kind.
var ErrUnknownRole = errors.New("rbac: unknown role")

// RoleKind distinguishes platform-wide grants from per-company grants.
type RoleKind string

const (
	KindGlobal  RoleKind = "global"
	KindCompany RoleKind = "company"
)

// Valid reports whether k is a known kind.
func (k RoleKind) Valid() bool {
	return k == KindGlobal || k == KindCompany
}

// GlobalRole is a platform-wide role.
type GlobalRole string

const (
	RoleSuperAdmin  GlobalRole = "super_admin"
	RoleSystemAdmin GlobalRole = "system_admin"
)

// Valid reports whether r belongs to the global vocabulary.
func (r GlobalRole) Valid() bool {
	_, ok := globalRolePermissions[r]
	return ok
}

// CompanyRole is a role scoped to exactly one company.
type CompanyRole string

const (
	RoleAdminCompany CompanyRole = "admin_company"
	RoleManager      CompanyRole = "manager"
	RoleEmployee     CompanyRole = "employee"
	RoleViewer       CompanyRole = "viewer"
)

// Valid reports whether r belongs to the company vocabulary.
func (r CompanyRole) Valid() bool {
	_, ok := companyRolePermissions[r]
	return ok
}

// CompanyRoleHierarchy orders company roles from highest to lowest. It is used
// only to label the highest role held; permissions are never inherited
// through it.
var CompanyRoleHierarchy = []CompanyRole{
	RoleAdminCompany,
	RoleManager,
	RoleEmployee,
	RoleViewer,
}

// legacyRoleNames maps every role spelling seen in stored data and inbound
// requests onto its canonical role. Canonical names map to themselves.
var legacyRoleNames = map[string]string{
	"super_admin":   string(RoleSuperAdmin),
	"superadmin":    string(RoleSuperAdmin),
	"super-admin":   string(RoleSuperAdmin),
	"root":          string(RoleSuperAdmin),
	"system_admin":  string(RoleSystemAdmin),
	"systemadmin":   string(RoleSystemAdmin),
	"sysadmin":      string(RoleSystemAdmin),
	"admin_company": string(RoleAdminCompany),
	"company_admin": string(RoleAdminCompany),
	"companyadmin":  string(RoleAdminCompany),
	"admin":         string(RoleAdminCompany),
	"owner":         string(RoleAdminCompany),
	"manager":       string(RoleManager),
	"supervisor":    string(RoleManager),
	"employee":      string(RoleEmployee),
	"staff":         string(RoleEmployee),
	"user":          string(RoleEmployee),
	"member":        string(RoleEmployee),
	"viewer":        string(RoleViewer),
	"readonly":      string(RoleViewer),
	"read_only":     string(RoleViewer),
	"guest":         string(RoleViewer),
}

// NormalizeRole is the single mapping from external role text to a canonical
// role name. Every reader of roles from storage or requests goes through it.
func NormalizeRole(raw string) (string, error) {
	// Casers carry state and must not be shared across goroutines.
	key := cases.Fold().String(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	if canonical, ok := legacyRoleNames[key]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// ParseGlobalRole normalises raw and requires a global role.
func ParseGlobalRole(raw string) (GlobalRole, error) {
	name, err := NormalizeRole(raw)
	if err != nil {
		return "", err
	}
	role := GlobalRole(name)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q is not a global role", ErrUnknownRole, raw)
	}
	return role, nil
}

// ParseCompanyRole normalises raw and requires a company role.
func ParseCompanyRole(raw string) (CompanyRole, error) {
	name, err := NormalizeRole(raw)
	if err != nil {
		return "", err
	}
	role := CompanyRole(name)
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q is not a company role", ErrUnknownRole, raw)
	}
	return role, nil
}
