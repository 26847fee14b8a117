package rbac

import "sort"

// Global permissions. These keys form a closed vocabulary disjoint from the
// company permissions below.
const (
	// PermManageAllCompanies is the platform-wide override: holders satisfy
	// every company permission in every company and bypass tenant checks.
	PermManageAllCompanies = "platform.companies.manage_all"
	// PermListAllCompanies allows operating without a bound company.
	PermListAllCompanies  = "platform.companies.list"
	PermManageCompanies   = "platform.companies.manage"
	PermManageGlobalUsers = "platform.users.manage"
	PermConfigureSystem   = "platform.system.configure"
	PermViewAuditLog      = "platform.audit.view"
)

// Company permissions.
const (
	PermCompanyUsersView      = "company.users.view"
	PermCompanyUsersManage    = "company.users.manage"
	PermCompanySettingsManage = "company.settings.manage"
	PermInventoryView         = "inventory.view"
	PermInventoryCreate       = "inventory.create"
	PermInventoryUpdate       = "inventory.update"
	PermInventoryDelete       = "inventory.delete"
	PermCategoriesManage      = "categories.manage"
	PermReportsView           = "reports.view"
	PermReportsExport         = "reports.export"
)

var globalCatalog = newSet(
	PermManageAllCompanies,
	PermListAllCompanies,
	PermManageCompanies,
	PermManageGlobalUsers,
	PermConfigureSystem,
	PermViewAuditLog,
)

var companyCatalog = newSet(
	PermCompanyUsersView,
	PermCompanyUsersManage,
	PermCompanySettingsManage,
	PermInventoryView,
	PermInventoryCreate,
	PermInventoryUpdate,
	PermInventoryDelete,
	PermCategoriesManage,
	PermReportsView,
	PermReportsExport,
)

var globalRolePermissions = map[GlobalRole]PermissionSet{
	RoleSuperAdmin: globalCatalog.Clone(),
	RoleSystemAdmin: newSet(
		PermListAllCompanies,
		PermManageGlobalUsers,
		PermConfigureSystem,
		PermViewAuditLog,
	),
}

var companyRolePermissions = map[CompanyRole]PermissionSet{
	RoleAdminCompany: companyCatalog.Clone(),
	RoleManager: newSet(
		PermCompanyUsersView,
		PermInventoryView,
		PermInventoryCreate,
		PermInventoryUpdate,
		PermCategoriesManage,
		PermReportsView,
		PermReportsExport,
	),
	RoleEmployee: newSet(
		PermInventoryView,
		PermInventoryCreate,
		PermReportsView,
	),
	RoleViewer: newSet(
		PermInventoryView,
		PermReportsView,
	),
}

// IsGlobalPermission reports whether key is in the global catalog.
func IsGlobalPermission(key string) bool {
	return globalCatalog.Has(key)
}

// IsCompanyPermission reports whether key is in the company catalog.
func IsCompanyPermission(key string) bool {
	return companyCatalog.Has(key)
}

// GlobalCatalog returns every global permission key.
func GlobalCatalog() PermissionSet {
	return globalCatalog.Clone()
}

// CompanyCatalog returns every company permission key.
func CompanyCatalog() PermissionSet {
	return companyCatalog.Clone()
}

// GlobalRolePermissions returns the default permission set of role. Unknown
// roles yield an empty set.
func GlobalRolePermissions(role GlobalRole) PermissionSet {
	if set, ok := globalRolePermissions[role]; ok {
		return set.Clone()
	}
	return PermissionSet{}
}

// CompanyRolePermissions returns the default permission set of role.
func CompanyRolePermissions(role CompanyRole) PermissionSet {
	if set, ok := companyRolePermissions[role]; ok {
		return set.Clone()
	}
	return PermissionSet{}
}

// PermissionSet is an immutable-by-convention set of permission keys.
type PermissionSet map[string]struct{}

func newSet(keys ...string) PermissionSet {
	set := make(PermissionSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports membership. A nil set holds nothing.
func (s PermissionSet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Keys returns the members sorted.
func (s PermissionSet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s PermissionSet) addAll(other PermissionSet) {
	for k := range other {
		s[k] = struct{}{}
	}
}
