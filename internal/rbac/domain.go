package rbac

// Role is a closed enum of account roles. Adding a role is a code change
// here, not a data migration.
type Role string

const (
	// RoleSystemAdmin is a legacy role mapped directly to the wildcard.
	RoleSystemAdmin Role = "system_admin"
	// RoleAdmin is a legacy role mapped directly to the wildcard.
	RoleAdmin Role = "admin"
	// RoleOrgAdmin administers a single organization.
	RoleOrgAdmin Role = "org_admin"
	// RoleFinanceManager handles budgets, invoices and payments.
	RoleFinanceManager Role = "finance_manager"
	// RoleCRA is a clinical research associate (site monitor).
	RoleCRA Role = "cra"
	// RoleInvestigator is a site investigator.
	RoleInvestigator Role = "investigator"
	// RoleCoordinator is a study coordinator.
	RoleCoordinator Role = "coordinator"
	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"
)

// Wildcard grants every permission.
const Wildcard = "*"

// Valid reports whether the role belongs to the closed enum.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Grant is a per-user custom permission grant row.
type Grant struct {
	ID          int64
	UserID      string
	Permissions []string
}
