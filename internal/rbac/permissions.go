package rbac

// Permission names used across the platform.
const (
	PermUsersManage      = "users.manage"
	PermStudiesView      = "studies.view"
	PermStudiesManage    = "studies.manage"
	PermContractsView    = "contracts.view"
	PermContractsApprove = "contracts.approve"
	PermBudgetsView      = "budgets.view"
	PermBudgetsManage    = "budgets.manage"
	PermInvoicesView     = "invoices.view"
	PermInvoicesManage   = "invoices.manage"
	PermPaymentsProcess  = "payments.process"
	PermQueriesView      = "queries.view"
	PermQueriesRaise     = "queries.raise"
	PermQueriesResolve   = "queries.resolve"
	PermSubjectsManage   = "subjects.manage"
)

// rolePermissions is the static role table. It is the single owner of the
// role-to-permission mapping; per-user grants are unioned in by the Service.
var rolePermissions = map[Role][]string{
	RoleSystemAdmin: {Wildcard},
	RoleAdmin:       {Wildcard},
	RoleOrgAdmin: {
		PermUsersManage,
		PermStudiesView,
		PermStudiesManage,
		PermContractsView,
		PermContractsApprove,
		PermBudgetsView,
		PermBudgetsManage,
		PermInvoicesView,
		PermInvoicesManage,
		PermPaymentsProcess,
		PermQueriesView,
		PermQueriesRaise,
		PermQueriesResolve,
	},
	RoleFinanceManager: {
		PermStudiesView,
		PermContractsView,
		PermBudgetsView,
		PermBudgetsManage,
		PermInvoicesView,
		PermInvoicesManage,
		PermPaymentsProcess,
	},
	RoleCRA: {
		PermStudiesView,
		PermQueriesView,
		PermQueriesRaise,
		PermQueriesResolve,
	},
	RoleInvestigator: {
		PermStudiesView,
		PermQueriesView,
	},
	RoleCoordinator: {
		PermStudiesView,
		PermQueriesView,
		PermSubjectsManage,
	},
	RoleViewer: {
		PermStudiesView,
	},
}

// RolePermissions returns a copy of the static permissions for a role.
func RolePermissions(role Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
