package auth

import "github.com/mrlokans/biblioteca/internal/entities"

type Permission string

const (
	PermBooksRead      Permission = "books:read"
	PermBooksManage    Permission = "books:manage"
	PermReadersRead    Permission = "readers:read"
	PermReadersManage  Permission = "readers:manage"
	PermLoansIssue     Permission = "loans:issue"
	PermLoansReturn    Permission = "loans:return"
	PermLoansDelete    Permission = "loans:delete"
	PermLoansLost      Permission = "loans:lost"
	PermFinesManage    Permission = "fines:manage"
	PermReportsView    Permission = "reports:view"
	PermMaintenanceRun Permission = "maintenance:run"
	PermUsersManage    Permission = "users:manage"
	PermConfigManage   Permission = "config:manage"
)

var librarianPermissions = []Permission{
	PermBooksRead,
	PermReadersRead,
	PermReadersManage,
	PermLoansIssue,
	PermLoansReturn,
	PermFinesManage,
	PermReportsView,
	PermMaintenanceRun,
}

var adminPermissions = append([]Permission{
	PermBooksManage,
	PermLoansDelete,
	PermLoansLost,
	PermUsersManage,
}, librarianPermissions...)

var superAdminPermissions = append([]Permission{PermConfigManage}, adminPermissions...)

var rolePermissions = map[entities.UserRole]map[Permission]bool{
	entities.UserRoleLibrarian:  permissionSet(librarianPermissions),
	entities.UserRoleAdmin:      permissionSet(adminPermissions),
	entities.UserRoleSuperAdmin: permissionSet(superAdminPermissions),
}

// roleRank orders roles; a higher rank dominates a lower one.
var roleRank = map[entities.UserRole]int{
	entities.UserRoleLibrarian:  1,
	entities.UserRoleAdmin:      2,
	entities.UserRoleSuperAdmin: 3,
}

func permissionSet(perms []Permission) map[Permission]bool {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// RoleHasPermission reports whether role grants p. Unknown roles grant nothing.
func RoleHasPermission(role entities.UserRole, p Permission) bool {
	return rolePermissions[role][p]
}

// ValidRole reports whether role is one of the known staff roles.
func ValidRole(role entities.UserRole) bool {
	_, ok := roleRank[role]
	return ok
}

// CanCreate reports whether creator may create (or administer) accounts of
// role target. Only roles strictly below the creator qualify.
func CanCreate(creator, target entities.UserRole) bool {
	c, ok := roleRank[creator]
	if !ok {
		return false
	}
	t, ok := roleRank[target]
	if !ok {
		return false
	}
	return c > t
}
