package domain

import (
	"sort"
	"strings"
	"time"
)

// Well-known permission names from the seed catalog that gate the management API.
const (
	PermissionAdmin = "admin"

	PermissionRoleRegister = "role.register"
	PermissionRoleList     = "role.list"
	PermissionRoleEdit     = "role.edit"
	PermissionRoleDelete   = "role.delete"

	PermissionStaffRegister = "staff.register"
	PermissionStaffList     = "staff.list"
	PermissionStaffEdit     = "staff.edit"
	PermissionStaffDelete   = "staff.delete"
)

// Role defines a named set of permissions.
type Role struct {
	ID          string
	Name        string
	CreatedAt   time.Time
	Permissions []Permission
}

// SortKey returns the listing keyset values: name, id.
func (r Role) SortKey() []string {
	return []string{r.Name, r.ID}
}

// Permission defines a named capability.
type Permission struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// RolePermission links a role with a permission.
type RolePermission struct {
	RoleID       string
	PermissionID string
}

// UserRole assigns a role to a user.
type UserRole struct {
	UserID string
	RoleID string
}

// UserPermission grants a permission directly to a user.
type UserPermission struct {
	UserID       string
	PermissionID string
}

// MergePermissions returns the union of the provided permission lists, unique by id and sorted by name.
func MergePermissions(groups ...[]Permission) []Permission {
	seen := make(map[string]struct{})
	merged := make([]Permission, 0)
	for _, group := range groups {
		for _, permission := range group {
			if _, ok := seen[permission.ID]; ok {
				continue
			}
			seen[permission.ID] = struct{}{}
			merged = append(merged, permission)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		left, right := strings.ToLower(merged[i].Name), strings.ToLower(merged[j].Name)
		if left == right {
			return merged[i].ID < merged[j].ID
		}
		return left < right
	})

	return merged
}

// PermissionNames projects permission names preserving order.
func PermissionNames(permissions []Permission) []string {
	names := make([]string, 0, len(permissions))
	for _, permission := range permissions {
		names = append(names, permission.Name)
	}
	return names
}

// RoleNames projects role names preserving order.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}
