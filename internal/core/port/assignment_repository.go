package port

import (
	"context"

	"github.com/jebauza/VetFlow/internal/core/domain"
)

// AssignmentRepository maintains the user-role, user-permission and role-permission links.
// Assign* calls are additive and idempotent; Sync* calls replace the whole set.
type AssignmentRepository interface {
	RolesByUsers(ctx context.Context, userIDs []string) (map[string][]domain.Role, error)
	PermissionsByUsers(ctx context.Context, userIDs []string) (map[string][]domain.Permission, error)
	PermissionsByRoles(ctx context.Context, roleIDs []string) (map[string][]domain.Permission, error)

	AssignUserRoles(ctx context.Context, userID string, roleIDs []string) error
	SyncUserRoles(ctx context.Context, userID string, roleIDs []string) error
	AssignUserPermissions(ctx context.Context, userID string, permissionIDs []string) error
	SyncUserPermissions(ctx context.Context, userID string, permissionIDs []string) error
	AssignRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
	SyncRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
}
