package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
)

// link names a two-column association table.
type link struct {
	table  string
	owner  string
	target string
}

var (
	userRoles       = link{table: "vetflow.user_roles", owner: "user_id", target: "role_id"}
	userPermissions = link{table: "vetflow.user_permissions", owner: "user_id", target: "permission_id"}
	rolePermissions = link{table: "vetflow.role_permissions", owner: "role_id", target: "permission_id"}
)

// AssignmentRepository implements port.AssignmentRepository over the association tables.
type AssignmentRepository struct {
	db      pgExecutor
	tx      *Transactor
	builder squirrel.StatementBuilderType
}

// NewAssignmentRepository constructs the association repository.
func NewAssignmentRepository(db DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, tx: NewTransactor(db), builder: newBuilder()}
}

// RolesByUsers loads the roles held by every user in one query.
func (r *AssignmentRepository) RolesByUsers(ctx context.Context, userIDs []string) (map[string][]domain.Role, error) {
	result := make(map[string][]domain.Role, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	stmt, args, err := r.builder.Select("ur.user_id", "r.id", "r.name", "r.created_at").
		From("vetflow.roles r").
		Join("vetflow.user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userIDs}).
		OrderBy(nameKeyset("r").order...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build roles by users sql: %w", err)
	}

	rows, err := executor(ctx, r.db).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles by users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID string
			role   domain.Role
		)
		if err := rows.Scan(&userID, &role.ID, &role.Name, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role by user: %w", err)
		}
		result[userID] = append(result[userID], role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles by users: %w", err)
	}
	return result, nil
}

// PermissionsByUsers loads the permissions granted directly to every user in one query.
func (r *AssignmentRepository) PermissionsByUsers(ctx context.Context, userIDs []string) (map[string][]domain.Permission, error) {
	return r.permissionsBy(ctx, userPermissions, userIDs)
}

// PermissionsByRoles loads the permissions attached to every role in one query.
func (r *AssignmentRepository) PermissionsByRoles(ctx context.Context, roleIDs []string) (map[string][]domain.Permission, error) {
	return r.permissionsBy(ctx, rolePermissions, roleIDs)
}

func (r *AssignmentRepository) permissionsBy(ctx context.Context, l link, ownerIDs []string) (map[string][]domain.Permission, error) {
	result := make(map[string][]domain.Permission, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return result, nil
	}

	ownerColumn := "l." + l.owner
	stmt, args, err := r.builder.Select(ownerColumn, "p.id", "p.name", "p.created_at").
		From("vetflow.permissions p").
		Join(l.table + " l ON l.permission_id = p.id").
		Where(squirrel.Eq{ownerColumn: ownerIDs}).
		OrderBy(nameKeyset("p").order...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build permissions by %s sql: %w", l.owner, err)
	}

	rows, err := executor(ctx, r.db).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions by %s: %w", l.owner, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ownerID    string
			permission domain.Permission
		)
		if err := rows.Scan(&ownerID, &permission.ID, &permission.Name, &permission.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan permission by %s: %w", l.owner, err)
		}
		result[ownerID] = append(result[ownerID], permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions by %s: %w", l.owner, err)
	}
	return result, nil
}

// AssignUserRoles adds roles to the user, keeping existing ones.
func (r *AssignmentRepository) AssignUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	return r.assign(ctx, userRoles, userID, roleIDs)
}

// SyncUserRoles makes roleIDs the exact role set of the user.
func (r *AssignmentRepository) SyncUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	return r.sync(ctx, userRoles, userID, roleIDs)
}

// AssignUserPermissions adds direct permissions to the user.
func (r *AssignmentRepository) AssignUserPermissions(ctx context.Context, userID string, permissionIDs []string) error {
	return r.assign(ctx, userPermissions, userID, permissionIDs)
}

// SyncUserPermissions makes permissionIDs the exact direct permission set of the user.
func (r *AssignmentRepository) SyncUserPermissions(ctx context.Context, userID string, permissionIDs []string) error {
	return r.sync(ctx, userPermissions, userID, permissionIDs)
}

// AssignRolePermissions adds permissions to the role.
func (r *AssignmentRepository) AssignRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return r.assign(ctx, rolePermissions, roleID, permissionIDs)
}

// SyncRolePermissions makes permissionIDs the exact permission set of the role.
func (r *AssignmentRepository) SyncRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return r.sync(ctx, rolePermissions, roleID, permissionIDs)
}

func (r *AssignmentRepository) assign(ctx context.Context, l link, ownerID string, targetIDs []string) error {
	if len(targetIDs) == 0 {
		return nil
	}

	query := r.builder.Insert(l.table).Columns(l.owner, l.target)
	for _, targetID := range targetIDs {
		query = query.Values(ownerID, targetID)
	}

	stmt, args, err := query.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build assign %s sql: %w", l.target, err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign %s: %w", l.target, err)
	}
	return nil
}

func (r *AssignmentRepository) sync(ctx context.Context, l link, ownerID string, targetIDs []string) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		query := r.builder.Delete(l.table).Where(squirrel.Eq{l.owner: ownerID})
		if len(targetIDs) > 0 {
			query = query.Where(squirrel.NotEq{l.target: targetIDs})
		}

		stmt, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("build detach %s sql: %w", l.target, err)
		}
		if _, err := executor(ctx, r.db).Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("detach %s: %w", l.target, err)
		}

		return r.assign(ctx, l, ownerID, targetIDs)
	})
}

var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
