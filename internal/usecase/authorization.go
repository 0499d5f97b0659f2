package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/ids"
)

// AuthorizationService resolves effective permissions and applies assign/sync changes to the link tables.
type AuthorizationService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	permissions port.PermissionRepository
	assignments port.AssignmentRepository
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthorizationService constructs an AuthorizationService. A nil publisher disables events.
func NewAuthorizationService(
	users port.UserRepository,
	roles port.RoleRepository,
	permissions port.PermissionRepository,
	assignments port.AssignmentRepository,
	events port.EventPublisher,
	logger *zap.Logger,
) *AuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationService{
		users:       users,
		roles:       roles,
		permissions: permissions,
		assignments: assignments,
		events:      events,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EffectivePermissions returns the union of direct and role-inherited permissions, unique by id and sorted by name.
func (s *AuthorizationService) EffectivePermissions(ctx context.Context, userID string) ([]domain.Permission, error) {
	resolved, err := s.EffectivePermissionsForUsers(ctx, []string{userID})
	if err != nil {
		return nil, err
	}
	return resolved[userID], nil
}

// UserAccess is the role set and effective permission set of one user.
type UserAccess struct {
	Roles       []domain.Role
	Permissions []domain.Permission
}

// EffectivePermissionsForUsers resolves several users with three queries in total.
func (s *AuthorizationService) EffectivePermissionsForUsers(ctx context.Context, userIDs []string) (map[string][]domain.Permission, error) {
	access, err := s.AccessForUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]domain.Permission, len(access))
	for userID, entry := range access {
		result[userID] = entry.Permissions
	}
	return result, nil
}

// AccessForUsers loads roles and effective permissions of several users with three queries in total.
func (s *AuthorizationService) AccessForUsers(ctx context.Context, userIDs []string) (map[string]UserAccess, error) {
	userIDs = normalizeIDs(userIDs)
	result := make(map[string]UserAccess, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	direct, err := s.assignments.PermissionsByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load direct permissions: %w", err)
	}
	rolesByUser, err := s.assignments.RolesByUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}

	roleIDs := make([]string, 0)
	for _, roles := range rolesByUser {
		for _, role := range roles {
			roleIDs = append(roleIDs, role.ID)
		}
	}
	inherited, err := s.assignments.PermissionsByRoles(ctx, normalizeIDs(roleIDs))
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}

	for _, userID := range userIDs {
		groups := [][]domain.Permission{direct[userID]}
		roles := rolesByUser[userID]
		if roles == nil {
			roles = []domain.Role{}
		}
		for _, role := range roles {
			groups = append(groups, inherited[role.ID])
		}
		result[userID] = UserAccess{Roles: roles, Permissions: domain.MergePermissions(groups...)}
	}
	return result, nil
}

// HasPermission reports whether the principal holds any of names. Super admins and holders of admin always pass.
func (s *AuthorizationService) HasPermission(ctx context.Context, principal domain.Principal, names ...string) (bool, error) {
	if principal.IsSuperAdmin {
		return true, nil
	}
	if principal.UserID == "" {
		return false, nil
	}

	effective, err := s.EffectivePermissions(ctx, principal.UserID)
	if err != nil {
		return false, err
	}

	wanted := make(map[string]struct{}, len(names)+1)
	wanted[domain.PermissionAdmin] = struct{}{}
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	for _, permission := range effective {
		if _, ok := wanted[permission.Name]; ok {
			return true, nil
		}
	}
	return false, nil
}

// Authorize returns ErrForbidden unless the principal holds any of names.
func (s *AuthorizationService) Authorize(ctx context.Context, principal domain.Principal, names ...string) error {
	allowed, err := s.HasPermission(ctx, principal, names...)
	if err != nil {
		return fmt.Errorf("resolve permissions: %w", err)
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// AssignRoles adds roles to the user, keeping the ones already held.
func (s *AuthorizationService) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	return s.changeUserRoles(ctx, userID, roleIDs, domain.AssignmentAssign)
}

// SyncRoles makes the user's role set exactly roleIDs.
func (s *AuthorizationService) SyncRoles(ctx context.Context, userID string, roleIDs []string) error {
	return s.changeUserRoles(ctx, userID, roleIDs, domain.AssignmentSync)
}

// AssignPermissions adds direct permissions to the user.
func (s *AuthorizationService) AssignPermissions(ctx context.Context, userID string, permissionIDs []string) error {
	return s.changeUserPermissions(ctx, userID, permissionIDs, domain.AssignmentAssign)
}

// SyncPermissions makes the user's direct permission set exactly permissionIDs.
func (s *AuthorizationService) SyncPermissions(ctx context.Context, userID string, permissionIDs []string) error {
	return s.changeUserPermissions(ctx, userID, permissionIDs, domain.AssignmentSync)
}

// AssignRolePermissions adds permissions to the role.
func (s *AuthorizationService) AssignRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return s.changeRolePermissions(ctx, roleID, permissionIDs, domain.AssignmentAssign)
}

// SyncRolePermissions makes the role's permission set exactly permissionIDs.
func (s *AuthorizationService) SyncRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return s.changeRolePermissions(ctx, roleID, permissionIDs, domain.AssignmentSync)
}

func (s *AuthorizationService) changeUserRoles(ctx context.Context, userID string, roleIDs []string, mode domain.AssignmentMode) error {
	userID = strings.TrimSpace(userID)
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.ValidateRoleIDs(ctx, roleIDs); err != nil {
		return err
	}
	roleIDs = normalizeIDs(roleIDs)

	apply := s.assignments.AssignUserRoles
	if mode == domain.AssignmentSync {
		apply = s.assignments.SyncUserRoles
	}
	if err := apply(ctx, userID, roleIDs); err != nil {
		return fmt.Errorf("%s user roles: %w", mode, err)
	}

	s.publish(ctx, "roles changed", func(ctx context.Context) error {
		return s.events.PublishRolesChanged(ctx, domain.RolesChangedEvent{
			EventID:   ids.NewULID(),
			UserID:    userID,
			Mode:      mode,
			RoleIDs:   roleIDs,
			ChangedAt: s.now(),
		})
	})
	return nil
}

func (s *AuthorizationService) changeUserPermissions(ctx context.Context, userID string, permissionIDs []string, mode domain.AssignmentMode) error {
	userID = strings.TrimSpace(userID)
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if err := s.ValidatePermissionIDs(ctx, permissionIDs); err != nil {
		return err
	}
	permissionIDs = normalizeIDs(permissionIDs)

	apply := s.assignments.AssignUserPermissions
	if mode == domain.AssignmentSync {
		apply = s.assignments.SyncUserPermissions
	}
	if err := apply(ctx, userID, permissionIDs); err != nil {
		return fmt.Errorf("%s user permissions: %w", mode, err)
	}

	s.publishPermissions(ctx, domain.OwnerUser, userID, permissionIDs, mode)
	return nil
}

func (s *AuthorizationService) changeRolePermissions(ctx context.Context, roleID string, permissionIDs []string, mode domain.AssignmentMode) error {
	roleID = strings.TrimSpace(roleID)
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return translate(err, "load role")
	}
	if err := s.ValidatePermissionIDs(ctx, permissionIDs); err != nil {
		return err
	}
	permissionIDs = normalizeIDs(permissionIDs)

	apply := s.assignments.AssignRolePermissions
	if mode == domain.AssignmentSync {
		apply = s.assignments.SyncRolePermissions
	}
	if err := apply(ctx, roleID, permissionIDs); err != nil {
		return fmt.Errorf("%s role permissions: %w", mode, err)
	}

	s.publishPermissions(ctx, domain.OwnerRole, roleID, permissionIDs, mode)
	return nil
}

// ValidateRoleIDs fails with a ValidationError naming every unknown role id by its position in roleIDs.
func (s *AuthorizationService) ValidateRoleIDs(ctx context.Context, roleIDs []string) error {
	return requireKnown(ctx, "role_ids", roleIDs, s.roles.MissingIDs)
}

// ValidatePermissionIDs fails with a ValidationError naming every unknown permission id by its
// position in permissionIDs.
func (s *AuthorizationService) ValidatePermissionIDs(ctx context.Context, permissionIDs []string) error {
	return requireKnown(ctx, "permission_ids", permissionIDs, s.permissions.MissingIDs)
}

func (s *AuthorizationService) requireUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return translate(err, "load user")
	}
	return nil
}

func (s *AuthorizationService) publishPermissions(ctx context.Context, ownerType, ownerID string, permissionIDs []string, mode domain.AssignmentMode) {
	s.publish(ctx, "permissions changed", func(ctx context.Context) error {
		return s.events.PublishPermissionsChanged(ctx, domain.PermissionsChangedEvent{
			EventID:       ids.NewULID(),
			OwnerType:     ownerType,
			OwnerID:       ownerID,
			Mode:          mode,
			PermissionIDs: permissionIDs,
			ChangedAt:     s.now(),
		})
	})
}

// publish sends an event after the change committed; failures are logged, never returned.
func (s *AuthorizationService) publish(ctx context.Context, label string, send func(context.Context) error) {
	if s.events == nil {
		return
	}
	if err := send(ctx); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", label), zap.Error(err))
	}
}

// requireKnown checks the normalized ids but keys field errors by index in the raw idList.
func requireKnown(ctx context.Context, field string, idList []string, missing func(context.Context, []string) ([]string, error)) error {
	normalized := normalizeIDs(idList)
	if len(normalized) == 0 {
		return nil
	}

	unknown, err := missing(ctx, normalized)
	if err != nil {
		return fmt.Errorf("check %s: %w", field, err)
	}
	if len(unknown) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(unknown))
	for _, id := range unknown {
		set[id] = struct{}{}
	}

	verr := newValidationError()
	verr.notFound = true
	for i, id := range idList {
		id = strings.TrimSpace(id)
		if _, ok := set[id]; ok {
			verr.Add(fmt.Sprintf("%s.%d", field, i), fmt.Sprintf("The selected id %s does not exist.", id))
		}
	}
	return verr
}

// normalizeIDs trims, drops blanks and de-duplicates while keeping first-seen order.
func normalizeIDs(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
