package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/ids"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/repository"
)

const roleNameTakenMessage = "The name has already been taken."

// RoleInput is the create/update payload of a role.
// On update a nil PermissionIDs keeps the current permissions.
type RoleInput struct {
	Name          string
	PermissionIDs []string
}

// RoleService manages roles and their permission sets.
type RoleService struct {
	roles       port.RoleRepository
	assignments port.AssignmentRepository
	authz       *AuthorizationService
	tx          port.Transactor
	pages       *pagination.Engine
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleService constructs a RoleService instance.
func NewRoleService(
	roles port.RoleRepository,
	assignments port.AssignmentRepository,
	authz *AuthorizationService,
	tx port.Transactor,
	pages *pagination.Engine,
	events port.EventPublisher,
	logger *zap.Logger,
) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		roles:       roles,
		assignments: assignments,
		authz:       authz,
		tx:          tx,
		pages:       pages,
		events:      events,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns every role matching search with its permissions.
func (s *RoleService) List(ctx context.Context, search string) ([]domain.Role, error) {
	roles, err := s.roles.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return s.withPermissions(ctx, roles)
}

// ListPage returns a numbered page of roles with their permissions.
func (s *RoleService) ListPage(ctx context.Context, search string, req pagination.PageRequest) (pagination.Page[domain.Role], error) {
	roles, total, err := s.roles.SearchPage(ctx, search, req)
	if err != nil {
		return pagination.Page[domain.Role]{}, fmt.Errorf("search roles: %w", err)
	}
	loaded, err := s.withPermissions(ctx, roles)
	if err != nil {
		return pagination.Page[domain.Role]{}, err
	}
	return pagination.NewPage(loaded, req, total), nil
}

// ListOffset returns an offset window of roles with their permissions.
func (s *RoleService) ListOffset(ctx context.Context, search string, req pagination.OffsetRequest) (pagination.OffsetPage[domain.Role], error) {
	roles, total, err := s.roles.SearchOffset(ctx, search, req)
	if err != nil {
		return pagination.OffsetPage[domain.Role]{}, fmt.Errorf("search roles: %w", err)
	}
	loaded, err := s.withPermissions(ctx, roles)
	if err != nil {
		return pagination.OffsetPage[domain.Role]{}, err
	}
	return pagination.NewOffsetPage(loaded, req, total), nil
}

// ListCursor returns a keyset window of roles with their permissions.
func (s *RoleService) ListCursor(ctx context.Context, search string, query pagination.CursorQuery) (pagination.CursorPage[domain.Role], error) {
	roles, err := s.roles.SearchCursor(ctx, search, query)
	if err != nil {
		return pagination.CursorPage[domain.Role]{}, cursorError(err, "search roles")
	}
	page, err := pagination.BuildCursorPage(s.pages, query, roles, domain.Role.SortKey)
	if err != nil {
		return pagination.CursorPage[domain.Role]{}, err
	}
	page.Items, err = s.withPermissions(ctx, page.Items)
	if err != nil {
		return pagination.CursorPage[domain.Role]{}, err
	}
	return page, nil
}

// Get returns one role with its permissions.
func (s *RoleService) Get(ctx context.Context, id string) (domain.Role, error) {
	role, err := s.roles.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Role{}, translate(err, "load role")
	}
	loaded, err := s.withPermissions(ctx, []domain.Role{*role})
	if err != nil {
		return domain.Role{}, err
	}
	return loaded[0], nil
}

// Create inserts the role and syncs its permissions in one transaction.
func (s *RoleService) Create(ctx context.Context, input RoleInput) (domain.Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate(ctx, input, ""); err != nil {
		return domain.Role{}, err
	}
	input.PermissionIDs = normalizeIDs(input.PermissionIDs)

	role := domain.Role{ID: ids.NewUUID(), Name: input.Name, CreatedAt: s.now()}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.roles.Create(ctx, role); err != nil {
			return err
		}
		if len(input.PermissionIDs) > 0 {
			return s.assignments.SyncRolePermissions(ctx, role.ID, input.PermissionIDs)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Role{}, conflictError("name", roleNameTakenMessage)
		}
		return domain.Role{}, fmt.Errorf("create role: %w", err)
	}

	if len(input.PermissionIDs) > 0 {
		s.authz.publishPermissions(ctx, domain.OwnerRole, role.ID, input.PermissionIDs, domain.AssignmentSync)
	}
	return s.Get(ctx, role.ID)
}

// Update renames the role and, when PermissionIDs is set, syncs its permissions in one transaction.
func (s *RoleService) Update(ctx context.Context, id string, input RoleInput) (domain.Role, error) {
	current, err := s.roles.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Role{}, translate(err, "load role")
	}

	input.Name = strings.TrimSpace(input.Name)
	syncPermissions := input.PermissionIDs != nil
	if err := s.validate(ctx, input, current.ID); err != nil {
		return domain.Role{}, err
	}
	input.PermissionIDs = normalizeIDs(input.PermissionIDs)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if input.Name != current.Name {
			if err := s.roles.Rename(ctx, current.ID, input.Name); err != nil {
				return err
			}
		}
		if syncPermissions {
			return s.assignments.SyncRolePermissions(ctx, current.ID, input.PermissionIDs)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return domain.Role{}, conflictError("name", roleNameTakenMessage)
		case errors.Is(err, repository.ErrNotFound):
			return domain.Role{}, ErrNotFound
		}
		return domain.Role{}, fmt.Errorf("update role: %w", err)
	}

	if syncPermissions {
		s.authz.publishPermissions(ctx, domain.OwnerRole, current.ID, input.PermissionIDs, domain.AssignmentSync)
	}
	return s.Get(ctx, current.ID)
}

// Delete removes the role and its links. Permissions are kept.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	if err := s.roles.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return translate(err, "delete role")
	}
	return nil
}

func (s *RoleService) validate(ctx context.Context, input RoleInput, excludeID string) error {
	verr := newValidationError()
	if input.Name == "" {
		verr.Add("name", "The name field is required.")
	} else {
		existing, err := s.roles.GetByName(ctx, input.Name)
		switch {
		case err == nil && existing.ID != excludeID:
			verr.Add("name", roleNameTakenMessage)
			verr.conflict = true
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("check role name: %w", err)
		}
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	return s.authz.ValidatePermissionIDs(ctx, input.PermissionIDs)
}

func (s *RoleService) withPermissions(ctx context.Context, roles []domain.Role) ([]domain.Role, error) {
	roleIDs := make([]string, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}
	byRole, err := s.assignments.PermissionsByRoles(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}

	loaded := make([]domain.Role, 0, len(roles))
	for _, role := range roles {
		role.Permissions = byRole[role.ID]
		if role.Permissions == nil {
			role.Permissions = []domain.Permission{}
		}
		loaded = append(loaded, role)
	}
	return loaded, nil
}
