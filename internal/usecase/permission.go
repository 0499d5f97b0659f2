package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
)

// PermissionService exposes the read side of the permission catalog.
type PermissionService struct {
	permissions port.PermissionRepository
}

// NewPermissionService constructs a PermissionService instance.
func NewPermissionService(permissions port.PermissionRepository) *PermissionService {
	return &PermissionService{permissions: permissions}
}

// List returns every permission matching search ordered by name.
func (s *PermissionService) List(ctx context.Context, search string) ([]domain.Permission, error) {
	permissions, err := s.permissions.List(ctx, search)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return permissions, nil
}

// Get returns one permission.
func (s *PermissionService) Get(ctx context.Context, id string) (domain.Permission, error) {
	permission, err := s.permissions.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Permission{}, translate(err, "load permission")
	}
	return *permission, nil
}
