package port

import (
	"context"

	"github.com/jebauza/VetFlow/internal/core/domain"
)

// PermissionRepository manages permission storage.
type PermissionRepository interface {
	Create(ctx context.Context, permission domain.Permission) error
	GetByID(ctx context.Context, id string) (*domain.Permission, error)
	GetByName(ctx context.Context, name string) (*domain.Permission, error)
	List(ctx context.Context, search string) ([]domain.Permission, error)
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}
