package port

import (
	"context"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/pagination"
)

// RoleRepository handles role CRUD and listings.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	Rename(ctx context.Context, id string, name string) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context, search string) ([]domain.Role, error)
	SearchPage(ctx context.Context, search string, req pagination.PageRequest) ([]domain.Role, int64, error)
	SearchOffset(ctx context.Context, search string, req pagination.OffsetRequest) ([]domain.Role, int64, error)
	SearchCursor(ctx context.Context, search string, query pagination.CursorQuery) ([]domain.Role, error)
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}
