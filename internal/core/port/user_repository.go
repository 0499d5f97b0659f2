package port

import (
	"context"
	"time"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/pagination"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Search string
}

// UserRepository abstracts persistence for user accounts.
// Listings never include super admins or soft deleted users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	Update(ctx context.Context, user domain.User) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIDWithDeleted(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailTaken(ctx context.Context, email string, excludeID string) (bool, error)
	SearchPage(ctx context.Context, filter UserFilter, req pagination.PageRequest) ([]domain.User, int64, error)
	SearchOffset(ctx context.Context, filter UserFilter, req pagination.OffsetRequest) ([]domain.User, int64, error)
	SearchCursor(ctx context.Context, filter UserFilter, query pagination.CursorQuery) ([]domain.User, error)
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}
