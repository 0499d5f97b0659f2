package port

import (
	"context"

	"github.com/jebauza/VetFlow/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error
	PublishRolesChanged(ctx context.Context, event domain.RolesChangedEvent) error
	PublishPermissionsChanged(ctx context.Context, event domain.PermissionsChangedEvent) error
	PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error
}
