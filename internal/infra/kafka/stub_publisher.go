package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt, zap.String("method", event.Method))
	return nil
}

func (p *StubPublisher) PublishUserDeleted(_ context.Context, event domain.UserDeletedEvent) error {
	p.logEvent(EventUserDeleted, event.UserID, event.DeletedAt, zap.String("deleted_by", event.DeletedBy))
	return nil
}

func (p *StubPublisher) PublishRolesChanged(_ context.Context, event domain.RolesChangedEvent) error {
	p.logEvent(EventUserRolesSynced, event.UserID, event.ChangedAt,
		zap.String("mode", string(event.Mode)),
		zap.Strings("role_ids", event.RoleIDs),
	)
	return nil
}

func (p *StubPublisher) PublishPermissionsChanged(_ context.Context, event domain.PermissionsChangedEvent) error {
	eventType := EventUserPermissionsSynced
	if event.OwnerType == domain.OwnerRole {
		eventType = EventRolePermissionsSynced
	}
	p.logEvent(eventType, event.OwnerID, event.ChangedAt,
		zap.String("mode", string(event.Mode)),
		zap.Strings("permission_ids", event.PermissionIDs),
	)
	return nil
}

func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	p.logEvent(EventTokenRevoked, event.SubjectID, event.RevokedAt,
		zap.String("jti", event.JTI),
		zap.String("reason", event.Reason),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
