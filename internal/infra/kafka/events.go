package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types; the producer prepends the configured topic prefix.
const (
	EventUserRegistered        = "user.registered"
	EventUserDeleted           = "user.deleted"
	EventUserRolesSynced       = "user.roles.synced"
	EventUserPermissionsSynced = "user.permissions.synced"
	EventRolePermissionsSynced = "role.permissions.synced"
	EventTokenRevoked          = "token.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   json.RawMessage  `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   body,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	return p.producer.Send(ctx, eventType, userID, bytes)
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Email        string         `json:"email"`
		Name         string         `json:"name"`
		Surname      string         `json:"surname"`
		RegisteredAt time.Time      `json:"registered_at"`
		Method       string         `json:"registration_method"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		Name:         event.Name,
		Surname:      event.Surname,
		RegisteredAt: event.RegisteredAt.UTC(),
		Method:       event.Method,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishUserDeleted publishes user.deleted events.
func (p *EventPublisher) PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		DeletedBy string    `json:"deleted_by,omitempty"`
		DeletedAt time.Time `json:"deleted_at"`
	}{
		UserID:    event.UserID,
		DeletedBy: event.DeletedBy,
		DeletedAt: event.DeletedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserDeleted, event.UserID, event.DeletedAt, payload)
}

// PublishRolesChanged publishes user.roles.synced events for both assign and sync.
func (p *EventPublisher) PublishRolesChanged(ctx context.Context, event domain.RolesChangedEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Mode      string    `json:"mode"`
		RoleIDs   []string  `json:"role_ids"`
		ChangedAt time.Time `json:"changed_at"`
	}{
		UserID:    event.UserID,
		Mode:      string(event.Mode),
		RoleIDs:   nonNil(event.RoleIDs),
		ChangedAt: event.ChangedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventUserRolesSynced, event.UserID, event.ChangedAt, payload)
}

// PublishPermissionsChanged publishes user.permissions.synced or role.permissions.synced by owner type.
func (p *EventPublisher) PublishPermissionsChanged(ctx context.Context, event domain.PermissionsChangedEvent) error {
	payload := struct {
		OwnerType     string    `json:"owner_type"`
		OwnerID       string    `json:"owner_id"`
		Mode          string    `json:"mode"`
		PermissionIDs []string  `json:"permission_ids"`
		ChangedAt     time.Time `json:"changed_at"`
	}{
		OwnerType:     event.OwnerType,
		OwnerID:       event.OwnerID,
		Mode:          string(event.Mode),
		PermissionIDs: nonNil(event.PermissionIDs),
		ChangedAt:     event.ChangedAt.UTC(),
	}

	eventType, userID := EventUserPermissionsSynced, event.OwnerID
	if event.OwnerType == domain.OwnerRole {
		eventType, userID = EventRolePermissionsSynced, ""
	}
	return p.publish(ctx, event.EventID, eventType, userID, event.ChangedAt, payload)
}

// PublishTokenRevoked publishes token.revoked events consumed by the revocation fan-out.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	return p.publish(ctx, event.EventID, EventTokenRevoked, event.SubjectID, event.RevokedAt, event)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ port.EventPublisher = (*EventPublisher)(nil)
