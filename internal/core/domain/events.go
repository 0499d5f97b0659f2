package domain

import "time"

// UserRegisteredEvent represents the payload for vetflow.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	Name         string
	Surname      string
	RegisteredAt time.Time
	Method       string
	Metadata     map[string]any
}

// UserDeletedEvent represents the payload for vetflow.user.deleted messages.
type UserDeletedEvent struct {
	EventID   string
	UserID    string
	DeletedBy string
	DeletedAt time.Time
}

// AssignmentMode distinguishes additive assignment from replace-all synchronisation.
type AssignmentMode string

const (
	AssignmentAssign AssignmentMode = "assign"
	AssignmentSync   AssignmentMode = "sync"
)

// RolesChangedEvent represents the payload for vetflow.user.roles.synced messages.
type RolesChangedEvent struct {
	EventID   string
	UserID    string
	Mode      AssignmentMode
	RoleIDs   []string
	ChangedAt time.Time
}

// PermissionsChangedEvent represents the payload for user or role permission changes.
type PermissionsChangedEvent struct {
	EventID       string
	OwnerType     string
	OwnerID       string
	Mode          AssignmentMode
	PermissionIDs []string
	ChangedAt     time.Time
}

// Permission owner kinds carried by PermissionsChangedEvent.
const (
	OwnerUser = "user"
	OwnerRole = "role"
)

// TokenRevokedEvent represents the payload for vetflow.token.revoked messages.
type TokenRevokedEvent struct {
	EventID   string    `json:"event_id"`
	JTI       string    `json:"jti"`
	SubjectID string    `json:"subject_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}
