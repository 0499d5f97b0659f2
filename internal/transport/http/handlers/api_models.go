package handlers

import (
	"time"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/usecase"
)

const (
	dateLayout      = "2006-01-02"
	dateLayoutLabel = "Y-m-d"
	timestampLayout = "2006-01-02 15:04:05"
)

// RegisterRequest is the self-service registration payload.
type RegisterRequest struct {
	Name     string `json:"name" form:"name" validate:"required,max=255"`
	Surname  string `json:"surname" form:"surname" validate:"required,max=255"`
	Email    string `json:"email" form:"email" validate:"required,email,max=255"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

// LoginRequest carries email and password credentials.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=8"`
}

// TokenResponse describes an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
	ExpiresAt   string `json:"expires_at" example:"2026-09-26 16:16:49"`
	ExpiresIn   int    `json:"expires_in" example:"3600"`
}

// RegisterResponse pairs the created account with its first token.
type RegisterResponse struct {
	User  UserLite      `json:"user"`
	Token TokenResponse `json:"token"`
}

// UserLite is the minimal user projection returned on registration.
type UserLite struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// ProfileResponse is the payload of GET /auth/me.
type ProfileResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Surname     string   `json:"surname"`
	Avatar      *string  `json:"avatar"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

// UserRequest is the create and update payload for managed users. It binds from JSON or
// multipart forms; the avatar file is read separately from the "avatar" form part.
type UserRequest struct {
	Email        string  `json:"email" form:"email" validate:"required,email,max=255"`
	Name         string  `json:"name" form:"name" validate:"required,max=255"`
	Surname      string  `json:"surname" form:"surname" validate:"required,max=255"`
	Password     string  `json:"password" form:"password" validate:"omitempty,min=8"`
	Phone        *string `json:"phone" form:"phone" validate:"omitempty,max=25"`
	TypeDocument *string `json:"type_document" form:"type_document" validate:"omitempty,oneof=dni nie passport"`
	NDocument    *string `json:"n_document" form:"n_document" validate:"omitempty,max=25"`
	BirthDate    *string `json:"birth_date" form:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	Designation  *string `json:"designation" form:"designation" validate:"omitempty,max=255"`
	Gender       *string `json:"gender" form:"gender" validate:"omitempty,oneof=male female other"`
	RoleID       *string `json:"role_id" form:"role_id" validate:"omitempty,uuid"`
}

// RoleIDsRequest lists role ids for assign and sync operations.
type RoleIDsRequest struct {
	Roles []string `json:"roles" validate:"required,dive,uuid"`
}

// PermissionIDsRequest lists permission ids for assign and sync operations.
type PermissionIDsRequest struct {
	Permissions []string `json:"permissions" validate:"required,dive,uuid"`
}

// RoleRequest is the role create and update payload. On update an absent permissions list keeps
// the current set.
type RoleRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,uuid"`
}

// NamedRef is an {id, name} reference to a role or permission.
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserResponse is the full user resource.
type UserResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Surname        string     `json:"surname"`
	Email          string     `json:"email"`
	Avatar         *string    `json:"avatar"`
	Phone          *string    `json:"phone"`
	TypeDocument   *string    `json:"type_document"`
	NDocument      *string    `json:"n_document"`
	BirthDate      *string    `json:"birth_date"`
	Designation    *string    `json:"designation"`
	Gender         *string    `json:"gender"`
	Roles          []NamedRef `json:"roles"`
	AllPermissions []NamedRef `json:"all_permissions"`
}

// RoleResponse is the role resource with its direct permissions.
type RoleResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Date        string     `json:"date" example:"2026-10-28 22:59:44"`
	Permissions []NamedRef `json:"permissions"`
}

// JWK is one RSA public key in a JWKS document.
type JWK struct {
	Kty string `json:"kty" example:"RSA"`
	Use string `json:"use" example:"sig"`
	Alg string `json:"alg" example:"RS256"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e" example:"AQAB"`
}

// JWKSResponse is the key set served at /auth/jwks.
type JWKSResponse struct {
	Keys []JWK `json:"keys"`
}

// HealthResponse represents the response returned by the health endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newTokenResponse(token domain.IssuedToken, now time.Time) TokenResponse {
	return TokenResponse{
		AccessToken: token.Token,
		TokenType:   "bearer",
		ExpiresAt:   token.ExpiresAt.UTC().Format(timestampLayout),
		ExpiresIn:   max(int(token.ExpiresAt.Sub(now).Seconds()), 0),
	}
}

func newProfileResponse(profile usecase.Profile) ProfileResponse {
	return ProfileResponse{
		ID:          profile.ID,
		Email:       profile.Email,
		Name:        profile.Name,
		Surname:     profile.Surname,
		Avatar:      profile.Avatar,
		Permissions: profile.Permissions,
		Roles:       profile.Roles,
	}
}

func permissionRefs(permissions []domain.Permission) []NamedRef {
	refs := make([]NamedRef, 0, len(permissions))
	for _, p := range permissions {
		refs = append(refs, NamedRef{ID: p.ID, Name: p.Name})
	}
	return refs
}

func roleRefs(roles []domain.Role) []NamedRef {
	refs := make([]NamedRef, 0, len(roles))
	for _, r := range roles {
		refs = append(refs, NamedRef{ID: r.ID, Name: r.Name})
	}
	return refs
}

func newRoleResponse(role domain.Role) RoleResponse {
	return RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Date:        role.CreatedAt.UTC().Format(timestampLayout),
		Permissions: permissionRefs(role.Permissions),
	}
}

func newUserResponse(user domain.UserWithAccess, avatarURL func(*string) *string) UserResponse {
	resp := UserResponse{
		ID:             user.ID,
		Name:           user.Name,
		Surname:        user.Surname,
		Email:          user.Email,
		Avatar:         avatarURL(user.Avatar),
		Phone:          user.Phone,
		NDocument:      user.NDocument,
		Designation:    user.Designation,
		Roles:          roleRefs(user.Roles),
		AllPermissions: permissionRefs(user.AllPermissions),
	}
	if user.TypeDocument != nil {
		value := string(*user.TypeDocument)
		resp.TypeDocument = &value
	}
	if user.Gender != nil {
		value := string(*user.Gender)
		resp.Gender = &value
	}
	if user.BirthDate != nil {
		value := user.BirthDate.Format(dateLayout)
		resp.BirthDate = &value
	}
	return resp
}

func mapSlice[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

// toProfileInput converts a validated request. BirthDate is already known to parse.
func (r UserRequest) toProfileInput() usecase.UserProfileInput {
	input := usecase.UserProfileInput{
		Email:       r.Email,
		Name:        r.Name,
		Surname:     r.Surname,
		Phone:       r.Phone,
		NDocument:   r.NDocument,
		Designation: r.Designation,
	}
	if r.TypeDocument != nil && *r.TypeDocument != "" {
		value := domain.DocumentType(*r.TypeDocument)
		input.TypeDocument = &value
	}
	if r.Gender != nil && *r.Gender != "" {
		value := domain.Gender(*r.Gender)
		input.Gender = &value
	}
	if r.BirthDate != nil && *r.BirthDate != "" {
		if parsed, err := time.Parse(dateLayout, *r.BirthDate); err == nil {
			input.BirthDate = &parsed
		}
	}
	return input
}
