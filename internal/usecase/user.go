package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/ids"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/repository"
)

// AvatarFolder is the blob folder holding user avatars.
const AvatarFolder = "user/avatars"

// Cursor scopes bind signed cursors to one listing.
const (
	CursorScopeUsers = "users"
	CursorScopeRoles = "roles"
)

const minAdminPasswordLength = 8

// UserProfileInput holds the mutable profile attributes shared by create and update.
type UserProfileInput struct {
	Email        string
	Name         string
	Surname      string
	Phone        *string
	TypeDocument *domain.DocumentType
	NDocument    *string
	BirthDate    *time.Time
	Designation  *string
	Gender       *domain.Gender
}

// CreateUserInput is the admin create payload. Avatar is optional.
type CreateUserInput struct {
	UserProfileInput
	Password string
	RoleID   *string
	Avatar   io.Reader
}

// UpdateUserInput is the admin update payload.
// An empty Password keeps the stored hash, a nil RoleID keeps the roles and an empty RoleID clears them.
type UpdateUserInput struct {
	UserProfileInput
	Password string
	RoleID   *string
	Avatar   io.Reader
}

// UserService handles the managed user lifecycle including avatars.
type UserService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	assignments port.AssignmentRepository
	authz       *AuthorizationService
	tx          port.Transactor
	hasher      port.PasswordHasher
	blobs       port.BlobStore
	images      port.ImageNormalizer
	pages       *pagination.Engine
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(
	users port.UserRepository,
	roles port.RoleRepository,
	assignments port.AssignmentRepository,
	authz *AuthorizationService,
	tx port.Transactor,
	hasher port.PasswordHasher,
	blobs port.BlobStore,
	images port.ImageNormalizer,
	pages *pagination.Engine,
	events port.EventPublisher,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       users,
		roles:       roles,
		assignments: assignments,
		authz:       authz,
		tx:          tx,
		hasher:      hasher,
		blobs:       blobs,
		images:      images,
		pages:       pages,
		events:      events,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListPage returns a numbered page of relation-loaded users.
func (s *UserService) ListPage(ctx context.Context, search string, req pagination.PageRequest) (pagination.Page[domain.UserWithAccess], error) {
	users, total, err := s.users.SearchPage(ctx, port.UserFilter{Search: search}, req)
	if err != nil {
		return pagination.Page[domain.UserWithAccess]{}, fmt.Errorf("search users: %w", err)
	}
	loaded, err := s.withAccess(ctx, users)
	if err != nil {
		return pagination.Page[domain.UserWithAccess]{}, err
	}
	return pagination.NewPage(loaded, req, total), nil
}

// ListOffset returns an offset window of relation-loaded users.
func (s *UserService) ListOffset(ctx context.Context, search string, req pagination.OffsetRequest) (pagination.OffsetPage[domain.UserWithAccess], error) {
	users, total, err := s.users.SearchOffset(ctx, port.UserFilter{Search: search}, req)
	if err != nil {
		return pagination.OffsetPage[domain.UserWithAccess]{}, fmt.Errorf("search users: %w", err)
	}
	loaded, err := s.withAccess(ctx, users)
	if err != nil {
		return pagination.OffsetPage[domain.UserWithAccess]{}, err
	}
	return pagination.NewOffsetPage(loaded, req, total), nil
}

// ListCursor returns a keyset window of relation-loaded users.
func (s *UserService) ListCursor(ctx context.Context, search string, query pagination.CursorQuery) (pagination.CursorPage[domain.UserWithAccess], error) {
	var empty pagination.CursorPage[domain.UserWithAccess]

	users, err := s.users.SearchCursor(ctx, port.UserFilter{Search: search}, query)
	if err != nil {
		return empty, cursorError(err, "search users")
	}
	page, err := pagination.BuildCursorPage(s.pages, query, users, domain.User.SortKey)
	if err != nil {
		return empty, err
	}
	loaded, err := s.withAccess(ctx, page.Items)
	if err != nil {
		return empty, err
	}
	return pagination.CursorPage[domain.UserWithAccess]{Items: loaded, Meta: page.Meta}, nil
}

// Get returns one live user with roles and effective permissions.
func (s *UserService) Get(ctx context.Context, id string) (domain.UserWithAccess, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserWithAccess{}, translate(err, "load user")
	}
	loaded, err := s.withAccess(ctx, []domain.User{*user})
	if err != nil {
		return domain.UserWithAccess{}, err
	}
	return loaded[0], nil
}

// Create validates the payload, stores the avatar, then creates the row and its role in one transaction.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (domain.UserWithAccess, error) {
	input.UserProfileInput = trimProfile(input.UserProfileInput)

	verr, err := s.validateProfile(ctx, input.UserProfileInput, "")
	if err != nil {
		return domain.UserWithAccess{}, err
	}
	if input.Password == "" {
		verr.Add("password", "The password field is required.")
	} else if utf8.RuneCountInString(input.Password) < minAdminPasswordLength {
		verr.Add("password", fmt.Sprintf("The password must be at least %d characters.", minAdminPasswordLength))
	}
	roleIDs, err := s.validateRole(ctx, verr, input.RoleID)
	if err != nil {
		return domain.UserWithAccess{}, err
	}
	if err := verr.OrNil(); err != nil {
		return domain.UserWithAccess{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.UserWithAccess{}, fmt.Errorf("hash password: %w", err)
	}

	avatar, err := s.storeAvatar(ctx, input.Avatar)
	if err != nil {
		return domain.UserWithAccess{}, err
	}

	now := s.now()
	user := domain.User{ID: ids.NewUUID(), PasswordHash: hash, Avatar: avatar, CreatedAt: now, UpdatedAt: now}
	applyProfile(&user, input.UserProfileInput)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		if len(roleIDs) > 0 {
			return s.assignments.SyncUserRoles(ctx, user.ID, roleIDs)
		}
		return nil
	})
	if err != nil {
		s.discardBlob(ctx, avatar)
		if errors.Is(err, repository.ErrConflict) {
			return domain.UserWithAccess{}, conflictError("email", emailTakenMessage)
		}
		return domain.UserWithAccess{}, fmt.Errorf("create user: %w", err)
	}

	if len(roleIDs) > 0 {
		s.publishRoles(ctx, user.ID, roleIDs)
	}
	return s.Get(ctx, user.ID)
}

// Update replaces the profile. A new avatar is stored first and the old blob is removed only after commit.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (domain.UserWithAccess, error) {
	current, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserWithAccess{}, translate(err, "load user")
	}
	if current.IsSuperAdmin {
		return domain.UserWithAccess{}, ErrSuperAdminProtected
	}

	input.UserProfileInput = trimProfile(input.UserProfileInput)
	verr, err := s.validateProfile(ctx, input.UserProfileInput, current.ID)
	if err != nil {
		return domain.UserWithAccess{}, err
	}
	if input.Password != "" && utf8.RuneCountInString(input.Password) < minAdminPasswordLength {
		verr.Add("password", fmt.Sprintf("The password must be at least %d characters.", minAdminPasswordLength))
	}
	roleIDs, err := s.validateRole(ctx, verr, input.RoleID)
	if err != nil {
		return domain.UserWithAccess{}, err
	}
	if err := verr.OrNil(); err != nil {
		return domain.UserWithAccess{}, err
	}

	updated := *current
	applyProfile(&updated, input.UserProfileInput)
	updated.UpdatedAt = s.now()
	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return domain.UserWithAccess{}, fmt.Errorf("hash password: %w", err)
		}
		updated.PasswordHash = hash
	}

	avatar, err := s.storeAvatar(ctx, input.Avatar)
	if err != nil {
		return domain.UserWithAccess{}, err
	}
	if avatar != nil {
		updated.Avatar = avatar
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, updated); err != nil {
			return err
		}
		if input.RoleID != nil {
			return s.assignments.SyncUserRoles(ctx, updated.ID, roleIDs)
		}
		return nil
	})
	if err != nil {
		s.discardBlob(ctx, avatar)
		switch {
		case errors.Is(err, repository.ErrConflict):
			return domain.UserWithAccess{}, conflictError("email", emailTakenMessage)
		case errors.Is(err, repository.ErrNotFound):
			return domain.UserWithAccess{}, ErrNotFound
		}
		return domain.UserWithAccess{}, fmt.Errorf("update user: %w", err)
	}

	if avatar != nil && current.Avatar != nil && *current.Avatar != *avatar {
		s.discardBlob(ctx, current.Avatar)
	}
	if input.RoleID != nil {
		s.publishRoles(ctx, updated.ID, roleIDs)
	}
	return s.Get(ctx, updated.ID)
}

// Delete soft deletes the user and removes its avatar blob.
func (s *UserService) Delete(ctx context.Context, principal domain.Principal, id string) error {
	current, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return translate(err, "load user")
	}
	if current.IsSuperAdmin {
		return ErrSuperAdminProtected
	}

	now := s.now()
	if err := s.users.SoftDelete(ctx, current.ID, now); err != nil {
		return translate(err, "delete user")
	}
	s.discardBlob(ctx, current.Avatar)

	if s.events != nil {
		event := domain.UserDeletedEvent{
			EventID:   ids.NewULID(),
			UserID:    current.ID,
			DeletedBy: principal.UserID,
			DeletedAt: now,
		}
		if err := s.events.PublishUserDeleted(ctx, event); err != nil {
			s.logger.Warn("publish user deleted failed", zap.String("user_id", current.ID), zap.Error(err))
		}
	}
	return nil
}

// Avatar returns the blob path of the user's avatar, or ErrAvatarNotFound.
func (s *UserService) Avatar(ctx context.Context, id string) (string, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return "", translate(err, "load user")
	}
	if user.Avatar == nil || *user.Avatar == "" {
		return "", ErrAvatarNotFound
	}
	exists, err := s.blobs.Exists(ctx, *user.Avatar)
	if err != nil {
		return "", fmt.Errorf("stat avatar: %w", err)
	}
	if !exists {
		return "", ErrAvatarNotFound
	}
	return *user.Avatar, nil
}

// OpenAvatar streams the avatar blob. The caller closes the reader.
func (s *UserService) OpenAvatar(ctx context.Context, id string) (io.ReadCloser, string, error) {
	path, err := s.Avatar(ctx, id)
	if err != nil {
		return nil, "", err
	}
	body, err := s.blobs.Open(ctx, path)
	if err != nil {
		if errors.Is(err, port.ErrBlobNotFound) {
			return nil, "", ErrAvatarNotFound
		}
		return nil, "", fmt.Errorf("open avatar: %w", err)
	}
	return body, path, nil
}

// AvatarURL maps a stored avatar path to its public URL.
func (s *UserService) AvatarURL(path *string) *string {
	if path == nil || s.blobs == nil {
		return nil
	}
	return s.blobs.URL(*path)
}

func (s *UserService) withAccess(ctx context.Context, users []domain.User) ([]domain.UserWithAccess, error) {
	userIDs := make([]string, 0, len(users))
	for _, user := range users {
		userIDs = append(userIDs, user.ID)
	}
	access, err := s.authz.AccessForUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	loaded := make([]domain.UserWithAccess, 0, len(users))
	for _, user := range users {
		user.PasswordHash = ""
		entry := access[user.ID]
		roles := entry.Roles
		if roles == nil {
			roles = []domain.Role{}
		}
		permissions := entry.Permissions
		if permissions == nil {
			permissions = []domain.Permission{}
		}
		loaded = append(loaded, domain.UserWithAccess{User: user, Roles: roles, AllPermissions: permissions})
	}
	return loaded, nil
}

// validateProfile collects field errors; the returned error is reserved for store failures.
func (s *UserService) validateProfile(ctx context.Context, input UserProfileInput, excludeID string) (*ValidationError, error) {
	verr := newValidationError()
	requireField(verr, "name", input.Name)
	requireField(verr, "surname", input.Surname)
	requireField(verr, "email", input.Email)
	if input.TypeDocument != nil && !input.TypeDocument.Valid() {
		verr.Add("type_document", "The selected type document is invalid.")
	}
	if input.Gender != nil && !input.Gender.Valid() {
		verr.Add("gender", "The selected gender is invalid.")
	}

	if input.Email != "" {
		taken, err := s.users.EmailTaken(ctx, input.Email, excludeID)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			verr.Add("email", emailTakenMessage)
			verr.conflict = true
		}
	}
	return verr, nil
}

func (s *UserService) validateRole(ctx context.Context, verr *ValidationError, roleID *string) ([]string, error) {
	if roleID == nil {
		return nil, nil
	}
	id := strings.TrimSpace(*roleID)
	if id == "" {
		return []string{}, nil
	}
	if !ids.IsUUID(id) {
		verr.Add("role_id", "The selected role id is invalid.")
		return nil, nil
	}
	if _, err := s.roles.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			verr.Add("role_id", "The selected role id is invalid.")
			return nil, nil
		}
		return nil, fmt.Errorf("load role: %w", err)
	}
	return []string{id}, nil
}

func (s *UserService) storeAvatar(ctx context.Context, r io.Reader) (*string, error) {
	if r == nil {
		return nil, nil
	}
	data, ext, err := s.images.Normalize(r)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrImageTooLarge):
			return nil, NewFieldError("avatar", "The avatar may not be greater than 2048 kilobytes.")
		case errors.Is(err, port.ErrImageFormat):
			return nil, NewFieldError("avatar", "The avatar must be a file of type: jpg, png.")
		}
		return nil, fmt.Errorf("normalize avatar: %w", err)
	}

	path, err := s.blobs.Save(ctx, bytes.NewReader(data), AvatarFolder, ext)
	if err != nil {
		return nil, fmt.Errorf("save avatar: %w", err)
	}
	return &path, nil
}

func (s *UserService) discardBlob(ctx context.Context, path *string) {
	if path == nil || *path == "" {
		return
	}
	if _, err := s.blobs.Delete(ctx, *path); err != nil {
		s.logger.Warn("delete avatar blob failed", zap.String("path", *path), zap.Error(err))
	}
}

func (s *UserService) publishRoles(ctx context.Context, userID string, roleIDs []string) {
	if s.events == nil {
		return
	}
	event := domain.RolesChangedEvent{
		EventID:   ids.NewULID(),
		UserID:    userID,
		Mode:      domain.AssignmentSync,
		RoleIDs:   roleIDs,
		ChangedAt: s.now(),
	}
	if err := s.events.PublishRolesChanged(ctx, event); err != nil {
		s.logger.Warn("publish roles changed failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func trimProfile(input UserProfileInput) UserProfileInput {
	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	input.Surname = strings.TrimSpace(input.Surname)
	input.Phone = trimOptional(input.Phone)
	input.NDocument = trimOptional(input.NDocument)
	input.Designation = trimOptional(input.Designation)
	return input
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func applyProfile(user *domain.User, input UserProfileInput) {
	user.Email = input.Email
	user.Name = input.Name
	user.Surname = input.Surname
	user.Phone = input.Phone
	user.TypeDocument = input.TypeDocument
	user.NDocument = input.NDocument
	user.BirthDate = input.BirthDate
	user.Designation = input.Designation
	user.Gender = input.Gender
}

// cursorError turns keyset mismatches into a cursor field error.
func cursorError(err error, action string) error {
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return NewFieldError("cursor", "is invalid")
	}
	return fmt.Errorf("%s: %w", action, err)
}
