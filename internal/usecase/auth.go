package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/ids"
	"github.com/jebauza/VetFlow/internal/repository"
)

const (
	registrationMethodPassword = "password"
	emailTakenMessage          = "The email has already been taken."
)

// RegisterInput is the self-service registration payload.
type RegisterInput struct {
	Name     string
	Surname  string
	Email    string
	Password string
}

// AuthResult pairs the authenticated user with a freshly issued token.
type AuthResult struct {
	User  domain.User
	Token domain.IssuedToken
}

// Profile is the "who am I" view of the caller.
type Profile struct {
	ID          string
	Email       string
	Name        string
	Surname     string
	Avatar      *string
	Permissions []string
	Roles       []string
}

// AuthService coordinates registration, login and the token endpoints.
type AuthService struct {
	users  port.UserRepository
	hasher port.PasswordHasher
	policy port.PasswordPolicyValidator
	tokens *TokenService
	authz  *AuthorizationService
	blobs  port.BlobStore
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	tokens *TokenService,
	authz *AuthorizationService,
	blobs port.BlobStore,
	events port.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		hasher: hasher,
		policy: policy,
		tokens: tokens,
		authz:  authz,
		blobs:  blobs,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a user from the public form and logs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Surname = strings.TrimSpace(input.Surname)
	input.Email = strings.TrimSpace(input.Email)

	verr := newValidationError()
	requireField(verr, "name", input.Name)
	requireField(verr, "surname", input.Surname)
	requireField(verr, "email", input.Email)
	if input.Password == "" {
		verr.Add("password", "The password field is required.")
	} else if s.policy != nil {
		if err := s.policy.Validate(input.Password, input.Email, input.Name, input.Surname); err != nil {
			verr.Add("password", err.Error())
		}
	}
	if err := verr.OrNil(); err != nil {
		return AuthResult{}, err
	}

	taken, err := s.users.EmailTaken(ctx, input.Email, "")
	if err != nil {
		return AuthResult{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return AuthResult{}, conflictError("email", emailTakenMessage)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           ids.NewUUID(),
		Email:        input.Email,
		Name:         input.Name,
		Surname:      input.Surname,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return AuthResult{}, conflictError("email", emailTakenMessage)
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	if s.events != nil {
		event := domain.UserRegisteredEvent{
			EventID:      ids.NewULID(),
			UserID:       user.ID,
			Email:        user.Email,
			Name:         user.Name,
			Surname:      user.Surname,
			RegisteredAt: now,
			Method:       registrationMethodPassword,
		}
		if err := s.events.PublishUserRegistered(ctx, event); err != nil {
			s.logger.Warn("publish user registered failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	token, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: sanitize(user), Token: token}, nil
}

// Login checks credentials. Unknown emails and wrong passwords return the same error after similar work.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnVerify(password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	s.rehashIfNeeded(ctx, user, password)

	token, err := s.tokens.Issue(ctx, *user)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: sanitize(*user), Token: token}, nil
}

// Me loads the caller with role names and effective permission names.
func (s *AuthService) Me(ctx context.Context, principal domain.Principal) (Profile, error) {
	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrUnauthenticated
		}
		return Profile{}, fmt.Errorf("load user: %w", err)
	}

	access, err := s.authz.AccessForUsers(ctx, []string{user.ID})
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Surname:     user.Surname,
		Permissions: domain.PermissionNames(access[user.ID].Permissions),
		Roles:       domain.RoleNames(access[user.ID].Roles),
	}
	if user.Avatar != nil && s.blobs != nil {
		profile.Avatar = s.blobs.URL(*user.Avatar)
	}
	return profile, nil
}

// Refresh exchanges the presented token for a new one.
func (s *AuthService) Refresh(ctx context.Context, raw string) (domain.IssuedToken, error) {
	return s.tokens.Refresh(ctx, raw)
}

// Logout invalidates the presented token.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.tokens.Invalidate(ctx, raw)
}

// burnVerify runs one verification against a fixed hash so unknown emails cost the same as wrong passwords.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("vetflow-timing-equaliser")
		if err != nil {
			s.logger.Warn("build dummy password hash failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

func (s *AuthService) rehashIfNeeded(ctx context.Context, user *domain.User, password string) {
	rehasher, ok := s.hasher.(port.PasswordRehasher)
	if !ok || !rehasher.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("rehash password failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	updated := *user
	updated.PasswordHash = hash
	updated.UpdatedAt = s.now()
	if err := s.users.Update(ctx, updated); err != nil {
		s.logger.Warn("store rehashed password failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func requireField(verr *ValidationError, field, value string) {
	if value == "" {
		verr.Add(field, fmt.Sprintf("The %s field is required.", field))
	}
}

func sanitize(user domain.User) domain.User {
	user.PasswordHash = ""
	return user
}
