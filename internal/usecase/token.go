package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/core/port"
	"github.com/jebauza/VetFlow/internal/infra/config"
	"github.com/jebauza/VetFlow/internal/infra/ids"
	"github.com/jebauza/VetFlow/internal/infra/security"
	"github.com/jebauza/VetFlow/internal/repository"
)

// Token kinds reported to TokenMetrics.
const (
	TokenKindAccess  = "access"
	TokenKindRefresh = "refresh"
)

// TokenOptions tunes the token lifecycle.
type TokenOptions struct {
	AccessTTL time.Duration
	// Fanout publishes every revocation so other nodes can hydrate a local denylist.
	Fanout bool
	// Degradation decides whether a failed denylist lookup rejects the token.
	Degradation domain.DegradationPolicy
}

// TokenOptionsFromConfig maps the jwt and denylist sections onto TokenOptions.
func TokenOptionsFromConfig(cfg *config.AppConfig) TokenOptions {
	opts := TokenOptions{
		AccessTTL: cfg.JWT.AccessTokenTTL,
		Fanout:    cfg.Denylist.Backend == "memory" && cfg.Kafka.RevocationFanout,
	}
	mode, _ := domain.ParseDegradationPolicyMode(cfg.Denylist.Degradation)
	opts.Degradation = domain.NewDegradationPolicy(mode)
	return opts
}

// TokenService issues, verifies, refreshes and invalidates access tokens.
type TokenService struct {
	jwt      *security.JWTManager
	denylist port.TokenDenylist
	users    port.UserRepository
	events   port.EventPublisher
	metrics  port.TokenMetrics
	opts     TokenOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewTokenService constructs a TokenService instance. events and metrics may be nil.
func NewTokenService(
	jwtManager *security.JWTManager,
	denylist port.TokenDenylist,
	users port.UserRepository,
	events port.EventPublisher,
	metrics port.TokenMetrics,
	opts TokenOptions,
	logger *zap.Logger,
) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 60 * time.Minute
	}

	service := &TokenService{
		jwt:      jwtManager,
		denylist: denylist,
		users:    users,
		events:   events,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the service clock for deterministic tests.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// AccessTTL returns the configured lifetime of issued tokens.
func (s *TokenService) AccessTTL() time.Duration {
	return s.opts.AccessTTL
}

// Issue mints a signed access token for user.
func (s *TokenService) Issue(_ context.Context, user domain.User) (domain.IssuedToken, error) {
	return s.issue(user, TokenKindAccess)
}

func (s *TokenService) issue(user domain.User, kind string) (domain.IssuedToken, error) {
	if strings.TrimSpace(user.ID) == "" {
		return domain.IssuedToken{}, errors.New("user id is required")
	}

	claims, err := s.jwt.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:     user.ID,
		SuperAdmin: user.IsSuperAdmin,
		TTL:        s.opts.AccessTTL,
		IssuedAt:   s.now(),
		JTI:        ids.NewULID(),
	})
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("build token claims: %w", err)
	}

	token, err := s.jwt.SignAccessToken(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TokenIssued(kind)
	}
	return domain.IssuedToken{
		Token:     token,
		TokenType: "bearer",
		JTI:       claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks signature, expiry and the denylist.
func (s *TokenService) Verify(ctx context.Context, raw string) (*security.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(raw)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, s.reject("expired", ErrExpiredAccessToken)
		}
		return nil, s.reject("invalid", ErrInvalidAccessToken)
	}
	if err := s.checkDenylist(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Principal verifies raw and returns the caller it identifies.
func (s *TokenService) Principal(ctx context.Context, raw string) (domain.Principal, error) {
	claims, err := s.Verify(ctx, raw)
	if err != nil {
		return domain.Principal{}, err
	}
	return principalFromClaims(claims), nil
}

// Refresh exchanges a currently valid token for a new one. The old jti is denylisted first and
// only the caller whose denylist insert wins receives a new token.
func (s *TokenService) Refresh(ctx context.Context, raw string) (domain.IssuedToken, error) {
	claims, err := s.Verify(ctx, raw)
	if err != nil {
		return domain.IssuedToken{}, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.IssuedToken{}, s.reject("unknown_subject", ErrInvalidAccessToken)
		}
		return domain.IssuedToken{}, fmt.Errorf("load token subject: %w", err)
	}

	added, err := s.revoke(ctx, claims, "refresh")
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if !added {
		return domain.IssuedToken{}, s.reject("revoked", ErrRevokedAccessToken)
	}
	return s.issue(*user, TokenKindRefresh)
}

// Invalidate denylists a currently valid token until it expires. Denylisted tokens are a no-op.
func (s *TokenService) Invalidate(ctx context.Context, raw string) error {
	claims, err := s.Verify(ctx, raw)
	if err != nil {
		if errors.Is(err, ErrRevokedAccessToken) {
			return nil
		}
		return err
	}
	_, err = s.revoke(ctx, claims, "logout")
	return err
}

func (s *TokenService) checkDenylist(ctx context.Context, claims *security.AccessTokenClaims) error {
	revoked, err := s.denylist.Contains(ctx, claims.ID)
	if err != nil {
		if s.opts.Degradation.AllowsFallback(domain.DegradationReasonDenylistUnavailable) {
			s.logger.Warn("denylist unavailable, accepting token",
				zap.String("jti", claims.ID),
				zap.String("user_id", claims.UserID()),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("check token denylist: %w", err)
	}
	if revoked {
		return s.reject("revoked", ErrRevokedAccessToken)
	}
	return nil
}

func (s *TokenService) revoke(ctx context.Context, claims *security.AccessTokenClaims, reason string) (bool, error) {
	revocation := domain.TokenRevocation{
		JTI:       claims.ID,
		SubjectID: claims.UserID(),
		Reason:    reason,
		RevokedAt: s.now(),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	added, err := s.denylist.Add(ctx, revocation)
	if err != nil {
		return false, fmt.Errorf("denylist token: %w", err)
	}
	if !added {
		return false, nil
	}
	if s.metrics != nil {
		s.metrics.TokenRevoked()
	}

	if s.opts.Fanout && s.events != nil {
		event := domain.TokenRevokedEvent{
			EventID:   ids.NewULID(),
			JTI:       revocation.JTI,
			SubjectID: revocation.SubjectID,
			ExpiresAt: revocation.ExpiresAt,
			Reason:    reason,
			RevokedAt: revocation.RevokedAt,
		}
		if err := s.events.PublishTokenRevoked(ctx, event); err != nil {
			s.logger.Warn("publish token revocation failed", zap.String("jti", revocation.JTI), zap.Error(err))
		}
	}
	return true, nil
}

func (s *TokenService) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.TokenRejected(reason)
	}
	return err
}

func principalFromClaims(claims *security.AccessTokenClaims) domain.Principal {
	principal := domain.Principal{
		UserID:       claims.UserID(),
		TokenID:      claims.ID,
		IsSuperAdmin: claims.SuperAdmin,
	}
	if claims.IssuedAt != nil {
		principal.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal
}
