package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/usecase"
)

const authorizationKey = "authorization"

var (
	errMissingToken  = errors.New("authorization token required")
	errMalformedAuth = errors.New("invalid authorization header")
)

// PrincipalResolver turns a raw bearer token into the authenticated caller.
type PrincipalResolver interface {
	Principal(ctx context.Context, raw string) (domain.Principal, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor validates incoming requests using JWT access tokens.
type AuthInterceptor struct {
	tokens PrincipalResolver
	logger *zap.Logger
	allow  map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(tokens PrincipalResolver, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{tokens: tokens, logger: logger, allow: allow}
}

// UnaryServerInterceptor resolves the bearer token of every non-public method and stores the
// principal on the handler context. Rejections never say why the token failed.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if ai == nil || ai.tokens == nil {
			return handler(ctx, req)
		}

		if _, ok := ai.allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		token, err := TokenFromMetadata(ctx)
		if err != nil {
			ai.logger.Debug("grpc authentication failed", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "Unauthenticated.")
		}

		principal, err := ai.tokens.Principal(ctx, token)
		if err != nil {
			if !errors.Is(err, usecase.ErrUnauthenticated) {
				ai.logger.Error("grpc token resolution failed", zap.String("method", info.FullMethod), zap.Error(err))
				return nil, status.Error(codes.Internal, "Internal Server Error")
			}
			ai.logger.Debug("grpc token rejected", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, "Unauthenticated.")
		}

		return handler(WithPrincipal(ctx, principal), req)
	}
}

type principalContextKey struct{}

// WithPrincipal returns a derived context carrying the authenticated caller.
func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext extracts the caller stored by the auth interceptor.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	if ctx == nil {
		return domain.Principal{}, false
	}
	principal, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return principal, ok
}

// TokenFromMetadata reads the bearer token from the incoming "authorization" metadata.
func TokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errMissingToken
	}

	values := md.Get(authorizationKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", errMissingToken
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", errMalformedAuth
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}
