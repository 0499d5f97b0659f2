package transportgrpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jebauza/VetFlow/internal/core/domain"
	grpcinterceptors "github.com/jebauza/VetFlow/internal/transport/grpc/interceptors"
	"github.com/jebauza/VetFlow/internal/usecase"
)

const (
	TokenServiceName           = "vetflow.auth.v1.TokenService"
	VerifyTokenMethod          = "/" + TokenServiceName + "/VerifyToken"
	EffectivePermissionsMethod = "/" + TokenServiceName + "/EffectivePermissions"
)

// TokenVerifier resolves raw access tokens.
type TokenVerifier interface {
	Principal(ctx context.Context, raw string) (domain.Principal, error)
}

// ProfileReader loads the caller's roles and effective permissions.
type ProfileReader interface {
	Me(ctx context.Context, principal domain.Principal) (usecase.Profile, error)
}

// TokenServiceServer is the server contract of vetflow.auth.v1.TokenService.
type TokenServiceServer interface {
	VerifyToken(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	EffectivePermissions(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// TokenServer lets sibling services check VetFlow access tokens and ask for a caller's permissions.
type TokenServer struct {
	tokens   TokenVerifier
	profiles ProfileReader
	logger   *zap.Logger
}

var _ TokenServiceServer = (*TokenServer)(nil)

// NewTokenServer constructs a TokenServer.
func NewTokenServer(tokens TokenVerifier, profiles ProfileReader, logger *zap.Logger) *TokenServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenServer{tokens: tokens, profiles: profiles, logger: logger}
}

// VerifyToken reports whether the token is currently accepted. Rejections are answered in the
// payload, not as RPC errors, and carry no reason.
func (s *TokenServer) VerifyToken(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	raw := strings.TrimSpace(in.GetValue())
	if raw == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	principal, err := s.tokens.Principal(ctx, raw)
	if err != nil {
		if errors.Is(err, usecase.ErrUnauthenticated) {
			return structpb.NewStruct(map[string]any{"valid": false})
		}
		s.logger.Error("grpc verify token failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "Internal Server Error")
	}

	return structpb.NewStruct(map[string]any{
		"valid":          true,
		"user_id":        principal.UserID,
		"token_id":       principal.TokenID,
		"is_super_admin": principal.IsSuperAdmin,
		"issued_at":      principal.IssuedAt.UTC().Format(time.RFC3339),
		"expires_at":     principal.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// EffectivePermissions returns the role names and effective permission names of the caller.
func (s *TokenServer) EffectivePermissions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	principal, ok := grpcinterceptors.PrincipalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "Unauthenticated.")
	}

	profile, err := s.profiles.Me(ctx, principal)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUnauthenticated), errors.Is(err, usecase.ErrNotFound):
			return nil, status.Error(codes.Unauthenticated, "Unauthenticated.")
		default:
			s.logger.Error("grpc effective permissions failed", zap.String("user_id", principal.UserID), zap.Error(err))
			return nil, status.Error(codes.Internal, "Internal Server Error")
		}
	}

	return structpb.NewStruct(map[string]any{
		"user_id":        profile.ID,
		"is_super_admin": principal.IsSuperAdmin,
		"roles":          toAnySlice(profile.Roles),
		"permissions":    toAnySlice(profile.Permissions),
	})
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

// RegisterTokenServiceServer registers srv on s.
func RegisterTokenServiceServer(s grpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&tokenServiceDesc, srv)
}

func verifyTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).VerifyToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyTokenMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).VerifyToken(ctx, req.(*wrapperspb.StringValue))
	})
}

func effectivePermissionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).EffectivePermissions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EffectivePermissionsMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).EffectivePermissions(ctx, req.(*emptypb.Empty))
	})
}

// tokenServiceDesc is written by hand; the payloads are protobuf well-known types so no
// generated stubs are needed.
var tokenServiceDesc = grpc.ServiceDesc{
	ServiceName: TokenServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "VerifyToken", Handler: verifyTokenHandler},
		{MethodName: "EffectivePermissions", Handler: effectivePermissionsHandler},
	},
	Streams: []grpc.StreamDesc{},
}
