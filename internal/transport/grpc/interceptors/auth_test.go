package interceptors

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/usecase"
)

type stubResolver struct {
	principal domain.Principal
	err       error
	seen      string
}

func (s *stubResolver) Principal(_ context.Context, raw string) (domain.Principal, error) {
	s.seen = raw
	if s.err != nil {
		return domain.Principal{}, s.err
	}
	return s.principal, nil
}

var privateMethod = &grpc.UnaryServerInfo{FullMethod: "/vetflow.auth.v1.TokenService/EffectivePermissions"}

func mustNotRun(t *testing.T) grpc.UnaryHandler {
	return func(context.Context, any) (any, error) {
		t.Fatalf("handler should not be invoked")
		return nil, nil
	}
}

func TestAuthInterceptorStoresPrincipal(t *testing.T) {
	resolver := &stubResolver{principal: domain.Principal{UserID: "user-123"}}
	interceptor := NewAuthInterceptor(resolver, AuthOptions{Logger: zaptest.NewLogger(t)}).UnaryServerInterceptor()

	handler := func(ctx context.Context, req any) (any, error) {
		got, ok := PrincipalFromContext(ctx)
		if !ok || got.UserID != "user-123" {
			t.Fatalf("principal missing from context")
		}
		return "ok", nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "bearer token-value"))
	if _, err := interceptor(ctx, struct{}{}, privateMethod, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolver.seen != "token-value" {
		t.Fatalf("expected raw token forwarded, got %q", resolver.seen)
	}
}

func TestAuthInterceptorRejectsMissingToken(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubResolver{}, AuthOptions{}).UnaryServerInterceptor()

	if _, err := interceptor(context.Background(), struct{}{}, privateMethod, mustNotRun(t)); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic abc"))
	if _, err := interceptor(ctx, struct{}{}, privateMethod, mustNotRun(t)); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated for basic scheme, got %v", err)
	}
}

func TestAuthInterceptorPassesThroughAllowedMethods(t *testing.T) {
	resolver := &stubResolver{err: errors.New("should not be called")}
	method := "/vetflow.auth.v1.TokenService/VerifyToken"
	interceptor := NewAuthInterceptor(resolver, AuthOptions{AllowMethods: []string{method}}).UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: method}
	if _, err := interceptor(context.Background(), struct{}{}, info, func(context.Context, any) (any, error) {
		return "pong", nil
	}); err != nil {
		t.Fatalf("expected allowed method to succeed, got %v", err)
	}
}

func TestAuthInterceptorHidesRejectionReason(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubResolver{err: usecase.ErrRevokedAccessToken}, AuthOptions{}).UnaryServerInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer token"))
	_, err := interceptor(ctx, struct{}{}, privateMethod, mustNotRun(t))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if msg := status.Convert(err).Message(); msg != "Unauthenticated." {
		t.Fatalf("rejection reason leaked: %q", msg)
	}
}

func TestAuthInterceptorMapsInfrastructureFailure(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubResolver{err: errors.New("redis down")}, AuthOptions{}).UnaryServerInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer token"))
	if _, err := interceptor(ctx, struct{}{}, privateMethod, mustNotRun(t)); status.Code(err) != codes.Internal {
		t.Fatalf("expected internal, got %v", err)
	}
}
