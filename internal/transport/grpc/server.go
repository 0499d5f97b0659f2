package transportgrpc

import (
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/jebauza/VetFlow/internal/transport/grpc/interceptors"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Tokens   TokenVerifier
	Profiles ProfileReader
	Logger   *zap.Logger
	Metrics  *grpcinterceptors.GRPCMetrics
	Tracing  *grpcinterceptors.TracingOptions
	// PublicMethods skip bearer authentication. VerifyToken and health checks are always public.
	PublicMethods []string
}

// Server bundles the gRPC server with its health service so callers can flip serving status.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer wires the token service behind the metrics and auth interceptors, plus
// grpc.health.v1 and reflection.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Tokens == nil || deps.Profiles == nil {
		return nil, errors.New("grpc: token verifier and profile reader are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append([]string{VerifyTokenMethod, healthpb.Health_Check_FullMethodName}, deps.PublicMethods...)
	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Tokens, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: public,
	})

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			deps.Metrics.UnaryServerInterceptor(),
			authInterceptor.UnaryServerInterceptor(),
		),
	}
	if deps.Tracing != nil {
		opts = append(opts, grpcinterceptors.TracingServerOption(*deps.Tracing))
	}

	server := grpc.NewServer(opts...)
	RegisterTokenServiceServer(server, NewTokenServer(deps.Tokens, deps.Profiles, logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(TokenServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	reflection.Register(server)

	return &Server{Server: server, Health: healthServer}, nil
}
