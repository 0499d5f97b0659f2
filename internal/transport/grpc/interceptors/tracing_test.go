package interceptors

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
)

type pingServer interface {
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

type pinger struct{}

func (pinger) Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

var pingDesc = grpc.ServiceDesc{
	ServiceName: "test.Echo",
	HandlerType: (*pingServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Ping",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(pingServer).Ping(ctx, in)
		},
	}},
}

func TestTracingHandlerRecordsServerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(TracingServerOption(TracingOptions{TracerProvider: tp}))
	server.RegisterService(&pingDesc, pinger{})
	healthpb.RegisterHealthServer(server, health.NewServer())

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := conn.Invoke(ctx, "/test.Echo/Ping", &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{}); err != nil {
		t.Fatalf("health: %v", err)
	}

	server.GracefulStop()

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	if len(names) != 1 || names[0] != "test.Echo/Ping" {
		t.Fatalf("expected only the ping span, got %v", names)
	}
}

func TestTracedSkipsInfrastructureServices(t *testing.T) {
	cases := map[string]bool{
		"/vetflow.auth.v1.TokenService/VerifyToken":                      true,
		"/grpc.health.v1.Health/Check":                                   false,
		"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      false,
		"/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": false,
	}
	for method, want := range cases {
		if got := traced(&stats.RPCTagInfo{FullMethodName: method}); got != want {
			t.Fatalf("traced(%q) = %v, want %v", method, got, want)
		}
	}
}
