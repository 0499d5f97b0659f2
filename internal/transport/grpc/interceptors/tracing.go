package interceptors

import (
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// untracedServices are infrastructure services polled by orchestrators and tooling.
var untracedServices = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

// TracingOptions selects the provider and propagators for server spans; nil means global.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
}

// TracingServerOption opens a server span per token service RPC, continuing the caller's
// trace when the metadata carries one. Health and reflection calls are skipped.
func TracingServerOption(opts TracingOptions) grpc.ServerOption {
	options := []otelgrpc.Option{otelgrpc.WithFilter(traced)}
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	return grpc.StatsHandler(otelgrpc.NewServerHandler(options...))
}

func traced(info *stats.RPCTagInfo) bool {
	if info == nil {
		return true
	}
	for _, prefix := range untracedServices {
		if strings.HasPrefix(info.FullMethodName, prefix) {
			return false
		}
	}
	return true
}
