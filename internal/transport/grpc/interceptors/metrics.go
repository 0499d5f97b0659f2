package interceptors

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/jebauza/VetFlow/internal/infra/telemetry"
)

// GRPCMetricsOptions configures the unary metrics interceptor. Zero values fall back to the
// default registerer, the vetflow_grpc prefix and the default buckets.
type GRPCMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// GRPCMetrics counts and times unary calls by method and status code.
type GRPCMetrics struct {
	handled *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewGRPCMetrics registers the collectors, reusing ones registered by an earlier call.
func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Namespace == "" {
		opts.Namespace = "vetflow"
	}
	if opts.Subsystem == "" {
		opts.Subsystem = "grpc"
	}
	if len(opts.Buckets) == 0 {
		opts.Buckets = prometheus.DefBuckets
	}
	labels := []string{"method", "code"}

	m := &GRPCMetrics{}
	var err error
	if m.handled, err = telemetry.Register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "handled_total",
		Help:      "Unary gRPC calls by method and status code.",
	}, labels)); err != nil {
		return nil, err
	}
	if m.latency, err = telemetry.Register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "handling_seconds",
		Help:      "Unary gRPC handling time in seconds by method and status code.",
		Buckets:   opts.Buckets,
	}, labels)); err != nil {
		return nil, err
	}
	return m, nil
}

// UnaryServerInterceptor records every call, including ones the auth interceptor rejects.
// A nil receiver passes calls through.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m == nil {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)

		method, code := methodLabel(info.FullMethod), status.Code(err).String()
		m.handled.WithLabelValues(method, code).Inc()
		m.latency.WithLabelValues(method, code).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// methodLabel turns "/pkg.Service/Method" into "Service/Method".
func methodLabel(fullMethod string) string {
	service, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok || service == "" || method == "" {
		return "unknown"
	}
	if i := strings.LastIndex(service, "."); i >= 0 {
		service = service[i+1:]
	}
	return service + "/" + method
}
