package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/jebauza/VetFlow/internal/infra/config"
)

func TestTokenMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewTokenMetrics(TokenMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewTokenMetrics returned error: %v", err)
	}

	metrics.TokenIssued("login")
	metrics.TokenIssued("login")
	metrics.TokenRejected("expired")
	metrics.TokenRevoked()
	metrics.ObserveRevocationLag(20 * time.Millisecond)

	if got := testutil.ToFloat64(metrics.Issued.WithLabelValues("login")); got != 2 {
		t.Fatalf("expected 2 issued, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Rejected.WithLabelValues("expired")); got != 1 {
		t.Fatalf("expected 1 rejected, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Revoked); got != 1 {
		t.Fatalf("expected 1 revoked, got %f", got)
	}
	if got := testutil.CollectAndCount(metrics.RevocationLag); got != 1 {
		t.Fatalf("expected lag histogram to be collected, got %d", got)
	}
}

func TestTokenMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewTokenMetrics(TokenMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewTokenMetrics returned error: %v", err)
	}
	second, err := NewTokenMetrics(TokenMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second NewTokenMetrics returned error: %v", err)
	}

	second.TokenRevoked()
	if got := testutil.ToFloat64(first.Revoked); got != 1 {
		t.Fatalf("expected shared counter, got %f", got)
	}
}

func TestNewTracerProviderWithoutEndpoint(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{ServiceName: "vetflow-api", SamplingRate: 1}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider returned error: %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Fatalf("expected a valid span context")
	}
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestExporterOptions(t *testing.T) {
	if got := len(exporterOptions(config.TelemetrySettings{OTLPEndpoint: "otel:4318"})); got != 2 {
		t.Fatalf("expected endpoint and timeout options, got %d", got)
	}
	if got := len(exporterOptions(config.TelemetrySettings{OTLPEndpoint: "otel:4318", OTLPInsecure: true, ExportTimeout: time.Second})); got != 3 {
		t.Fatalf("expected insecure option appended, got %d", got)
	}
}
