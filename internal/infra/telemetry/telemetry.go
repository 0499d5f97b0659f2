package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jebauza/VetFlow/internal/core/port"
)

// TokenMetricsOptions controls construction of token lifecycle collectors.
type TokenMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// TokenMetrics counts issued, rejected and revoked access tokens.
type TokenMetrics struct {
	Issued        *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
	Revoked       prometheus.Counter
	RevocationLag prometheus.Histogram
}

// NewTokenMetrics constructs the token collectors and registers them, reusing already registered ones.
func NewTokenMetrics(opts TokenMetricsOptions) (*TokenMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "vetflow"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	issued, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "issued_total",
		Help:      "Access tokens issued partitioned by kind (login, register, refresh).",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	rejected, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "rejected_total",
		Help:      "Access tokens rejected during verification partitioned by reason.",
	}, []string{"reason"}))
	if err != nil {
		return nil, err
	}

	revoked, err := Register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "revoked_total",
		Help:      "Access tokens pushed to the denylist.",
	}))
	if err != nil {
		return nil, err
	}

	lag, err := Register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "revocation_lag_seconds",
		Help:      "Delay between a token revocation and its arrival through the fan-out consumer.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}))
	if err != nil {
		return nil, err
	}

	return &TokenMetrics{Issued: issued, Rejected: rejected, Revoked: revoked, RevocationLag: lag}, nil
}

// Register adds collector to reg. When an equal collector is already registered that one is
// returned instead, so constructors can run more than once per process.
func Register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			existing, ok := already.ExistingCollector.(C)
			if !ok {
				return collector, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
			}
			return existing, nil
		}
		return collector, fmt.Errorf("register collector: %w", err)
	}
	return collector, nil
}

func (m *TokenMetrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.Issued.WithLabelValues(kind).Inc()
}

func (m *TokenMetrics) TokenRejected(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}

func (m *TokenMetrics) TokenRevoked() {
	if m == nil {
		return
	}
	m.Revoked.Inc()
}

// ObserveRevocationLag records fan-out delay for revocations received from other nodes.
func (m *TokenMetrics) ObserveRevocationLag(lag time.Duration) {
	if m == nil {
		return
	}
	m.RevocationLag.Observe(lag.Seconds())
}

var _ port.TokenMetrics = (*TokenMetrics)(nil)
