package logger

import (
	"context"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production emits JSON at info unless level says otherwise;
// every other environment gets the colored console encoder at debug.
func New(env, level, service string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}

	cfg.InitialFields = map[string]any{"service": service, "env": env}
	return cfg.Build()
}

type requestIDKey struct{}

type traceIDKey struct{}

// ContextWithRequest stores the request and trace ids picked up by FromContext.
func ContextWithRequest(ctx context.Context, requestID, traceID string) context.Context {
	if requestID != "" {
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	}
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey{}, traceID)
	}
	return ctx
}

// FromContext returns base annotated with the request and trace ids stored on ctx.
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}

	var fields []zap.Field
	if id, _ := ctx.Value(requestIDKey{}).(string); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, _ := ctx.Value(traceIDKey{}).(string); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// MaskEmail keeps up to three characters of the local part and the domain:
// john.doe@example.com becomes joh***@example.com.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "***"
	}
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***@" + domain
}

// MaskIP hides the host part of an address: the last two IPv4 octets or everything after
// the first four IPv6 groups.
func MaskIP(ip string) string {
	parsed := net.ParseIP(ip)
	switch {
	case ip == "":
		return ""
	case parsed == nil:
		return "***"
	case parsed.To4() != nil:
		octets := strings.Split(parsed.To4().String(), ".")
		return octets[0] + "." + octets[1] + ".*.*"
	default:
		groups := strings.Split(ip, ":")
		if len(groups) < 4 {
			return "***"
		}
		return strings.Join(groups[:4], ":") + ":*:*:*:*"
	}
}
