package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jebauza/VetFlow/internal/transport/http"

// Tracing extracts W3C trace context from the request and wraps the handler chain in a server span.
// Providers default to the global ones; it must run before EnrichContext so the trace id is reused.
func Tracing(provider trace.TracerProvider, propagators propagation.TextMapPropagator) gin.HandlerFunc {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	if propagators == nil {
		propagators = otel.GetTextMapPropagator()
	}
	tracer := provider.Tracer(tracerName)

	return func(c *gin.Context) {
		ctx := propagators.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Request.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.URLPath(c.Request.URL.Path),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if principal, ok := GetPrincipal(c); ok {
			span.SetAttributes(attribute.String("enduser.id", principal.UserID))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
