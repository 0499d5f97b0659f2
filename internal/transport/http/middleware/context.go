package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/infra/logger"
)

const (
	TraceIDHeader   = "X-Trace-ID"
	RequestIDHeader = "X-Request-ID"

	traceIDKey     = "vetflow.trace_id"
	requestInfoKey = "vetflow.request"
	principalKey   = "vetflow.principal"
)

// RequestInfo is the per-request metadata shared by the access log and auth middleware.
type RequestInfo struct {
	TraceID   string
	RequestID string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext assigns the trace and request ids echoed in response headers and error
// envelopes. The active span's trace id wins over an inbound X-Trace-ID.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := &RequestInfo{
			TraceID:   inboundTraceID(c),
			RequestID: headerOrUUID(c, RequestIDHeader),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}

		c.Set(traceIDKey, info.TraceID)
		c.Set(requestInfoKey, info)
		c.Header(TraceIDHeader, info.TraceID)
		c.Header(RequestIDHeader, info.RequestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequest(c.Request.Context(), info.RequestID, info.TraceID))

		c.Next()
	}
}

func inboundTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return headerOrUUID(c, TraceIDHeader)
}

func headerOrUUID(c *gin.Context, header string) string {
	if v := c.GetHeader(header); v != "" {
		return v
	}
	return uuid.NewString()
}

// GetTraceID returns the trace id assigned by EnrichContext, or "" outside it.
func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}

// GetRequestInfo never returns nil; outside EnrichContext the info is empty.
func GetRequestInfo(c *gin.Context) *RequestInfo {
	if info, ok := c.Value(requestInfoKey).(*RequestInfo); ok {
		return info
	}
	return &RequestInfo{}
}

// SetPrincipal attaches the authenticated caller to the request.
func SetPrincipal(c *gin.Context, principal domain.Principal) {
	c.Set(principalKey, principal)
	GetRequestInfo(c).UserID = principal.UserID
}

// GetPrincipal returns the caller attached by SetPrincipal.
func GetPrincipal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := c.Value(principalKey).(domain.Principal)
	return principal, ok
}
