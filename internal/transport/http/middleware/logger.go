package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appLogger "github.com/jebauza/VetFlow/internal/infra/logger"
)

// Logger writes one access line per request. Routes in quiet (probes, scrapes) are logged
// only when they fail.
func Logger(log *zap.Logger, quiet ...string) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(quiet))
	for _, route := range quiet {
		skip[route] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if _, ok := skip[route]; ok && status < http.StatusInternalServerError {
			return
		}
		if route == "" {
			route = unmatchedRoute
		}

		info := GetRequestInfo(c)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("trace_id", info.TraceID),
			zap.String("request_id", info.RequestID),
			zap.String("client_ip", appLogger.MaskIP(info.IP)),
		}
		if info.UserID != "" {
			fields = append(fields, zap.String("user_id", info.UserID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if ce := log.Check(accessLevel(status), "http request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func accessLevel(status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusTooManyRequests, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
