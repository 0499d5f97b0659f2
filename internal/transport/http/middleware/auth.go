package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/usecase"
)

// PrincipalResolver verifies a raw bearer token and returns its principal.
type PrincipalResolver interface {
	Principal(ctx context.Context, raw string) (domain.Principal, error)
}

// Authorizer decides whether a principal holds any of the named permissions.
type Authorizer interface {
	Authorize(ctx context.Context, principal domain.Principal, names ...string) error
}

// ErrorBody matches the handlers envelope for failures raised before a handler runs.
type ErrorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	TraceID string              `json:"trace_id,omitempty"`
}

func abortWith(c *gin.Context, status int, message string, fields map[string][]string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Message: message,
		Errors:  fields,
		TraceID: GetTraceID(c),
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth validates the bearer token and stores the principal on the context.
// Failures never reveal why the token was rejected.
func RequireAuth(tokens PrincipalResolver, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		raw, ok := BearerToken(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}

		principal, err := tokens.Principal(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthenticated) {
				abortWith(c, http.StatusUnauthorized, "Unauthenticated.", nil)
				return
			}
			log.Error("token verification failed", zap.Error(err), zap.String("trace_id", GetTraceID(c)))
			abortWith(c, http.StatusInternalServerError, "Internal Server Error", nil)
			return
		}

		SetPrincipal(c, principal)

		c.Next()
	}
}

// RequirePermission lets the request through when the principal holds any of names.
// It must run after RequireAuth.
func RequirePermission(authz Authorizer, log *zap.Logger, names ...string) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, "Unauthenticated.", nil)
			return
		}

		err := authz.Authorize(c.Request.Context(), principal, names...)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, usecase.ErrForbidden):
			abortWith(c, http.StatusForbidden, "Forbidden", map[string][]string{
				"auth": {"This action is unauthorized."},
			})
		default:
			log.Error("permission check failed", zap.Error(err), zap.Strings("permissions", names))
			abortWith(c, http.StatusInternalServerError, "Internal Server Error", nil)
		}
	}
}
