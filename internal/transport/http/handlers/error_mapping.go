package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/infra/logger"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/transport/http/middleware"
	"github.com/jebauza/VetFlow/internal/usecase"
)

const (
	messageOK             = "OK"
	messageCreated        = "Created successfully"
	messageUpdated        = "Updated successfully"
	messageDeleted        = "Deleted successfully"
	messageValidation     = "Validation errors"
	messageUnauthorized   = "Unauthenticated."
	messageForbidden      = "Forbidden"
	messageNotFound       = "Not Found"
	messageConflict       = "Conflict"
	messageInternalError  = "Internal Server Error"
	messageInvalidUUID    = "Must be a valid UUID."
	messageLoginFailed    = "Unauthorized"
	messageLoggedOut      = "Successfully logged out"
	messageResourceAbsent = "The requested resource does not exist"
)

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Meta    any                 `json:"meta,omitempty"`
	TraceID string              `json:"trace_id,omitempty"`
}

// ErrorResponse documents the failure variant of Envelope.
type ErrorResponse struct {
	Message string              `json:"message" example:"Validation errors"`
	Errors  map[string][]string `json:"errors,omitempty"`
	TraceID string              `json:"trace_id,omitempty"`
}

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
	Errors  map[string][]string
}

// defaultCases are checked after validation errors. ErrSuperAdminProtected matches ErrForbidden.
var defaultCases = []ErrorCase{
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: messageNotFound, Errors: map[string][]string{"resource": {messageResourceAbsent}}},
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: messageUnauthorized},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: messageForbidden, Errors: map[string][]string{"auth": {"This action is unauthorized."}}},
	{Err: usecase.ErrConflict, Status: http.StatusConflict, Message: messageConflict},
}

func respond(c *gin.Context, status int, message string, data, meta any) {
	c.JSON(status, Envelope{Message: message, Data: data, Meta: meta})
}

func respondFields(c *gin.Context, status int, message string, fields map[string][]string) {
	c.JSON(status, ErrorResponse{Message: message, Errors: fields, TraceID: middleware.GetTraceID(c)})
}

func respondValidation(c *gin.Context, fields map[string][]string) {
	respondFields(c, http.StatusUnprocessableEntity, messageValidation, fields)
}

// RespondWithMappedError writes the envelope for err. Field-level errors always win and become 422,
// then cases are tried in order, then the default taxonomy. Unmatched errors are logged and reported
// as a bare 500.
func RespondWithMappedError(c *gin.Context, log *zap.Logger, err error, cases ...ErrorCase) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var verr *usecase.ValidationError
	if errors.As(err, &verr) {
		respondValidation(c, verr.Fields)
		return
	}
	var perr *pagination.RequestError
	if errors.As(err, &perr) {
		respondValidation(c, perr.Fields)
		return
	}

	for _, cs := range append(cases, defaultCases...) {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			respondFields(c, cs.Status, cs.Message, cs.Errors)
			return
		}
	}

	_ = c.Error(err)
	logger.FromContext(c.Request.Context(), log).Error("request failed",
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	respondFields(c, http.StatusInternalServerError, messageInternalError, nil)
}
