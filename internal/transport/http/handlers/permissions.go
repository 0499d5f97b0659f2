package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
)

// PermissionAPI lists the permission catalog.
type PermissionAPI interface {
	List(ctx context.Context, search string) ([]domain.Permission, error)
}

// PermissionHandler serves the read-only permission catalog.
type PermissionHandler struct {
	permissions PermissionAPI
	logger      *zap.Logger
}

// NewPermissionHandler constructs PermissionHandler.
func NewPermissionHandler(permissions PermissionAPI, logger *zap.Logger) *PermissionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionHandler{permissions: permissions, logger: logger}
}

// List godoc
// @Summary List permissions
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name filter"
// @Success 200 {object} Envelope{data=[]NamedRef}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	permissions, err := h.permissions.List(c.Request.Context(), searchTerm(c))
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, messageOK, permissionRefs(permissions), nil)
}
