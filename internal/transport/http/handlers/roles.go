package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/usecase"
)

// RoleAPI is the slice of usecase.RoleService the role endpoints use.
type RoleAPI interface {
	List(ctx context.Context, search string) ([]domain.Role, error)
	ListPage(ctx context.Context, search string, req pagination.PageRequest) (pagination.Page[domain.Role], error)
	ListOffset(ctx context.Context, search string, req pagination.OffsetRequest) (pagination.OffsetPage[domain.Role], error)
	ListCursor(ctx context.Context, search string, query pagination.CursorQuery) (pagination.CursorPage[domain.Role], error)
	Get(ctx context.Context, id string) (domain.Role, error)
	Create(ctx context.Context, input usecase.RoleInput) (domain.Role, error)
	Update(ctx context.Context, id string, input usecase.RoleInput) (domain.Role, error)
	Delete(ctx context.Context, id string) error
}

// RoleHandler serves the role endpoints.
type RoleHandler struct {
	roles       RoleAPI
	assignments AssignmentAPI
	pages       *pagination.Engine
	logger      *zap.Logger
}

// NewRoleHandler constructs RoleHandler.
func NewRoleHandler(roles RoleAPI, assignments AssignmentAPI, pages *pagination.Engine, logger *zap.Logger) *RoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleHandler{roles: roles, assignments: assignments, pages: pages, logger: logger}
}

// RegisterRoutes binds the role routes.
func (h *RoleHandler) RegisterRoutes(r *gin.RouterGroup, gate func(...string) gin.HandlerFunc) {
	list := gate(domain.PermissionRoleList)
	edit := gate(domain.PermissionRoleEdit)

	r.GET("", list, h.List)
	r.GET("/paginate", list, h.Paginate)
	r.GET("/offset-paginate", list, h.OffsetPaginate)
	r.GET("/cursor-paginate", list, h.CursorPaginate)
	r.POST("", gate(domain.PermissionRoleRegister), h.Create)
	r.GET("/:id", list, h.Show)
	r.PUT("/:id", edit, h.Update)
	r.DELETE("/:id", gate(domain.PermissionRoleDelete), h.Delete)
	r.POST("/:id/permissions", edit, h.AssignPermissions)
}

// List godoc
// @Summary List all roles
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name filter"
// @Success 200 {object} Envelope{data=[]RoleResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context(), searchTerm(c))
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, messageOK, mapSlice(roles, newRoleResponse), nil)
}

// Paginate godoc
// @Summary List roles by page
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name filter"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(100)
// @Success 200 {object} Envelope{data=[]RoleResponse,meta=pagination.PageMeta}
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/paginate [get]
func (h *RoleHandler) Paginate(c *gin.Context) {
	req, ok := parsePageQuery(c, h.pages)
	if !ok {
		return
	}

	page, err := h.roles.ListPage(c.Request.Context(), searchTerm(c), req)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	out := pagination.MapPage(page, newRoleResponse)
	respond(c, http.StatusOK, messageOK, out.Items, out.Meta)
}

// OffsetPaginate godoc
// @Summary List roles by offset
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name filter"
// @Param offset query int false "Rows to skip" default(0)
// @Param limit query int false "Window size" default(100)
// @Success 200 {object} Envelope{data=[]RoleResponse,meta=pagination.OffsetMeta}
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/offset-paginate [get]
func (h *RoleHandler) OffsetPaginate(c *gin.Context) {
	req, ok := parseOffsetQuery(c, h.pages)
	if !ok {
		return
	}

	page, err := h.roles.ListOffset(c.Request.Context(), searchTerm(c), req)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	out := pagination.MapOffset(page, newRoleResponse)
	respond(c, http.StatusOK, messageOK, out.Items, out.Meta)
}

// CursorPaginate godoc
// @Summary List roles by cursor
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name filter"
// @Param cursor query string false "Opaque cursor"
// @Param per_page query int false "Page size" default(100)
// @Success 200 {object} Envelope{data=[]RoleResponse,meta=pagination.CursorMeta}
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/cursor-paginate [get]
func (h *RoleHandler) CursorPaginate(c *gin.Context) {
	query, ok := parseCursorQuery(c, h.pages, usecase.CursorScopeRoles)
	if !ok {
		return
	}

	page, err := h.roles.ListCursor(c.Request.Context(), searchTerm(c), query)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	out := pagination.MapCursor(page, newRoleResponse)
	respond(c, http.StatusOK, messageOK, out.Items, out.Meta)
}

// Show godoc
// @Summary Get a role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role UUID"
// @Success 200 {object} Envelope{data=RoleResponse}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/{id} [get]
func (h *RoleHandler) Show(c *gin.Context) {
	id, ok := pathUUID(c, "id", "role")
	if !ok {
		return
	}

	role, err := h.roles.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, messageOK, newRoleResponse(role), nil)
}

// Create godoc
// @Summary Create a role
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RoleRequest true "Role payload"
// @Success 201 {object} Envelope{data=RoleResponse}
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var req RoleRequest
	fields := bindAndValidate(c, &req)
	if fields == nil && req.Permissions == nil {
		fields = map[string][]string{"permissions": {"The permissions field is required."}}
	}
	if fields != nil {
		respondValidation(c, fields)
		return
	}

	role, err := h.roles.Create(c.Request.Context(), usecase.RoleInput{Name: req.Name, PermissionIDs: req.Permissions})
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, messageCreated, newRoleResponse(role), nil)
}

// Update godoc
// @Summary Update a role
// @Description Renames the role; a permissions list replaces its permission set.
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role UUID"
// @Param request body RoleRequest true "Role payload"
// @Success 200 {object} Envelope{data=RoleResponse}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id", "role")
	if !ok {
		return
	}

	var req RoleRequest
	if fields := bindAndValidate(c, &req); fields != nil {
		respondValidation(c, fields)
		return
	}

	role, err := h.roles.Update(c.Request.Context(), id, usecase.RoleInput{Name: req.Name, PermissionIDs: req.Permissions})
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, messageUpdated, newRoleResponse(role), nil)
}

// Delete godoc
// @Summary Delete a role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role UUID"
// @Success 200 {object} Envelope
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id", "role")
	if !ok {
		return
	}

	if err := h.roles.Delete(c.Request.Context(), id); err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, messageDeleted, nil, nil)
}

// AssignPermissions godoc
// @Summary Add permissions to a role
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Role UUID"
// @Param request body PermissionIDsRequest true "Permission ids"
// @Success 200 {object} Envelope{data=RoleResponse}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/roles/{id}/permissions [post]
func (h *RoleHandler) AssignPermissions(c *gin.Context) {
	id, ok := pathUUID(c, "id", "role")
	if !ok {
		return
	}

	var req PermissionIDsRequest
	if fields := bindAndValidate(c, &req); fields != nil {
		respondValidation(c, fields)
		return
	}

	ctx := c.Request.Context()
	if err := h.assignments.AssignRolePermissions(ctx, id, req.Permissions); err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	role, err := h.roles.Get(ctx, id)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, messageUpdated, newRoleResponse(role), nil)
}
