package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/pagination"
	"github.com/jebauza/VetFlow/internal/transport/http/middleware"
	"github.com/jebauza/VetFlow/internal/usecase"
)

// UserAPI is the slice of usecase.UserService the user endpoints use.
type UserAPI interface {
	ListPage(ctx context.Context, search string, req pagination.PageRequest) (pagination.Page[domain.UserWithAccess], error)
	ListOffset(ctx context.Context, search string, req pagination.OffsetRequest) (pagination.OffsetPage[domain.UserWithAccess], error)
	ListCursor(ctx context.Context, search string, query pagination.CursorQuery) (pagination.CursorPage[domain.UserWithAccess], error)
	Get(ctx context.Context, id string) (domain.UserWithAccess, error)
	Create(ctx context.Context, input usecase.CreateUserInput) (domain.UserWithAccess, error)
	Update(ctx context.Context, id string, input usecase.UpdateUserInput) (domain.UserWithAccess, error)
	Delete(ctx context.Context, principal domain.Principal, id string) error
	OpenAvatar(ctx context.Context, id string) (io.ReadCloser, string, error)
	AvatarURL(path *string) *string
}

// AssignmentAPI is the slice of usecase.AuthorizationService that edits role and permission links.
type AssignmentAPI interface {
	AssignRoles(ctx context.Context, userID string, roleIDs []string) error
	SyncRoles(ctx context.Context, userID string, roleIDs []string) error
	AssignPermissions(ctx context.Context, userID string, permissionIDs []string) error
	SyncPermissions(ctx context.Context, userID string, permissionIDs []string) error
	AssignRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
}

// UserHandler serves the managed user endpoints.
type UserHandler struct {
	users       UserAPI
	assignments AssignmentAPI
	pages       *pagination.Engine
	logger      *zap.Logger
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users UserAPI, assignments AssignmentAPI, pages *pagination.Engine, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, assignments: assignments, pages: pages, logger: logger}
}

// RegisterRoutes binds the user routes. gate builds the permission middleware for a name.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, gate func(...string) gin.HandlerFunc) {
	list := gate(domain.PermissionStaffList)
	edit := gate(domain.PermissionStaffEdit)

	r.GET("/paginate", list, h.Paginate)
	r.GET("/offset-paginate", list, h.OffsetPaginate)
	r.GET("/cursor-paginate", list, h.CursorPaginate)
	r.POST("", gate(domain.PermissionStaffRegister), h.Create)
	r.GET("/:id", list, h.Show)
	r.PUT("/:id", edit, h.Update)
	r.DELETE("/:id", gate(domain.PermissionStaffDelete), h.Delete)
	r.GET("/:id/avatar", list, h.Avatar)
	r.PUT("/:id/roles", edit, h.SyncRoles)
	r.POST("/:id/roles", edit, h.AssignRoles)
	r.PUT("/:id/permissions", edit, h.SyncPermissions)
	r.POST("/:id/permissions", edit, h.AssignPermissions)
}

func (h *UserHandler) resource(user domain.UserWithAccess) UserResponse {
	return newUserResponse(user, h.users.AvatarURL)
}

// Paginate godoc
// @Summary List users by page
// @Description Users matching search (name, surname, email, phone, document) ordered by name, surname.
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search term"
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size" default(100)
// @Success 200 {object} Envelope{data=[]UserResponse,meta=pagination.PageMeta}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/paginate [get]
func (h *UserHandler) Paginate(c *gin.Context) {
	req, ok := parsePageQuery(c, h.pages)
	if !ok {
		return
	}

	page, err := h.users.ListPage(c.Request.Context(), searchTerm(c), req)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	out := pagination.MapPage(page, h.resource)
	respond(c, http.StatusOK, messageOK, out.Items, out.Meta)
}

// OffsetPaginate godoc
// @Summary List users by offset
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search term"
// @Param offset query int false "Rows to skip" default(0)
// @Param limit query int false "Window size" default(100)
// @Success 200 {object} Envelope{data=[]UserResponse,meta=pagination.OffsetMeta}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/offset-paginate [get]
func (h *UserHandler) OffsetPaginate(c *gin.Context) {
	req, ok := parseOffsetQuery(c, h.pages)
	if !ok {
		return
	}

	page, err := h.users.ListOffset(c.Request.Context(), searchTerm(c), req)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	out := pagination.MapOffset(page, h.resource)
	respond(c, http.StatusOK, messageOK, out.Items, out.Meta)
}

// CursorPaginate godoc
// @Summary List users by cursor
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search term"
// @Param cursor query string false "Opaque cursor from a previous response"
// @Param per_page query int false "Page size" default(100)
// @Success 200 {object} Envelope{data=[]UserResponse,meta=pagination.CursorMeta}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/cursor-paginate [get]
func (h *UserHandler) CursorPaginate(c *gin.Context) {
	query, ok := parseCursorQuery(c, h.pages, usecase.CursorScopeUsers)
	if !ok {
		return
	}

	page, err := h.users.ListCursor(c.Request.Context(), searchTerm(c), query)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	out := pagination.MapCursor(page, h.resource)
	respond(c, http.StatusOK, messageOK, out.Items, out.Meta)
}

// Show godoc
// @Summary Get a user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Success 200 {object} Envelope{data=UserResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id} [get]
func (h *UserHandler) Show(c *gin.Context) {
	id, ok := pathUUID(c, "id", "user")
	if !ok {
		return
	}

	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, messageOK, h.resource(user), nil)
}

// Create godoc
// @Summary Create a user
// @Description Accepts JSON or multipart/form-data; the optional "avatar" part must be a JPEG or PNG.
// @Tags Users
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body UserRequest true "User payload"
// @Success 201 {object} Envelope{data=UserResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req UserRequest
	fields := bindAndValidate(c, &req)
	if fields == nil && req.Password == "" {
		fields = map[string][]string{"password": {"The password field is required."}}
	}
	if fields != nil {
		respondValidation(c, fields)
		return
	}

	avatar, closeAvatar, ok := h.avatarUpload(c)
	if !ok {
		return
	}
	defer closeAvatar()

	user, err := h.users.Create(c.Request.Context(), usecase.CreateUserInput{
		UserProfileInput: req.toProfileInput(),
		Password:         req.Password,
		RoleID:           req.RoleID,
		Avatar:           avatar,
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, messageCreated, h.resource(user), nil)
}

// Update godoc
// @Summary Update a user
// @Description An empty password keeps the current one; an omitted role_id keeps the roles, an empty one clears them.
// @Tags Users
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Param request body UserRequest true "User payload"
// @Success 200 {object} Envelope{data=UserResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id", "user")
	if !ok {
		return
	}

	var req UserRequest
	if fields := bindAndValidate(c, &req); fields != nil {
		respondValidation(c, fields)
		return
	}

	avatar, closeAvatar, ok := h.avatarUpload(c)
	if !ok {
		return
	}
	defer closeAvatar()

	user, err := h.users.Update(c.Request.Context(), id, usecase.UpdateUserInput{
		UserProfileInput: req.toProfileInput(),
		Password:         req.Password,
		RoleID:           req.RoleID,
		Avatar:           avatar,
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, messageUpdated, h.resource(user), nil)
}

// Delete godoc
// @Summary Soft delete a user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Success 200 {object} Envelope
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id", "user")
	if !ok {
		return
	}
	principal, _ := middleware.GetPrincipal(c)

	if err := h.users.Delete(c.Request.Context(), principal, id); err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, messageDeleted, nil, nil)
}

// Avatar godoc
// @Summary Download a user's avatar
// @Tags Users
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Success 200 {file} binary
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id}/avatar [get]
func (h *UserHandler) Avatar(c *gin.Context) {
	id, ok := pathUUID(c, "id", "user")
	if !ok {
		return
	}

	body, blobPath, err := h.users.OpenAvatar(c.Request.Context(), id)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, ErrorCase{
			Err:     usecase.ErrAvatarNotFound,
			Status:  http.StatusNotFound,
			Message: "Avatar not found",
		})
		return
	}
	defer body.Close()

	name := path.Base(blobPath)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Content-Disposition": "attachment; filename=" + strconv.Quote(name),
	})
}

// SyncRoles godoc
// @Summary Replace a user's roles
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Param request body RoleIDsRequest true "Role ids"
// @Success 200 {object} Envelope{data=UserResponse}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id}/roles [put]
func (h *UserHandler) SyncRoles(c *gin.Context) {
	h.changeRoles(c, h.assignments.SyncRoles)
}

// AssignRoles godoc
// @Summary Add roles to a user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Param request body RoleIDsRequest true "Role ids"
// @Success 200 {object} Envelope{data=UserResponse}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id}/roles [post]
func (h *UserHandler) AssignRoles(c *gin.Context) {
	h.changeRoles(c, h.assignments.AssignRoles)
}

// SyncPermissions godoc
// @Summary Replace a user's direct permissions
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Param request body PermissionIDsRequest true "Permission ids"
// @Success 200 {object} Envelope{data=UserResponse}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id}/permissions [put]
func (h *UserHandler) SyncPermissions(c *gin.Context) {
	h.changePermissions(c, h.assignments.SyncPermissions)
}

// AssignPermissions godoc
// @Summary Grant direct permissions to a user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User UUID"
// @Param request body PermissionIDsRequest true "Permission ids"
// @Success 200 {object} Envelope{data=UserResponse}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/users/{id}/permissions [post]
func (h *UserHandler) AssignPermissions(c *gin.Context) {
	h.changePermissions(c, h.assignments.AssignPermissions)
}

type linkFunc func(ctx context.Context, ownerID string, ids []string) error

func (h *UserHandler) changeRoles(c *gin.Context, apply linkFunc) {
	id, ok := pathUUID(c, "id", "user")
	if !ok {
		return
	}
	var req RoleIDsRequest
	if fields := bindAndValidate(c, &req); fields != nil {
		respondValidation(c, fields)
		return
	}
	h.applyAndShow(c, id, req.Roles, apply)
}

func (h *UserHandler) changePermissions(c *gin.Context, apply linkFunc) {
	id, ok := pathUUID(c, "id", "user")
	if !ok {
		return
	}
	var req PermissionIDsRequest
	if fields := bindAndValidate(c, &req); fields != nil {
		respondValidation(c, fields)
		return
	}
	h.applyAndShow(c, id, req.Permissions, apply)
}

func (h *UserHandler) applyAndShow(c *gin.Context, id string, ids []string, apply linkFunc) {
	ctx := c.Request.Context()
	if err := apply(ctx, id, ids); err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	user, err := h.users.Get(ctx, id)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, messageUpdated, h.resource(user), nil)
}

// avatarUpload opens the optional "avatar" multipart file. ok is false once a response was written.
func (h *UserHandler) avatarUpload(c *gin.Context) (io.Reader, func(), bool) {
	noop := func() {}
	header, err := c.FormFile("avatar")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, true
		}
		respondValidation(c, map[string][]string{"avatar": {"The avatar field must be a file."}})
		return nil, noop, false
	}

	file, err := header.Open()
	if err != nil {
		respondValidation(c, map[string][]string{"avatar": {"The avatar failed to upload."}})
		return nil, noop, false
	}
	return file, func() { _ = file.Close() }, true
}
