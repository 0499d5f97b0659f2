package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jebauza/VetFlow/internal/core/domain"
	"github.com/jebauza/VetFlow/internal/transport/http/middleware"
	"github.com/jebauza/VetFlow/internal/usecase"
)

// AuthAPI is the slice of usecase.AuthService the auth endpoints use.
type AuthAPI interface {
	Register(ctx context.Context, input usecase.RegisterInput) (usecase.AuthResult, error)
	Login(ctx context.Context, email, password string) (usecase.AuthResult, error)
	Me(ctx context.Context, principal domain.Principal) (usecase.Profile, error)
	Refresh(ctx context.Context, raw string) (domain.IssuedToken, error)
	Logout(ctx context.Context, raw string) error
}

// AuthHandler serves registration, login and the token lifecycle endpoints.
type AuthHandler struct {
	auth   AuthAPI
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth AuthAPI, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, logger: logger, now: time.Now}
}

// RegisterRoutes binds the auth routes. requireAuth guards refresh, me and logout; credential
// routes get the limiter chains.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, registerLimit, loginLimit, refreshLimit []gin.HandlerFunc) {
	r.POST("/register", chain(registerLimit, h.Register)...)
	r.POST("/login", chain(loginLimit, h.Login)...)
	refresh := chain(append(append([]gin.HandlerFunc{}, refreshLimit...), requireAuth), h.Refresh)
	r.GET("/refresh", refresh...)
	r.POST("/refresh", refresh...)
	r.GET("/me", requireAuth, h.Me)
	r.POST("/logout", requireAuth, h.Logout)
}

// Register godoc
// @Summary Register a new account
// @Description Creates a user from name, surname, email and password and returns its first access token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} Envelope{data=RegisterResponse}
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitBody
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if fields := bindAndValidate(c, &req); fields != nil {
		respondValidation(c, fields)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusCreated, "Created", RegisterResponse{
		User: UserLite{
			ID:      result.User.ID,
			Email:   result.User.Email,
			Name:    result.User.Name,
			Surname: result.User.Surname,
		},
		Token: newTokenResponse(result.Token, h.now()),
	}, nil)
}

// Login godoc
// @Summary Exchange credentials for an access token
// @Description Unknown emails and wrong passwords produce the same 401.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} Envelope{data=TokenResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} middleware.RateLimitBody
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if fields := bindAndValidate(c, &req); fields != nil {
		respondValidation(c, fields)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, h.logger, err, ErrorCase{
			Err:     usecase.ErrInvalidCredentials,
			Status:  http.StatusUnauthorized,
			Message: messageLoginFailed,
		})
		return
	}

	respond(c, http.StatusOK, messageOK, newTokenResponse(result.Token, h.now()), nil)
}

// Me godoc
// @Summary Current user profile
// @Description Returns the caller with role names and effective permission names.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Envelope{data=ProfileResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		respondFields(c, http.StatusUnauthorized, messageUnauthorized, nil)
		return
	}

	profile, err := h.auth.Me(c.Request.Context(), principal)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, messageOK, newProfileResponse(profile), nil)
}

// Refresh godoc
// @Summary Refresh an access token
// @Description Accepts a currently valid token, revokes it and returns a new one.
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Envelope{data=TokenResponse}
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, ok := middleware.BearerToken(c)
	if !ok {
		respondFields(c, http.StatusUnauthorized, messageUnauthorized, nil)
		return
	}

	token, err := h.auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, messageOK, newTokenResponse(token, h.now()), nil)
}

// Logout godoc
// @Summary Invalidate the current token
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Envelope
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, ok := middleware.BearerToken(c)
	if !ok {
		respondFields(c, http.StatusUnauthorized, messageUnauthorized, nil)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), raw); err != nil {
		RespondWithMappedError(c, h.logger, err)
		return
	}

	respond(c, http.StatusOK, messageLoggedOut, nil, nil)
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	out = append(out, middlewares...)
	return append(out, handler)
}
