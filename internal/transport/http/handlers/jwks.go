package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jebauza/VetFlow/internal/infra/security"
)

const jwksCacheControl = "public, max-age=3600"

// KeySet renders the public verification keys as a JWKS document.
type KeySet interface {
	JWKS() ([]byte, error)
}

var _ KeySet = (*security.JWTManager)(nil)

// JWKSHandler lets other services verify VetFlow access tokens offline.
type JWKSHandler struct {
	keys KeySet
}

// NewJWKSHandler constructs a JWKS handler backed by the supplied key set.
func NewJWKSHandler(keys KeySet) *JWKSHandler {
	return &JWKSHandler{keys: keys}
}

// Keys godoc
// @Summary Retrieve JSON Web Key Set
// @Description Public RS256 keys for access token verification.
// @Tags Authentication
// @Produce json
// @Success 200 {object} JWKSResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/jwks [get]
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.keys == nil {
		respondFields(c, http.StatusServiceUnavailable, "Key set not available", nil)
		return
	}

	payload, err := h.keys.JWKS()
	if err != nil {
		respondFields(c, http.StatusInternalServerError, messageInternalError, nil)
		return
	}

	c.Header("Cache-Control", jwksCacheControl)
	c.Data(http.StatusOK, "application/json", payload)
}
