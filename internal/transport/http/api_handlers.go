package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// identityFromContext returns the identity stored by AuthMiddleware.
func identityFromContext(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	ident, ok := v.(auth.Identity)
	return ident, ok
}

// mustIdentity writes 401 and returns false when no identity is bound.
func mustIdentity(c *gin.Context) (auth.Identity, bool) {
	ident, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: core.ErrCodeUnauthenticated})
		return auth.Identity{}, false
	}
	return ident, true
}

func statusForCode(code string) int {
	switch code {
	case core.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case core.ErrCodeAccessDenied, core.ErrCodeInsufficientPermissions:
		return http.StatusForbidden
	case core.ErrCodeRoomNotFound:
		return http.StatusNotFound
	case core.ErrCodeBadRequest:
		return http.StatusBadRequest
	case core.ErrCodeInvalidTransition:
		return http.StatusConflict
	case core.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case core.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeCoreError(c *gin.Context, cerr *core.CoreError) {
	c.JSON(statusForCode(cerr.Code), ErrorResponse{Error: cerr.Message, Code: cerr.Code})
}
