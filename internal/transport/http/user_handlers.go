package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		hub:   hub,
		store: st,
		log:   logger,
	}
}

// UserResponse represents the caller in API responses.
type UserResponse struct {
	UserID      string `json:"userId"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName,omitempty"`
}

// Me returns the authenticated user with its stored display name.
// GET /api/me
func (h *UserHandlers) Me(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}

	resp := UserResponse{
		UserID: ident.UserID,
		Role:   string(ident.Role),
	}

	ctx, cancel := h.hub.StoreContext(c.Request.Context())
	defer cancel()

	profile, err := h.store.GetProfile(ctx, ident.UserID)
	switch {
	case err == nil:
		resp.Role = string(profile.Role)
		resp.DisplayName = profile.DisplayName
	case errors.Is(err, store.ErrNotFound):
	default:
		h.log.Error().Err(err).Str("user_id", ident.UserID).Msg("failed to load profile")
		writeCoreError(c, core.StoreError(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}
