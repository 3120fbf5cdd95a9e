package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/supportchat-server/internal/auth"
	"github.com/vovakirdan/supportchat-server/internal/config"
	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// NewServer builds the HTTP server: health check, the WebSocket gateway and
// the authenticated REST API.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	roomHandlers := NewRoomHandlers(hub, st, logger)
	userHandlers := NewUserHandlers(hub, st, logger)

	api := router.Group("/api")
	api.Use(AuthMiddleware(authService, logger))
	{
		api.GET("/me", userHandlers.Me)

		api.GET("/rooms", roomHandlers.ListRooms)
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.GET("/rooms/:id", roomHandlers.GetRoom)
		api.GET("/rooms/:id/messages", roomHandlers.ListMessages)
		api.GET("/rooms/:id/presence", roomHandlers.Presence)
	}

	// /ws bypasses gin so the hijacked connection is written directly.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
