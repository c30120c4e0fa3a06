package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const (
	// PathDirectMessages is the namespace for contact conversations.
	PathDirectMessages = "/ws/message"
	// PathGroupMessages is the namespace for group conversations.
	PathGroupMessages = "/ws/group-message"
)

// NewServer builds the HTTP server: REST endpoints plus one websocket namespace per room kind.
// Both namespaces share a single connection registry.
func NewServer(authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	registry := core.NewRegistry(logger)
	direct := core.NewRelay(st, registry, core.RelayConfig{
		Kind:          store.RoomKindDirect,
		PageSize:      cfg.Relay.DirectPageSize,
		MaxTextLength: cfg.Relay.MaxTextLength,
	}, logger)
	group := core.NewRelay(st, registry, core.RelayConfig{
		Kind:          store.RoomKindGroup,
		PageSize:      cfg.Relay.GroupPageSize,
		MaxTextLength: cfg.Relay.MaxTextLength,
	}, logger)

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, cfg.CookieSecure, logger)
	roomHandlers := NewRoomHandlers(st, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(authService, logger))
		{
			protected.DELETE("/me", apiHandlers.DeleteMe)
			protected.POST("/contacts", roomHandlers.CreateContact)
			protected.POST("/groups", roomHandlers.CreateGroup)
			protected.POST("/groups/:id/members", roomHandlers.AddGroupMember)
		}
	}

	// WebSocket namespaces bypass gin so the hijacked connection is not wrapped by its writer.
	mux := stdhttp.NewServeMux()
	mux.Handle(PathDirectMessages, NewWSHandler(direct, authService, cfg.MaxMessageBytes, cfg.EventBuffer, logger))
	mux.Handle(PathGroupMessages, NewWSHandler(group, authService, cfg.MaxMessageBytes, cfg.EventBuffer, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.Header("X-Wirechat-Protocol", strconv.Itoa(proto.ProtocolVersion))
	c.String(stdhttp.StatusOK, "ok")
}
