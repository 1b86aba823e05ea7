package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/beatdm/internal/config"
	"github.com/mbeoliero/beatdm/internal/gateway"
	"github.com/mbeoliero/beatdm/internal/handler"
	"github.com/mbeoliero/beatdm/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Message  *handler.MessageHandler
	Presence *handler.PresenceHandler
}

// SetupRouter sets up all routes
func SetupRouter(r *route.Engine, cfg *config.Config, handlers *Handlers, wsServer *gateway.WsServer) {
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]interface{}{
			"status":       "ok",
			"online_users": wsServer.GetOnlineUserCount(),
			"online_conns": wsServer.GetOnlineConnCount(),
		})
	})

	auth := middleware.JWTAuth(cfg.JWT.Secret)

	// Message routes (auth required)
	msgGroup := r.Group("/messages", auth)
	{
		msgGroup.GET("", handlers.Message.GetMessages)
		msgGroup.POST("", handlers.Message.SendMessage)
		msgGroup.POST("/read", handlers.Message.MarkRead)
		msgGroup.GET("/unread", handlers.Message.GetUnread)
	}

	// User routes (auth required)
	userGroup := r.Group("/users", auth)
	{
		userGroup.GET("/:user_id/presence", handlers.Presence.GetPresence)
	}

	// WebSocket route using hertz-contrib/websocket with origin validation.
	// The handshake authenticates with its own token parameter.
	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(c *app.RequestContext) bool {
			return gateway.OriginAllowed(allowedOrigins, string(c.Request.Header.Peek("Origin")))
		},
	}

	r.GET(cfg.WebSocket.Path, func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}
