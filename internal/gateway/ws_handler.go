package gateway

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// HandleHertzConnection upgrades a Hertz request with hertz-contrib/websocket.
// The upgrade callback serves the socket until it closes.
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	userId, status, reason := s.admit(ctx, string(c.Query(QueryToken)), string(c.GetHeader(HeaderAuthorization)))
	if status != http.StatusOK {
		c.String(status, reason)
		return
	}

	err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
		client := NewClient(NewHertzWebSocketClientConn(conn, s.connOpts), userId, uuid.New().String(), s)
		s.registerChan <- client
		client.readLoop()
	})
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
	}
}
