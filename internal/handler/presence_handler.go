package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/mbeoliero/beatdm/pkg/response"
)

// Presence reports whether a user has a live socket
type Presence interface {
	IsOnline(ctx context.Context, userId string) bool
}

// PresenceHandler handles presence requests
type PresenceHandler struct {
	presence Presence
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(presence Presence) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// GetPresence handles get presence request
func (h *PresenceHandler) GetPresence(ctx context.Context, c *app.RequestContext) {
	userId := c.Param("user_id")
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"userId": userId,
		"online": h.presence.IsOnline(ctx, userId),
	})
}
