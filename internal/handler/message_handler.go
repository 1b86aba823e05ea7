package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/internal/middleware"
	"github.com/mbeoliero/beatdm/internal/service"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/mbeoliero/beatdm/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService  *service.MessageService
	convService *service.ConversationService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService, convService *service.ConversationService) *MessageHandler {
	return &MessageHandler{msgService: msgService, convService: convService}
}

// GetMessages returns the history with conversationId, or the caller's
// conversation list when conversationId is absent
func (h *MessageHandler) GetMessages(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	otherId := c.Query("conversationId")
	if otherId == "" {
		convs, err := h.convService.ListConversations(ctx, entity.UserRef(userId))
		if err != nil {
			response.Error(ctx, c, err)
			return
		}
		response.Success(ctx, c, map[string]interface{}{
			"conversations": convs,
		})
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.msgService.GetHistory(ctx, entity.UserRef(userId), entity.UserRef(otherId), page, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// SendMessage handles send message request
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindJSON(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	if req.ReceiverId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	if req.Content == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrEmptyContent)
		return
	}

	msg, err := h.msgService.SendMessage(ctx, entity.UserRef(userId), entity.UserRef(req.ReceiverId), req.Content)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, msg)
}

// MarkReadRequest represents mark read request
type MarkReadRequest struct {
	ConversationId string `json:"conversationId"`
}

// MarkRead marks the counterpart's messages as read without fetching history
func (h *MessageHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req MarkReadRequest
	if err := c.BindJSON(&req); err != nil || req.ConversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	updated, err := h.msgService.MarkConversationRead(ctx, entity.UserRef(userId), entity.UserRef(req.ConversationId))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"updated": updated,
	})
}

// GetUnread returns the caller's unread counts keyed by the other user
func (h *MessageHandler) GetUnread(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	unread, err := h.convService.UnreadSnapshot(ctx, entity.UserRef(userId))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"unread": unread,
	})
}
