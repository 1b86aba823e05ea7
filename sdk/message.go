package sdk

import (
	"context"
	"net/url"
	"strconv"
)

// SendMessage sends a direct message, creating the conversation on first contact
func (c *Client) SendMessage(ctx context.Context, receiverId, content string) (*Message, error) {
	req := &SendMessageRequest{ReceiverId: receiverId, Content: content}
	var msg Message
	if err := c.post(ctx, "/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetHistory fetches one page of the conversation with otherId.
// The server marks otherId's messages to the caller as read.
// Zero page or limit leaves the choice to the server.
func (c *Client) GetHistory(ctx context.Context, otherId string, page, limit int) (*History, error) {
	params := url.Values{}
	params.Set("conversationId", otherId)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var history History
	if err := c.get(ctx, "/messages", params, &history); err != nil {
		return nil, err
	}
	if history.Messages == nil {
		history.Messages = []*Message{}
	}
	return &history, nil
}

// MarkRead marks otherId's messages to the caller as read and returns how many changed
func (c *Client) MarkRead(ctx context.Context, otherId string) (int64, error) {
	req := map[string]string{"conversationId": otherId}
	var result struct {
		Updated int64 `json:"updated"`
	}
	if err := c.post(ctx, "/messages/read", req, &result); err != nil {
		return 0, err
	}
	return result.Updated, nil
}

// UnreadSnapshot returns the caller's unread counts keyed by sender
func (c *Client) UnreadSnapshot(ctx context.Context) (map[string]int64, error) {
	var result struct {
		Unread map[string]int64 `json:"unread"`
	}
	if err := c.get(ctx, "/messages/unread", nil, &result); err != nil {
		return nil, err
	}
	if result.Unread == nil {
		result.Unread = map[string]int64{}
	}
	return result.Unread, nil
}
