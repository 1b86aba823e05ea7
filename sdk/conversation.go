package sdk

import (
	"context"
	"net/url"
)

// ListConversations returns the caller's conversations, most recent first
func (c *Client) ListConversations(ctx context.Context) ([]*Conversation, error) {
	var result struct {
		Conversations []*Conversation `json:"conversations"`
	}
	if err := c.get(ctx, "/messages", nil, &result); err != nil {
		return nil, err
	}
	return result.Conversations, nil
}

// IsOnline reports whether userId has a live socket
func (c *Client) IsOnline(ctx context.Context, userId string) (bool, error) {
	var result struct {
		UserId string `json:"userId"`
		Online bool   `json:"online"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(userId)+"/presence", nil, &result); err != nil {
		return false, err
	}
	return result.Online, nil
}
