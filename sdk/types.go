package sdk

import "encoding/json"

// Response represents the standard API response
type Response struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Profile is the public view of a user
type Profile struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar"`
	SellerName string `json:"sellerName,omitempty"`
}

// Message is a hydrated message. Ids are decimal strings.
type Message struct {
	Id          string   `json:"id"`
	ChannelId   string   `json:"channelId"`
	SenderId    string   `json:"senderId"`
	RecipientId string   `json:"recipientId"`
	Content     string   `json:"content"`
	Read        bool     `json:"read"`
	CreatedAt   int64    `json:"createdAt"`
	Sender      *Profile `json:"sender,omitempty"`
}

// LastMessage is the preview of a conversation's latest message
type LastMessage struct {
	Id        string `json:"id"`
	Content   string `json:"content"`
	SenderId  string `json:"senderId"`
	CreatedAt int64  `json:"createdAt"`
}

// Conversation is the caller's summary of one channel
type Conversation struct {
	ChannelId     string       `json:"channelId"`
	OtherUser     *Profile     `json:"otherUser"`
	LastMessage   *LastMessage `json:"lastMessage"`
	LastMessageAt int64        `json:"lastMessageAt"`
	UnreadCount   int64        `json:"unreadCount"`
}

// History is one page of a conversation
type History struct {
	Messages []*Message         `json:"messages"`
	Profiles map[string]*Profile `json:"profiles"`
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ReceiverId string `json:"receiverId"`
	Content    string `json:"content"`
}

// Event is a socket frame
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingRequest is sent with typing and stop-typing
type TypingRequest struct {
	SenderId    string `json:"senderId"`
	RecipientId string `json:"recipientId"`
}

// TypingEvent is received with typing and stop-typing
type TypingEvent struct {
	SenderId string `json:"senderId"`
}

// ErrorEvent is the payload of a server error event
type ErrorEvent struct {
	Message string `json:"message"`
}
