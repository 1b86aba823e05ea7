package gateway

import (
	"encoding/json"

	"github.com/mbeoliero/beatdm/internal/entity"
)

// WSEvent is a socket frame in either direction
type WSEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TypingReq is the client payload of typing and stop-typing
type TypingReq struct {
	SenderId    entity.UserRef `json:"senderId"`
	RecipientId entity.UserRef `json:"recipientId"`
}

// TypingNotice is what the recipient's room receives for typing and stop-typing
type TypingNotice struct {
	SenderId entity.UserRef `json:"senderId"`
}

// ErrorData is the payload of the error event
type ErrorData struct {
	Message string `json:"message"`
}

// Encode encodes an event frame
func Encode(event string, data interface{}) ([]byte, error) {
	frame := WSEvent{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		frame.Data = raw
	}
	return json.Marshal(frame)
}

// Decode decodes an event frame
func Decode(message []byte) (*WSEvent, error) {
	var frame WSEvent
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil, err
	}
	if frame.Event == "" {
		return nil, ErrInvalidProtocol
	}
	return &frame, nil
}
