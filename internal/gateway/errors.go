package gateway

import "errors"

// Gateway errors
var (
	ErrConnClosed       = errors.New("connection closed")
	ErrWriteChannelFull = errors.New("write channel full")
	ErrInvalidProtocol  = errors.New("invalid protocol")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrUserIdMismatch   = errors.New("user Id mismatch")
	ErrNotJoined        = errors.New("join-room required before typing")
	ErrMissingRecipient = errors.New("recipientId is required")
	ErrPanic            = errors.New("panic error")
)
