package sdk

// Socket event names
const (
	EventJoinRoom   = "join-room"
	EventNewMessage = "new-message"
	EventTyping     = "typing"
	EventStopTyping = "stop-typing"
	EventError      = "error"
)

// SocketState is the lifecycle state of a Socket
type SocketState int32

// Socket states
const (
	StateDisconnected SocketState = iota
	StateConnecting
	StateConnected
)

// String returns the state name
func (s SocketState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}
