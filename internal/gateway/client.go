package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/kit/log"
)

// Client represents a connected WebSocket client
type Client struct {
	mu        sync.Mutex
	conn      ClientConn
	UserId    string
	ConnId    string
	room      string
	server    *WsServer
	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new client for an authenticated user
func NewClient(conn ClientConn, userId, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:   conn,
		UserId: userId,
		ConnId: connId,
		server: server,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads messages from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "handle message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}
	}
}

// handleMessage handles a single incoming frame. Bad frames are answered
// with an error event; only a failed write ends the connection.
func (c *Client) handleMessage(message []byte) error {
	frame, err := Decode(message)
	if err != nil {
		return c.replyError(ErrInvalidProtocol)
	}

	log.CtxDebug(c.ctx, "received event: event=%s, user_id=%s", frame.Event, c.UserId)

	switch frame.Event {
	case constant.EventJoinRoom:
		return c.handleJoinRoom(frame.Data)
	case constant.EventTyping, constant.EventStopTyping:
		return c.handleTyping(frame.Event, frame.Data)
	default:
		return c.replyError(ErrUnknownEvent)
	}
}

// handleJoinRoom joins the room named by the payload, which must be the
// authenticated user's own id
func (c *Client) handleJoinRoom(data json.RawMessage) error {
	var room string
	if err := json.Unmarshal(data, &room); err != nil || room == "" {
		return c.replyError(ErrInvalidProtocol)
	}
	if room != c.UserId {
		return c.replyError(ErrUserIdMismatch)
	}

	c.mu.Lock()
	c.room = room
	c.mu.Unlock()

	c.server.joinRoom(c.ctx, room, c)
	return nil
}

// handleTyping relays a typing indicator to the recipient's room
func (c *Client) handleTyping(event string, data json.RawMessage) error {
	var req TypingReq
	if err := json.Unmarshal(data, &req); err != nil {
		return c.replyError(ErrInvalidProtocol)
	}
	if req.SenderId.IsZero() {
		req.SenderId = entity.UserRef(c.UserId)
	}
	if req.SenderId.String() != c.UserId {
		return c.replyError(ErrUserIdMismatch)
	}
	if req.RecipientId.IsZero() {
		return c.replyError(ErrMissingRecipient)
	}
	if c.Room() == "" {
		return c.replyError(ErrNotJoined)
	}

	c.server.AsyncPushToRoom(req.RecipientId.String(), event, &TypingNotice{SenderId: req.SenderId})
	return nil
}

// replyError sends an error event
func (c *Client) replyError(err error) error {
	data, encErr := Encode(constant.EventError, &ErrorData{Message: err.Error()})
	if encErr != nil {
		return encErr
	}
	return c.Push(data)
}

// Push writes an encoded frame to the connection
func (c *Client) Push(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(data)
}

// Room returns the room this client joined, or "" before join-room
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}
