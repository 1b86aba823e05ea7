package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeoliero/beatdm/internal/config"
	"github.com/mbeoliero/kit/log"
)

// ClientConn is a socket as seen by Client: whole text frames in and out
type ClientConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// ConnOptions are the per-connection limits and heartbeat timings
type ConnOptions struct {
	MaxMessageSize   int64
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	WriteChannelSize int
}

// ConnOptionsFrom builds ConnOptions from the websocket config
func ConnOptionsFrom(cfg *config.WebSocketConfig) ConnOptions {
	return ConnOptions{
		MaxMessageSize:   cfg.MaxMessageSize,
		WriteWait:        cfg.WriteWait,
		PongWait:         cfg.PongWait,
		PingPeriod:       cfg.PingPeriod,
		WriteChannelSize: cfg.WriteChannelSize,
	}
}

// frameConn is the connection API shared by gorilla/websocket and its
// hertz-contrib fork. Message type values are identical in both.
type frameConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// queuedConn owns the single writer of a socket. Frames are queued and
// written by writeLoop together with the heartbeat pings.
type queuedConn struct {
	conn      frameConn
	opts      ConnOptions
	writeChan chan []byte
	mu        sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func newQueuedConn(conn frameConn, opts ConnOptions) *queuedConn {
	c := &queuedConn{
		conn:      conn,
		opts:      opts,
		writeChan: make(chan []byte, opts.WriteChannelSize),
	}

	conn.SetReadLimit(opts.MaxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go c.writeLoop()
	return c
}

// NewWebSocketClientConn wraps a gorilla connection
func NewWebSocketClientConn(conn *websocket.Conn, opts ConnOptions) ClientConn {
	return newQueuedConn(conn, opts)
}

func (c *queuedConn) writeLoop() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.writeChan:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, frame); err != nil {
				log.Debug("write frame failed: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug("ping failed: %v", err)
				return
			}
		}
	}
}

// write turns a panic from a connection torn down underneath us into ErrConnClosed
func (c *queuedConn) write(messageType int, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug("write recovered from panic: %v", r)
			err = ErrConnClosed
		}
	}()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// ReadMessage reads one frame. Pongs extend the deadline while waiting.
func (c *queuedConn) ReadMessage() ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	_, frame, err := c.conn.ReadMessage()
	return frame, err
}

// WriteMessage queues a frame. A full queue means a slow consumer.
func (c *queuedConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.writeChan <- data:
		return nil
	default:
		return ErrWriteChannelFull
	}
}

// Close stops the writer after the queued frames are flushed
func (c *queuedConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.writeChan)
		c.mu.Unlock()
	})
	return nil
}
