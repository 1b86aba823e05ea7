package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
	defaultWriteWait       = 10 * time.Second
	defaultHeartbeat       = 35 * time.Second
)

var (
	ErrSocketNotConnected = errors.New("socket not connected")
	ErrSocketStarted      = errors.New("socket already started")
)

// MessageHandler is called for each new-message push
type MessageHandler func(msg *Message)

// TypingHandler is called for typing and stop-typing events
type TypingHandler func(senderId string, typing bool)

// ConnectHandler is called after every successful connect and join-room.
// reconnect is false only for the first connection.
type ConnectHandler func(ctx context.Context, reconnect bool)

// Socket is a realtime connection that reconnects with backoff and re-joins its room every time
type Socket struct {
	url    string
	token  string
	userId string
	dialer *websocket.Dialer

	initialInterval time.Duration
	maxInterval     time.Duration
	heartbeat       time.Duration

	writeMu sync.Mutex
	conn    *websocket.Conn

	state    atomic.Int32
	connects atomic.Int64

	onMessage MessageHandler
	onTyping  TypingHandler
	onError   func(msg string)
	onConnect []ConnectHandler

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SocketOption is a function to configure the socket
type SocketOption func(*Socket)

// WithDialer sets a custom websocket dialer
func WithDialer(dialer *websocket.Dialer) SocketOption {
	return func(s *Socket) {
		s.dialer = dialer
	}
}

// WithBackoff sets the first and the largest reconnect delay
func WithBackoff(initial, maxInterval time.Duration) SocketOption {
	return func(s *Socket) {
		s.initialInterval = initial
		s.maxInterval = maxInterval
	}
}

// WithHeartbeat sets how long the socket waits for any frame or ping from the
// server before it drops the connection and reconnects. The default sits a
// little above the gateway's pong wait.
func WithHeartbeat(pongWait time.Duration) SocketOption {
	return func(s *Socket) {
		s.heartbeat = pongWait
	}
}

// NewSocket creates a socket for userId. wsURL is the full websocket endpoint url.
func NewSocket(wsURL, token, userId string, opts ...SocketOption) *Socket {
	s := &Socket{
		url:             wsURL,
		token:           token,
		userId:          userId,
		dialer:          websocket.DefaultDialer,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		heartbeat:       defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnMessage sets the new-message handler
func (s *Socket) OnMessage(fn MessageHandler) {
	s.onMessage = fn
}

// OnTyping sets the typing handler
func (s *Socket) OnTyping(fn TypingHandler) {
	s.onTyping = fn
}

// OnError sets the handler of server error events
func (s *Socket) OnError(fn func(msg string)) {
	s.onError = fn
}

// OnConnect adds a handler run after each connect
func (s *Socket) OnConnect(fn ConnectHandler) {
	s.onConnect = append(s.onConnect, fn)
}

// State returns the connection state
func (s *Socket) State() SocketState {
	return SocketState(s.state.Load())
}

// Connects returns how many times the socket has connected
func (s *Socket) Connects() int64 {
	return s.connects.Load()
}

// Start runs the socket in the background until Close or ctx is done
func (s *Socket) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.done != nil {
		return ErrSocketStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.CtxWarn(ctx, "socket stopped: user_id=%s, error=%v", s.userId, err)
		}
	}()
	return nil
}

// Close stops a started socket and waits for it to exit
func (s *Socket) Close() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run connects and serves the socket until ctx is done or the handshake is rejected.
// Connection losses are retried with exponential backoff without an attempt limit.
func (s *Socket) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval
	b.MaxInterval = s.maxInterval
	b.MaxElapsedTime = 0

	notify := func(err error, next time.Duration) {
		log.CtxWarn(ctx, "socket connect failed: user_id=%s, retry_in=%s, error=%v", s.userId, next, err)
	}

	for {
		s.state.Store(int32(StateConnecting))

		var conn *websocket.Conn
		err := backoff.RetryNotify(func() error {
			c, err := s.dial(ctx)
			if err != nil {
				return err
			}
			conn = c
			return nil
		}, backoff.WithContext(b, ctx), notify)
		if err != nil {
			s.state.Store(int32(StateDisconnected))
			return err
		}

		s.serve(ctx, conn)
		s.state.Store(int32(StateDisconnected))

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.CtxInfo(ctx, "socket disconnected, reconnecting: user_id=%s", s.userId)
	}
}

// dial opens the connection and joins the user's room
func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("invalid socket url: %w", err))
	}
	q := u.Query()
	q.Set("token", s.token)
	u.RawQuery = q.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, backoff.Permanent(&Error{Status: resp.StatusCode, Code: CodeUnauthorized, Msg: "socket handshake rejected"})
		}
		return nil, err
	}

	join, err := json.Marshal(&Event{Event: EventJoinRoom, Data: mustMarshal(s.userId)})
	if err != nil {
		_ = conn.Close()
		return nil, backoff.Permanent(err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.keepAlive(conn)
	return conn, nil
}

// keepAlive arms the read deadline. Every server ping or frame pushes it forward,
// so a silent server ends the read loop and the socket reconnects.
func (s *Socket) keepAlive(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.heartbeat))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.heartbeat))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(defaultWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	})
}

// serve runs the connect handlers and the read loop of one connection
func (s *Socket) serve(ctx context.Context, conn *websocket.Conn) {
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()

	connDone := make(chan struct{})
	defer func() {
		close(connDone)
		s.writeMu.Lock()
		s.conn = nil
		s.writeMu.Unlock()
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-connDone:
		}
	}()

	reconnect := s.connects.Add(1) > 1
	s.state.Store(int32(StateConnected))
	log.CtxInfo(ctx, "socket connected: user_id=%s, reconnect=%v", s.userId, reconnect)

	for _, fn := range s.onConnect {
		fn(ctx, reconnect)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.CtxDebug(ctx, "socket read error: user_id=%s, error=%v", s.userId, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.heartbeat))
		s.dispatch(ctx, data)
	}
}

func (s *Socket) dispatch(ctx context.Context, data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		log.CtxDebug(ctx, "socket dropped invalid frame: %v", err)
		return
	}

	switch ev.Event {
	case EventNewMessage:
		var msg Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			log.CtxDebug(ctx, "socket dropped invalid message: %v", err)
			return
		}
		if s.onMessage != nil {
			s.onMessage(&msg)
		}
	case EventTyping, EventStopTyping:
		var typing TypingEvent
		if err := json.Unmarshal(ev.Data, &typing); err != nil {
			return
		}
		if s.onTyping != nil {
			s.onTyping(typing.SenderId, ev.Event == EventTyping)
		}
	case EventError:
		var e ErrorEvent
		_ = json.Unmarshal(ev.Data, &e)
		if s.onError != nil {
			s.onError(e.Message)
		}
	}
}

// SendTyping tells recipientId that the user started or stopped typing
func (s *Socket) SendTyping(recipientId string, typing bool) error {
	event := EventStopTyping
	if typing {
		event = EventTyping
	}
	return s.send(event, &TypingRequest{SenderId: s.userId, RecipientId: recipientId})
}

func (s *Socket) send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(&Event{Event: event, Data: payload})
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return ErrSocketNotConnected
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func mustMarshal(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
