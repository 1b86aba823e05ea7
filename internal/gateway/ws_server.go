package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/beatdm/internal/config"
	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/beatdm/pkg/jwt"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
)

// WsServer is the realtime fan-out server. It is built once at startup and
// pushes events to rooms of connected sockets. Delivery is at most once.
type WsServer struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	instanceId     string
	connOpts       ConnOptions
	roomMap        *RoomMap
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *PushTask
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// PushTask is one event addressed to a room
type PushTask struct {
	Room  string
	Event string
	Data  interface{}
}

// NewWsServer creates a new WebSocket server. rdb may be nil.
func NewWsServer(cfg *config.Config, rdb *redis.Client) *WsServer {
	instanceId := uuid.New().String()
	s := &WsServer{
		cfg:            cfg,
		instanceId:     instanceId,
		connOpts:       ConnOptionsFrom(&cfg.WebSocket),
		roomMap:        NewRoomMap(rdb, instanceId, cfg.Redis.PresenceTTL),
		registerChan:   make(chan *Client, registerChannelSize),
		unregisterChan: make(chan *Client, registerChannelSize),
		pushChan:       make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}

	s.upgrader = &websocket.Upgrader{
		ReadBufferSize:  readBufferSize,
		WriteBufferSize: writeBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return OriginAllowed(cfg.Server.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	return s
}

// Run starts the event loop and push workers. It returns immediately;
// everything stops when ctx is cancelled.
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}

	if s.cfg.Redis.PresenceTTL > 0 {
		go s.presenceLoop(ctx, s.cfg.Redis.PresenceTTL/2)
	}
	log.Info("started %d push workers: instance_id=%s", workerNum, s.instanceId)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async pushes
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// presenceLoop keeps Redis presence keys of local rooms alive
func (s *WsServer) presenceLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.roomMap.RefreshPresence(ctx)
		}
	}
}

// processPushTask encodes the event once and writes it to every socket in the room
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	clients, ok := s.roomMap.Members(task.Room)
	if !ok {
		return
	}

	data, err := Encode(task.Event, task.Data)
	if err != nil {
		log.CtxError(ctx, "encode push failed: event=%s, error=%v", task.Event, err)
		return
	}

	for _, client := range clients {
		if err := client.Push(data); err != nil {
			log.CtxDebug(ctx, "push to client failed: room=%s, conn_id=%s, error=%v", task.Room, client.ConnId, err)
		}
	}
}

// registerClient counts a new connection. It receives no pushes until it joins a room.
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	s.onlineConnNum.Add(1)

	log.CtxInfo(ctx, "client registered: user_id=%s, conn_id=%s, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, s.roomMap.RoomCount(), s.onlineConnNum.Load())
}

// unregisterClient removes a closed connection and its room membership
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	roomEmpty := false
	if room := client.Room(); room != "" {
		roomEmpty = s.roomMap.Leave(ctx, room, client)
	}
	s.onlineConnNum.Add(-1)

	log.CtxInfo(ctx, "client unregistered: user_id=%s, conn_id=%s, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.ConnId, roomEmpty, s.roomMap.RoomCount(), s.onlineConnNum.Load())
}

// joinRoom adds client to room
func (s *WsServer) joinRoom(ctx context.Context, room string, client *Client) {
	s.roomMap.Join(ctx, room, client)
	log.CtxDebug(ctx, "client joined room: room=%s, conn_id=%s", room, client.ConnId)
}

// UnregisterClient queues client for unregistration. With a full queue the
// client is unregistered inline so it never lingers in its room.
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full, unregistering inline: user_id=%s, conn_id=%s", client.UserId, client.ConnId)
		s.unregisterClient(context.Background(), client)
	}
}

// authenticate validates the handshake token and returns the user id
func (s *WsServer) authenticate(token string) (string, error) {
	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		return "", err
	}
	return claims.UserId, nil
}

// admit checks the connection limit and the handshake token. On failure it
// returns the HTTP status and text to reject the upgrade with.
func (s *WsServer) admit(ctx context.Context, query, authorization string) (userId string, status int, reason string) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		return "", http.StatusServiceUnavailable, "connection limit exceeded"
	}

	token := HandshakeToken(query, authorization)
	if token == "" {
		return "", http.StatusUnauthorized, "missing token"
	}

	userId, err := s.authenticate(token)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: error=%v", err)
		return "", http.StatusUnauthorized, "unauthorized"
	}
	return userId, http.StatusOK, ""
}

// HandleConnection upgrades a net/http request with gorilla/websocket
func (s *WsServer) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	userId, status, reason := s.admit(ctx, r.URL.Query().Get(QueryToken), r.Header.Get(HeaderAuthorization))
	if status != http.StatusOK {
		http.Error(w, reason, status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(NewWebSocketClientConn(conn, s.connOpts), userId, uuid.New().String(), s)
	s.registerChan <- client
	client.Start()
}

// PushNewMessage queues a sent message for the recipient's room
func (s *WsServer) PushNewMessage(msg *entity.MessageInfo) {
	s.AsyncPushToRoom(msg.RecipientId.String(), constant.EventNewMessage, msg)
}

// AsyncPushToRoom queues an event for every socket joined to room.
// The event is dropped when the queue is full.
func (s *WsServer) AsyncPushToRoom(room, event string, data interface{}) {
	task := &PushTask{
		Room:  room,
		Event: event,
		Data:  data,
	}

	select {
	case s.pushChan <- task:
	default:
		log.Warn("push channel full, event dropped: event=%s, room=%s", event, room)
	}
}

// IsOnline reports whether user has a joined socket on any instance
func (s *WsServer) IsOnline(ctx context.Context, userId string) bool {
	return s.roomMap.IsOnline(ctx, userId)
}

// GetOnlineUserCount returns the number of users with a joined socket here
func (s *WsServer) GetOnlineUserCount() int64 {
	return int64(s.roomMap.RoomCount())
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// HandshakeToken picks the token from the query parameter or a bearer
// Authorization header
func HandshakeToken(query, authorization string) string {
	if query != "" {
		return query
	}
	if strings.HasPrefix(authorization, BearerPrefix) {
		return strings.TrimPrefix(authorization, BearerPrefix)
	}
	return ""
}

// OriginAllowed checks origin against the allowed list. An empty list or "*"
// allows any origin, as does a request with no Origin header.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
