package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeoliero/beatdm/internal/config"
	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/beatdm/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "gateway-test-secret"

func newTestServer(t *testing.T, opts ...func(*config.Config)) (*WsServer, string) {
	t.Helper()

	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	cfg.SetDefaults()
	for _, opt := range opts {
		opt(cfg)
	}

	s := NewWsServer(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.HandleConnection(r.Context(), w, r)
	}))
	t.Cleanup(srv.Close)

	return s, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, userId string) *websocket.Conn {
	t.Helper()

	token, err := jwt.GenerateToken(userId, testSecret, 1)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	frame, err := Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEvent(t *testing.T, conn *websocket.Conn) *WSEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := Decode(data)
	require.NoError(t, err)
	return frame
}

func join(t *testing.T, s *WsServer, conn *websocket.Conn, userId string) {
	t.Helper()
	send(t, conn, constant.EventJoinRoom, userId)
	require.Eventually(t, func() bool {
		return s.IsOnline(context.Background(), userId)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandshake_RequiresToken(t *testing.T) {
	_, url := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandshake_BearerHeader(t *testing.T) {
	s, url := newTestServer(t)

	token, err := jwt.GenerateToken("bob", testSecret, 1)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()

	join(t, s, conn, "bob")
}

func TestPushNewMessage_ReachesRecipientRoomOnly(t *testing.T) {
	s, url := newTestServer(t)

	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	join(t, s, alice, "alice")
	join(t, s, bob, "bob")

	msg := &entity.MessageInfo{Id: 42, ChannelId: 7, SenderId: "alice", RecipientId: "bob", Content: "hello", CreatedAt: 1}
	s.PushNewMessage(msg)

	frame := readEvent(t, bob)
	assert.Equal(t, constant.EventNewMessage, frame.Event)
	var got entity.MessageInfo
	require.NoError(t, json.Unmarshal(frame.Data, &got))
	assert.Equal(t, int64(42), got.Id)
	assert.Equal(t, "hello", got.Content)

	// alice is not the recipient
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := alice.ReadMessage()
	assert.Error(t, err)
}

func TestPushNewMessage_AllSocketsOfRoom(t *testing.T) {
	s, url := newTestServer(t)

	tab1 := dial(t, url, "bob")
	tab2 := dial(t, url, "bob")
	join(t, s, tab1, "bob")
	send(t, tab2, constant.EventJoinRoom, "bob")
	require.Eventually(t, func() bool {
		members, _ := s.roomMap.Members("bob")
		return len(members) == 2
	}, 2*time.Second, 10*time.Millisecond)

	s.PushNewMessage(&entity.MessageInfo{Id: 1, SenderId: "alice", RecipientId: "bob", Content: "hi"})

	assert.Equal(t, constant.EventNewMessage, readEvent(t, tab1).Event)
	assert.Equal(t, constant.EventNewMessage, readEvent(t, tab2).Event)
	assert.Equal(t, int64(1), s.GetOnlineUserCount())
}

func TestJoinRoom_OtherUserRejected(t *testing.T) {
	s, url := newTestServer(t)

	mallory := dial(t, url, "mallory")
	send(t, mallory, constant.EventJoinRoom, "bob")

	frame := readEvent(t, mallory)
	assert.Equal(t, constant.EventError, frame.Event)
	var data ErrorData
	require.NoError(t, json.Unmarshal(frame.Data, &data))
	assert.Equal(t, ErrUserIdMismatch.Error(), data.Message)
	assert.False(t, s.IsOnline(context.Background(), "bob"))
}

func TestUnknownEvent_ReportsError(t *testing.T) {
	_, url := newTestServer(t)

	conn := dial(t, url, "alice")
	send(t, conn, "dance", nil)
	assert.Equal(t, constant.EventError, readEvent(t, conn).Event)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, constant.EventError, readEvent(t, conn).Event)
}

func TestTyping_RelayedToRecipient(t *testing.T) {
	s, url := newTestServer(t)

	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	join(t, s, alice, "alice")
	join(t, s, bob, "bob")

	for _, event := range []string{constant.EventTyping, constant.EventStopTyping} {
		send(t, alice, event, &TypingReq{SenderId: "alice", RecipientId: "bob"})

		frame := readEvent(t, bob)
		assert.Equal(t, event, frame.Event)
		var notice TypingNotice
		require.NoError(t, json.Unmarshal(frame.Data, &notice))
		assert.Equal(t, entity.UserRef("alice"), notice.SenderId)
	}
}

func TestTyping_SpoofedSenderRejected(t *testing.T) {
	s, url := newTestServer(t)

	alice := dial(t, url, "alice")
	join(t, s, alice, "alice")

	send(t, alice, constant.EventTyping, &TypingReq{SenderId: "carol", RecipientId: "bob"})
	assert.Equal(t, constant.EventError, readEvent(t, alice).Event)
}

func TestDisconnect_LeavesRoom(t *testing.T) {
	s, url := newTestServer(t)

	bob := dial(t, url, "bob")
	join(t, s, bob, "bob")
	assert.Equal(t, int64(1), s.GetOnlineConnCount())

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool {
		return !s.IsOnline(context.Background(), "bob") && s.GetOnlineConnCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// rejoin is required after reconnect
	again := dial(t, url, "bob")
	require.Eventually(t, func() bool { return s.GetOnlineConnCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, s.IsOnline(context.Background(), "bob"))
	join(t, s, again, "bob")
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed(nil, "https://evil.example"))
	assert.True(t, OriginAllowed([]string{"https://beats.example"}, ""))
	assert.True(t, OriginAllowed([]string{"https://beats.example"}, "https://BEATS.example"))
	assert.False(t, OriginAllowed([]string{"https://beats.example"}, "https://evil.example"))
	assert.True(t, OriginAllowed([]string{"*"}, "https://evil.example"))
}

func TestHandshakeToken(t *testing.T) {
	assert.Equal(t, "q", HandshakeToken("q", "Bearer h"))
	assert.Equal(t, "h", HandshakeToken("", "Bearer h"))
	assert.Equal(t, "", HandshakeToken("", "Basic abc"))
}

func TestUnregisterClient_FullQueueUnregistersInline(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	cfg.SetDefaults()

	// no event loop is running, so the queue never drains
	s := NewWsServer(cfg, nil)
	s.unregisterChan = make(chan *Client)

	client := &Client{UserId: "bob", ConnId: "c1", room: "bob", server: s}
	s.onlineConnNum.Add(1)
	s.roomMap.Join(context.Background(), "bob", client)
	require.True(t, s.IsOnline(context.Background(), "bob"))

	s.UnregisterClient(client)

	assert.False(t, s.IsOnline(context.Background(), "bob"))
	assert.Equal(t, int64(0), s.GetOnlineConnCount())
}

func TestHandshake_ConnectionLimit(t *testing.T) {
	s, url := newTestServer(t, func(cfg *config.Config) { cfg.WebSocket.MaxConnNum = 1 })

	bob := dial(t, url, "bob")
	join(t, s, bob, "bob")

	token, err := jwt.GenerateToken("alice", testSecret, 1)
	require.NoError(t, err)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
