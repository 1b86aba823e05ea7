package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mbeoliero/beatdm/internal/config"
	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/internal/gateway"
	"github.com/mbeoliero/beatdm/internal/service"
	"github.com/mbeoliero/beatdm/internal/testutil"
	"github.com/mbeoliero/beatdm/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inboxSecret = "inbox-test-secret"

// serviceAPI serves the inbox straight from the service layer as one user
type serviceAPI struct {
	self entity.UserRef
	msg  *service.MessageService
	conv *service.ConversationService
}

func (a *serviceAPI) GetHistory(ctx context.Context, otherId string, page, limit int) (*History, error) {
	result, err := a.msg.GetHistory(ctx, a.self, entity.UserRef(otherId), page, limit)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var history History
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

func (a *serviceAPI) UnreadSnapshot(ctx context.Context) (map[string]int64, error) {
	snapshot, err := a.conv.UnreadSnapshot(ctx, a.self)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(snapshot))
	for k, v := range snapshot {
		out[string(k)] = v
	}
	return out, nil
}

type inboxEnv struct {
	msg  *service.MessageService
	conv *service.ConversationService
	ws   *gateway.WsServer
	url  string
}

func newInboxEnv(t *testing.T) *inboxEnv {
	t.Helper()

	cfg := &config.Config{JWT: config.JWTConfig{Secret: inboxSecret}}
	cfg.SetDefaults()

	repos := testutil.NewRepositories(t)
	testutil.SeedUsers(t, repos, "alice", "bob", "carol")

	msg := service.NewMessageService(repos)
	conv := service.NewConversationService(repos)

	ws := gateway.NewWsServer(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ws.Run(ctx)
	msg.SetPusher(ws)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.HandleConnection(r.Context(), w, r)
	}))
	t.Cleanup(srv.Close)

	return &inboxEnv{msg: msg, conv: conv, ws: ws, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

// connect starts an inbox for userId and waits until its first resync is done
func (e *inboxEnv) connect(t *testing.T, userId string) (*Inbox, *Socket) {
	t.Helper()

	token, err := jwt.GenerateToken(userId, inboxSecret, 1)
	require.NoError(t, err)

	socket := NewSocket(e.url, token, userId, WithBackoff(10*time.Millisecond, 100*time.Millisecond))
	inbox := NewInbox(userId, &serviceAPI{self: entity.UserRef(userId), msg: e.msg, conv: e.conv}, socket)

	synced := make(chan struct{}, 4)
	socket.OnConnect(func(ctx context.Context, reconnect bool) { synced <- struct{}{} })

	require.NoError(t, socket.Start(context.Background()))
	t.Cleanup(socket.Close)

	select {
	case <-synced:
	case <-time.After(3 * time.Second):
		t.Fatal("socket never connected")
	}
	require.Eventually(t, func() bool {
		return e.ws.IsOnline(context.Background(), userId)
	}, 2*time.Second, 10*time.Millisecond)

	return inbox, socket
}

func TestInbox_UnreadWhileViewingOtherConversation(t *testing.T) {
	env := newInboxEnv(t)
	ctx := context.Background()

	inbox, _ := env.connect(t, "bob")
	_, err := inbox.OpenConversation(ctx, "carol", 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := env.msg.SendMessage(ctx, "alice", "bob", "ping")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return inbox.Unread().Count("alice") == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]int64{"alice": 3}, inbox.Unread().Counts())

	view, err := inbox.OpenConversation(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Len())
	assert.Empty(t, inbox.Unread().Counts())

	n, err := env.msg.CountUnread(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestInbox_ActiveConversationMergesPushes(t *testing.T) {
	env := newInboxEnv(t)
	ctx := context.Background()

	_, err := env.msg.SendMessage(ctx, "alice", "bob", "before")
	require.NoError(t, err)

	inbox, _ := env.connect(t, "bob")
	view, err := inbox.OpenConversation(ctx, "alice", 0)
	require.NoError(t, err)
	require.Equal(t, 1, view.Len())

	_, err = env.msg.SendMessage(ctx, "alice", "bob", "after")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return view.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	msgs := view.Messages()
	assert.Equal(t, "before", msgs[0].Content)
	assert.Equal(t, "after", msgs[1].Content)
	assert.Equal(t, int64(0), inbox.Unread().Count("alice"))

	inbox.CloseConversation("alice")
	assert.Nil(t, inbox.View())
}

func TestInbox_ResyncOnConnect(t *testing.T) {
	env := newInboxEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.msg.SendMessage(ctx, "alice", "bob", "missed")
		require.NoError(t, err)
	}

	inbox, _ := env.connect(t, "bob")
	assert.Equal(t, map[string]int64{"alice": 2}, inbox.Unread().Counts())

	_, err := env.msg.SendMessage(ctx, "carol", "bob", "live")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return inbox.Unread().Count("carol") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3), inbox.Unread().Total())
}

func TestInbox_SelfEchoIgnored(t *testing.T) {
	env := newInboxEnv(t)
	ctx := context.Background()

	inbox, _ := env.connect(t, "bob")
	changes := make(chan struct{}, 8)
	inbox.OnChange(func() { changes <- struct{}{} })

	_, err := env.msg.SendMessage(ctx, "bob", "alice", "mine")
	require.NoError(t, err)
	_, err = env.msg.SendMessage(ctx, "alice", "bob", "theirs")
	require.NoError(t, err)

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("push not applied")
	}
	assert.Equal(t, map[string]int64{"alice": 1}, inbox.Unread().Counts())
}
