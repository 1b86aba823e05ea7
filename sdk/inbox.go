package sdk

import (
	"context"
	"sync"

	"github.com/mbeoliero/kit/log"
)

// API is the part of the REST client the inbox needs
type API interface {
	GetHistory(ctx context.Context, otherId string, page, limit int) (*History, error)
	UnreadSnapshot(ctx context.Context) (map[string]int64, error)
}

// Inbox keeps the unread index and the open conversation in step with the socket.
// Every (re)connect resyncs the index from the server snapshot.
type Inbox struct {
	self   string
	api    API
	socket *Socket
	unread *UnreadIndex

	mu   sync.RWMutex
	view *ConversationView

	onChange func()
}

// NewInbox wires api and socket for the user self
func NewInbox(self string, api API, socket *Socket) *Inbox {
	in := &Inbox{
		self:   self,
		api:    api,
		socket: socket,
		unread: NewUnreadIndex(self),
	}
	if socket != nil {
		socket.OnMessage(in.HandleMessage)
		socket.OnConnect(func(ctx context.Context, reconnect bool) {
			if err := in.Resync(ctx); err != nil {
				log.CtxWarn(ctx, "inbox resync failed: user_id=%s, reconnect=%v, error=%v", self, reconnect, err)
			}
		})
	}
	return in
}

// OnChange sets a callback run after the unread index or the open view changes
func (in *Inbox) OnChange(fn func()) {
	in.mu.Lock()
	in.onChange = fn
	in.mu.Unlock()
}

// Unread returns the unread index
func (in *Inbox) Unread() *UnreadIndex {
	return in.unread
}

// View returns the open conversation view, or nil
func (in *Inbox) View() *ConversationView {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.view
}

// Resync replaces the unread index with the server snapshot
func (in *Inbox) Resync(ctx context.Context) error {
	snapshot, err := in.api.UnreadSnapshot(ctx)
	if err != nil {
		return err
	}

	active := in.unread.Active()
	if active != "" {
		delete(snapshot, active)
	}
	in.unread.Sync(snapshot)
	in.changed()
	return nil
}

// HandleMessage applies a pushed message to the index and to the open view
func (in *Inbox) HandleMessage(msg *Message) {
	if msg == nil {
		return
	}

	in.mu.RLock()
	view := in.view
	in.mu.RUnlock()

	changed := false
	if view != nil && view.Belongs(in.self, msg) {
		changed = view.Merge(msg) > 0
	}
	if in.unread.OnNewMessage(msg) {
		changed = true
	}
	if changed {
		in.changed()
	}
}

// OpenConversation makes otherId the active conversation, loads its first page and clears its count.
// The history fetch marks otherId's messages as read on the server.
func (in *Inbox) OpenConversation(ctx context.Context, otherId string, limit int) (*ConversationView, error) {
	in.unread.SetActive(otherId)

	view := NewConversationView(otherId)
	in.mu.Lock()
	in.view = view
	in.mu.Unlock()

	history, err := in.api.GetHistory(ctx, otherId, 1, limit)
	if err != nil {
		return nil, err
	}
	view.Merge(history.Messages...)

	in.unread.Clear(otherId)
	in.changed()
	return view, nil
}

// CloseConversation clears the active conversation
func (in *Inbox) CloseConversation(otherId string) {
	in.unread.CloseConversation(otherId)

	in.mu.Lock()
	if in.view != nil && in.view.OtherId() == otherId {
		in.view = nil
	}
	in.mu.Unlock()
}

func (in *Inbox) changed() {
	in.mu.RLock()
	fn := in.onChange
	in.mu.RUnlock()

	if fn != nil {
		fn()
	}
}
