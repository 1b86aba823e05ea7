package sdk

import "sync"

// UnreadIndex is a local cache of unread counts keyed by sender.
// The server read flags stay authoritative; Sync replaces the cache from them.
type UnreadIndex struct {
	mu     sync.RWMutex
	self   string
	active string
	counts map[string]int64
}

// NewUnreadIndex creates an empty index for the user self
func NewUnreadIndex(self string) *UnreadIndex {
	return &UnreadIndex{
		self:   self,
		counts: make(map[string]int64),
	}
}

// OnNewMessage applies a pushed message and reports whether a count changed
func (u *UnreadIndex) OnNewMessage(msg *Message) bool {
	if msg == nil || msg.SenderId == "" {
		return false
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if msg.SenderId == u.self {
		return false
	}
	if msg.RecipientId != "" && msg.RecipientId != u.self {
		return false
	}
	if u.active != "" && msg.SenderId == u.active {
		return false
	}

	u.counts[msg.SenderId]++
	return true
}

// SetActive sets the open conversation. An empty id means none is open.
func (u *UnreadIndex) SetActive(otherId string) {
	u.mu.Lock()
	u.active = otherId
	u.mu.Unlock()
}

// Active returns the open conversation
func (u *UnreadIndex) Active() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.active
}

// CloseConversation clears the active pointer if it still points at otherId
func (u *UnreadIndex) CloseConversation(otherId string) {
	u.mu.Lock()
	if u.active == otherId {
		u.active = ""
	}
	u.mu.Unlock()
}

// Clear removes the count for otherId
func (u *UnreadIndex) Clear(otherId string) {
	u.mu.Lock()
	delete(u.counts, otherId)
	u.mu.Unlock()
}

// Sync replaces every count with a server snapshot
func (u *UnreadIndex) Sync(snapshot map[string]int64) {
	counts := make(map[string]int64, len(snapshot))
	for senderId, n := range snapshot {
		if n > 0 && senderId != "" {
			counts[senderId] = n
		}
	}

	u.mu.Lock()
	u.counts = counts
	u.mu.Unlock()
}

// Count returns the unread count for otherId
func (u *UnreadIndex) Count(otherId string) int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.counts[otherId]
}

// Counts returns a copy of all counts
func (u *UnreadIndex) Counts() map[string]int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make(map[string]int64, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}

// Total returns the sum of all counts
func (u *UnreadIndex) Total() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()

	var total int64
	for _, v := range u.counts {
		total += v
	}
	return total
}
