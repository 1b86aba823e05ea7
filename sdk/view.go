package sdk

import (
	"sort"
	"strconv"
	"sync"
)

// ConversationView is the displayed list of one conversation.
// History pages and pushes are merged into it de-duplicated by message id.
type ConversationView struct {
	mu       sync.RWMutex
	otherId  string
	byId     map[string]*Message
	messages []*Message
}

// NewConversationView creates an empty view of the conversation with otherId
func NewConversationView(otherId string) *ConversationView {
	return &ConversationView{
		otherId: otherId,
		byId:    make(map[string]*Message),
	}
}

// OtherId returns the counterpart of the conversation
func (v *ConversationView) OtherId() string {
	return v.otherId
}

// Belongs reports whether msg is part of the conversation between self and the counterpart
func (v *ConversationView) Belongs(self string, msg *Message) bool {
	if msg == nil {
		return false
	}
	return (msg.SenderId == v.otherId && msg.RecipientId == self) ||
		(msg.SenderId == self && msg.RecipientId == v.otherId)
}

// Merge adds messages not seen before and returns how many were added.
// A known id is updated in place so a later read flag wins.
func (v *ConversationView) Merge(msgs ...*Message) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	added := 0
	for _, msg := range msgs {
		if msg == nil || msg.Id == "" {
			continue
		}
		if existing, ok := v.byId[msg.Id]; ok {
			if msg.Read {
				existing.Read = true
			}
			continue
		}
		cp := *msg
		v.byId[msg.Id] = &cp
		v.messages = append(v.messages, &cp)
		added++
	}

	if added > 0 {
		sort.SliceStable(v.messages, func(i, j int) bool {
			return messageBefore(v.messages[i], v.messages[j])
		})
	}
	return added
}

// Messages returns the merged messages in display order
func (v *ConversationView) Messages() []*Message {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]*Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Len returns the number of merged messages
func (v *ConversationView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.messages)
}

// messageBefore orders by creation time, then by numeric id
func messageBefore(a, b *Message) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	ai, aerr := strconv.ParseInt(a.Id, 10, 64)
	bi, berr := strconv.ParseInt(b.Id, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a.Id < b.Id
}
