package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func push(sender, recipient string) *Message {
	return &Message{Id: sender + "-" + recipient, SenderId: sender, RecipientId: recipient}
}

func TestUnreadIndex_CountsOtherSenders(t *testing.T) {
	u := NewUnreadIndex("bob")

	assert.True(t, u.OnNewMessage(push("alice", "bob")))
	assert.True(t, u.OnNewMessage(push("alice", "bob")))
	assert.True(t, u.OnNewMessage(push("carol", "bob")))

	assert.Equal(t, int64(2), u.Count("alice"))
	assert.Equal(t, int64(1), u.Count("carol"))
	assert.Equal(t, int64(3), u.Total())
}

func TestUnreadIndex_IgnoresSelfEcho(t *testing.T) {
	u := NewUnreadIndex("bob")

	assert.False(t, u.OnNewMessage(push("bob", "alice")))
	assert.False(t, u.OnNewMessage(push("alice", "carol")))
	assert.False(t, u.OnNewMessage(nil))
	assert.Empty(t, u.Counts())
}

func TestUnreadIndex_SuppressesActiveConversation(t *testing.T) {
	u := NewUnreadIndex("bob")
	u.SetActive("alice")

	assert.False(t, u.OnNewMessage(push("alice", "bob")))
	assert.True(t, u.OnNewMessage(push("carol", "bob")))
	assert.Equal(t, int64(0), u.Count("alice"))

	u.CloseConversation("carol")
	assert.Equal(t, "alice", u.Active())

	u.CloseConversation("alice")
	assert.Equal(t, "", u.Active())
	assert.True(t, u.OnNewMessage(push("alice", "bob")))
	assert.Equal(t, int64(1), u.Count("alice"))
}

func TestUnreadIndex_ClearAndSync(t *testing.T) {
	u := NewUnreadIndex("bob")
	u.OnNewMessage(push("alice", "bob"))
	u.OnNewMessage(push("carol", "bob"))

	u.Clear("alice")
	_, ok := u.Counts()["alice"]
	assert.False(t, ok)

	u.Sync(map[string]int64{"dave": 4, "erin": 0})
	assert.Equal(t, map[string]int64{"dave": 4}, u.Counts())

	counts := u.Counts()
	counts["dave"] = 100
	assert.Equal(t, int64(4), u.Count("dave"))
}
