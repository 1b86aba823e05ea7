package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenPairKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, GenPairKey("alice", "bob"), GenPairKey("bob", "alice"))
	assert.Equal(t, "alice:bob", GenPairKey("bob", "alice"))
	assert.NotEqual(t, GenPairKey("a_b", "c"), GenPairKey("a", "b_c"))
}

func TestChannel_OtherParticipant(t *testing.T) {
	ch := &Channel{UserOneId: "alice", UserTwoId: "bob"}
	assert.Equal(t, UserRef("bob"), ch.OtherParticipant("alice"))
	assert.Equal(t, UserRef("alice"), ch.OtherParticipant("bob"))
	assert.True(t, ch.HasParticipant("bob"))
	assert.False(t, ch.HasParticipant("carol"))
}

func TestChannel_ActivityAt(t *testing.T) {
	ch := &Channel{UpdatedAt: 10}
	assert.Equal(t, int64(10), ch.ActivityAt())

	ch.LastMessage = &Message{CreatedAt: 42}
	assert.Equal(t, int64(42), ch.ActivityAt())
}

func TestMessageInfo_JSON(t *testing.T) {
	msg := &Message{Id: 123, ChannelId: 9, SenderId: "alice", RecipientId: "bob", Content: "hello", CreatedAt: 5}
	data, err := json.Marshal(msg.ToMessageInfo(&Profile{Id: "alice", Name: "Alice"}))
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "123", out["id"])
	assert.Equal(t, "9", out["channelId"])
	assert.Equal(t, "alice", out["senderId"])
	assert.Equal(t, "bob", out["recipientId"])
	assert.Equal(t, false, out["read"])
	assert.Equal(t, "Alice", out["sender"].(map[string]interface{})["name"])
}

func TestUser_ToProfile(t *testing.T) {
	seller := "Beat Lab"
	p := (&User{Id: "u1", Name: "Sam", Username: "sam", SellerName: &seller}).ToProfile()
	assert.Equal(t, UserRef("u1"), p.Id)
	assert.Equal(t, "Beat Lab", p.SellerName)

	assert.Equal(t, UserRef("ghost"), UnknownProfile("ghost").Id)
}
