package entity

// Channel is the persisted 1:1 conversation between two users
type Channel struct {
	Id            int64    `json:"id,string" gorm:"column:id;primaryKey;autoIncrement:false"`
	UserOneId     UserRef  `json:"userOneId" gorm:"column:user_one_id;size:64;index:idx_channel_users"`
	UserTwoId     UserRef  `json:"userTwoId" gorm:"column:user_two_id;size:64;index:idx_channel_users;index"`
	PairKey       string   `json:"-" gorm:"column:pair_key;size:160;uniqueIndex"`
	LastMessageId *int64   `json:"lastMessageId,string,omitempty" gorm:"column:last_message_id"`
	LastMessage   *Message `json:"lastMessage,omitempty" gorm:"foreignKey:LastMessageId"`
	CreatedAt     int64    `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt     int64    `json:"updatedAt" gorm:"column:updated_at"`
}

// TableName returns the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// HasParticipant checks if user is one of the two participants
func (c *Channel) HasParticipant(user UserRef) bool {
	return c.UserOneId == user || c.UserTwoId == user
}

// OtherParticipant returns the participant that is not user
func (c *Channel) OtherParticipant(user UserRef) UserRef {
	if c.UserOneId == user {
		return c.UserTwoId
	}
	return c.UserOneId
}

// ActivityAt returns the time used to order conversations
func (c *Channel) ActivityAt() int64 {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

// LastMessageInfo is the last message preview of a conversation
type LastMessageInfo struct {
	Id        int64   `json:"id,string"`
	Content   string  `json:"content"`
	SenderId  UserRef `json:"senderId"`
	CreatedAt int64   `json:"createdAt"`
}

// ConversationInfo is the derived per-user summary of a channel
type ConversationInfo struct {
	ChannelId     int64            `json:"channelId,string"`
	OtherUser     *Profile         `json:"otherUser"`
	LastMessage   *LastMessageInfo `json:"lastMessage"`
	LastMessageAt int64            `json:"lastMessageAt"`
	UnreadCount   int64            `json:"unreadCount"`
}
