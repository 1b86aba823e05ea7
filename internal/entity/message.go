package entity

// Message represents a message. Only IsRead changes after creation.
type Message struct {
	Id          int64   `json:"id,string" gorm:"column:id;primaryKey;autoIncrement:false"`
	ChannelId   int64   `json:"channelId,string" gorm:"column:channel_id;index:idx_msg_channel_created,priority:1;index:idx_msg_unread,priority:1"`
	SenderId    UserRef `json:"senderId" gorm:"column:sender_id;size:64"`
	RecipientId UserRef `json:"recipientId" gorm:"column:recipient_id;size:64;index:idx_msg_unread,priority:2"`
	Content     string  `json:"content" gorm:"column:content;type:text"`
	IsRead      bool    `json:"read" gorm:"column:is_read;default:false;index:idx_msg_unread,priority:3"`
	CreatedAt   int64   `json:"createdAt" gorm:"column:created_at;index:idx_msg_channel_created,priority:2"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// MessageInfo is a hydrated message: the record plus the sender's profile
type MessageInfo struct {
	Id          int64    `json:"id,string"`
	ChannelId   int64    `json:"channelId,string"`
	SenderId    UserRef  `json:"senderId"`
	RecipientId UserRef  `json:"recipientId"`
	Content     string   `json:"content"`
	Read        bool     `json:"read"`
	CreatedAt   int64    `json:"createdAt"`
	Sender      *Profile `json:"sender,omitempty"`
}

// ToMessageInfo converts Message to MessageInfo with the given sender profile
func (m *Message) ToMessageInfo(sender *Profile) *MessageInfo {
	return &MessageInfo{
		Id:          m.Id,
		ChannelId:   m.ChannelId,
		SenderId:    m.SenderId,
		RecipientId: m.RecipientId,
		Content:     m.Content,
		Read:        m.IsRead,
		CreatedAt:   m.CreatedAt,
		Sender:      sender,
	}
}

// ToLastMessageInfo converts Message to its preview form
func (m *Message) ToLastMessageInfo() *LastMessageInfo {
	return &LastMessageInfo{
		Id:        m.Id,
		Content:   m.Content,
		SenderId:  m.SenderId,
		CreatedAt: m.CreatedAt,
	}
}
