package service

import (
	"context"

	"github.com/mbeoliero/beatdm/internal/entity"
	"gorm.io/gorm"
)

// UserDirectory is the read side of the external user directory.
// Unknown ids are omitted, never reported as errors.
type UserDirectory interface {
	GetById(ctx context.Context, id string) (*entity.User, error)
	GetByIds(ctx context.Context, ids []string) ([]*entity.User, error)
}

// ChannelStore persists channels
type ChannelStore interface {
	FindByPair(ctx context.Context, userA, userB entity.UserRef) (*entity.Channel, error)
	Create(ctx context.Context, userA, userB entity.UserRef) (*entity.Channel, error)
	SetLastMessage(ctx context.Context, tx *gorm.DB, channelId, messageId int64) error
	ListForUser(ctx context.Context, user entity.UserRef) ([]*entity.Channel, error)
}

// MessageStore persists messages
type MessageStore interface {
	Append(ctx context.Context, tx *gorm.DB, channelId int64, senderId, recipientId entity.UserRef, content string) (*entity.Message, error)
	List(ctx context.Context, channelId int64, page, pageSize int) ([]*entity.Message, error)
	MarkRead(ctx context.Context, channelId int64, fromSenderId, toRecipientId entity.UserRef) (int64, error)
	CountUnread(ctx context.Context, channelId int64, fromSenderId, toRecipientId entity.UserRef) (int64, error)
	CountUnreadByChannel(ctx context.Context, recipientId entity.UserRef, channelIds []int64) (map[int64]int64, error)
	UnreadBySender(ctx context.Context, recipientId entity.UserRef) (map[entity.UserRef]int64, error)
}

// TxRunner runs fn inside a chat store transaction
type TxRunner func(ctx context.Context, fn func(tx *gorm.DB) error) error
