package repository

import (
	"context"
	"strings"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/mbeoliero/beatdm/pkg/idgen"
	"gorm.io/gorm"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append creates a new unread message in a channel.
// tx may be nil to run outside a transaction.
func (r *MessageRepo) Append(ctx context.Context, tx *gorm.DB, channelId int64, senderId, recipientId entity.UserRef, content string) (*entity.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errcode.ErrEmptyContent
	}
	if tx == nil {
		tx = r.db
	}

	id, err := idgen.NextID()
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{
		Id:          id,
		ChannelId:   channelId,
		SenderId:    senderId,
		RecipientId: recipientId,
		Content:     content,
		CreatedAt:   entity.NowUnixMilli(),
	}
	if err := tx.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

// List lists one page of a channel's messages in creation order.
// page is 1-based; pageSize is capped at constant.MaxPageLimit.
func (r *MessageRepo) List(ctx context.Context, channelId int64, page, pageSize int) ([]*entity.Message, error) {
	if page <= 0 {
		page = constant.DefaultPage
	}
	if pageSize <= 0 {
		pageSize = constant.DefaultPageLimit
	}
	if pageSize > constant.MaxPageLimit {
		pageSize = constant.MaxPageLimit
	}

	var messages []*entity.Message
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelId).
		Order("created_at ASC").
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead marks every unread message from sender to recipient in a channel
// as read and returns how many rows changed
func (r *MessageRepo) MarkRead(ctx context.Context, channelId int64, fromSenderId, toRecipientId entity.UserRef) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("channel_id = ? AND sender_id = ? AND recipient_id = ? AND is_read = ?", channelId, fromSenderId, toRecipientId, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// CountUnread counts unread messages from sender to recipient in a channel
func (r *MessageRepo) CountUnread(ctx context.Context, channelId int64, fromSenderId, toRecipientId entity.UserRef) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("channel_id = ? AND sender_id = ? AND recipient_id = ? AND is_read = ?", channelId, fromSenderId, toRecipientId, false).
		Count(&count).Error
	return count, err
}

type unreadRow struct {
	ChannelId int64          `gorm:"column:channel_id"`
	SenderId  entity.UserRef `gorm:"column:sender_id"`
	Count     int64          `gorm:"column:cnt"`
}

// CountUnreadByChannel counts messages addressed to recipient and not yet
// read, grouped by channel. Channels with nothing unread are absent.
func (r *MessageRepo) CountUnreadByChannel(ctx context.Context, recipientId entity.UserRef, channelIds []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(channelIds))
	if len(channelIds) == 0 {
		return result, nil
	}

	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Select("channel_id, COUNT(*) AS cnt").
		Where("channel_id IN ? AND recipient_id = ? AND sender_id <> ? AND is_read = ?", channelIds, recipientId, recipientId, false).
		Group("channel_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.ChannelId] = row.Count
	}
	return result, nil
}

// UnreadBySender counts unread messages addressed to recipient, grouped by sender
func (r *MessageRepo) UnreadBySender(ctx context.Context, recipientId entity.UserRef) (map[entity.UserRef]int64, error) {
	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Select("sender_id, COUNT(*) AS cnt").
		Where("recipient_id = ? AND sender_id <> ? AND is_read = ?", recipientId, recipientId, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[entity.UserRef]int64, len(rows))
	for _, row := range rows {
		result[row.SenderId] = row.Count
	}
	return result, nil
}
