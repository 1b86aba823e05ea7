package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/mbeoliero/beatdm/pkg/idgen"
	"gorm.io/gorm"
)

// ChannelRepo is the repository for channel operations
type ChannelRepo struct {
	db *gorm.DB
}

// NewChannelRepo creates a new ChannelRepo
func NewChannelRepo(db *gorm.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

// FindByPair finds the channel of an unordered user pair.
// Both participant orderings are matched. Returns nil, nil when absent.
func (r *ChannelRepo) FindByPair(ctx context.Context, userA, userB entity.UserRef) (*entity.Channel, error) {
	var ch entity.Channel
	err := r.db.WithContext(ctx).
		Where("(user_one_id = ? AND user_two_id = ?) OR (user_one_id = ? AND user_two_id = ?)", userA, userB, userB, userA).
		First(&ch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ch, nil
}

// Create creates the channel of a user pair.
// Returns errcode.ErrChannelExists if the pair already has a channel.
func (r *ChannelRepo) Create(ctx context.Context, userA, userB entity.UserRef) (*entity.Channel, error) {
	id, err := idgen.NextID()
	if err != nil {
		return nil, err
	}

	now := entity.NowUnixMilli()
	ch := &entity.Channel{
		Id:        id,
		UserOneId: userA,
		UserTwoId: userB,
		PairKey:   entity.GenPairKey(userA, userB),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.db.WithContext(ctx).Omit("LastMessage").Create(ch).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errcode.ErrChannelExists
		}
		return nil, err
	}
	return ch, nil
}

// SetLastMessage updates the last message pointer. Last writer wins.
func (r *ChannelRepo) SetLastMessage(ctx context.Context, tx *gorm.DB, channelId, messageId int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&entity.Channel{}).
		Where("id = ?", channelId).
		Updates(map[string]interface{}{
			"last_message_id": messageId,
			"updated_at":      entity.NowUnixMilli(),
		}).Error
}

// ListForUser gets all channels the user participates in, with the last
// message loaded, most recently updated first
func (r *ChannelRepo) ListForUser(ctx context.Context, user entity.UserRef) ([]*entity.Channel, error) {
	var channels []*entity.Channel
	err := r.db.WithContext(ctx).
		Preload("LastMessage").
		Where("user_one_id = ? OR user_two_id = ?", user, user).
		Order("updated_at DESC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}
