package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/internal/repository"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/mbeoliero/kit/log"
	"gorm.io/gorm"
)

// MessagePusher hands a sent message to the realtime fan-out
type MessagePusher interface {
	PushNewMessage(msg *entity.MessageInfo)
}

// MessageService handles message-related business logic
type MessageService struct {
	channels ChannelStore
	messages MessageStore
	users    UserDirectory
	profiles *ProfileResolver
	tx       TxRunner
	pusher   MessagePusher
}

// NewMessageService creates a new MessageService
func NewMessageService(repos *repository.Repositories) *MessageService {
	return &MessageService{
		channels: repos.Channel,
		messages: repos.Message,
		users:    repos.User,
		profiles: NewProfileResolver(repos.User),
		tx:       repos.ChatTransaction,
	}
}

// SetPusher sets the message pusher
func (s *MessageService) SetPusher(pusher MessagePusher) {
	s.pusher = pusher
}

// SendMessageRequest represents send message request
type SendMessageRequest struct {
	ReceiverId string `json:"receiverId"`
	Content    string `json:"content"`
}

// SendMessage persists a message from sender to recipient, creating their
// channel on first contact, and pushes it to the recipient's room
func (s *MessageService) SendMessage(ctx context.Context, senderId, recipientId entity.UserRef, content string) (*entity.MessageInfo, error) {
	if senderId.IsZero() || recipientId.IsZero() {
		return nil, errcode.ErrInvalidParam
	}
	if senderId == recipientId {
		return nil, errcode.ErrInvalidParam
	}

	recipient, err := s.users.GetById(ctx, recipientId.String())
	if err != nil {
		log.CtxError(ctx, "get recipient failed: recipient_id=%s, error=%v", recipientId, err)
		return nil, errcode.ErrInternalServer
	}
	if recipient == nil {
		return nil, errcode.ErrUserNotFound
	}

	if strings.TrimSpace(content) == "" {
		return nil, errcode.ErrEmptyContent
	}

	channel, err := s.findOrCreateChannel(ctx, senderId, recipientId)
	if err != nil {
		log.CtxError(ctx, "find or create channel failed: sender_id=%s, recipient_id=%s, error=%v", senderId, recipientId, err)
		return nil, errcode.ErrSendFailed
	}

	var msg *entity.Message
	err = s.tx(ctx, func(tx *gorm.DB) error {
		msg, err = s.messages.Append(ctx, tx, channel.Id, senderId, recipientId, content)
		if err != nil {
			return err
		}
		return s.channels.SetLastMessage(ctx, tx, channel.Id, msg.Id)
	})
	if err != nil {
		if e, ok := err.(*errcode.Error); ok {
			return nil, e
		}
		log.CtxError(ctx, "send message failed: channel_id=%d, error=%v", channel.Id, err)
		return nil, errcode.ErrSendFailed
	}

	sender, err := s.profiles.ResolveOne(ctx, senderId)
	if err != nil || sender == nil {
		sender = entity.UnknownProfile(senderId)
	}
	info := msg.ToMessageInfo(sender)

	if s.pusher != nil {
		s.pusher.PushNewMessage(info)
	}

	log.CtxInfo(ctx, "message sent: sender_id=%s, recipient_id=%s, channel_id=%d, msg_id=%d", senderId, recipientId, channel.Id, msg.Id)
	return info, nil
}

// findOrCreateChannel returns the pair's channel, creating it when absent.
// A concurrent first send from the other side makes Create hit the unique
// pair index; the winner's channel is then looked up and used.
func (s *MessageService) findOrCreateChannel(ctx context.Context, userA, userB entity.UserRef) (*entity.Channel, error) {
	channel, err := s.channels.FindByPair(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if channel != nil {
		return channel, nil
	}

	channel, err = s.channels.Create(ctx, userA, userB)
	if err == nil {
		return channel, nil
	}
	if !errors.Is(err, errcode.ErrChannelExists) {
		return nil, err
	}

	log.CtxDebug(ctx, "channel create raced, retrying find: pair=%s", entity.GenPairKey(userA, userB))
	channel, err = s.channels.FindByPair(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, errcode.ErrChannelExists
	}
	return channel, nil
}

// HistoryResult is one page of a conversation plus the profiles it references
type HistoryResult struct {
	Messages []*entity.MessageInfo              `json:"messages"`
	Profiles map[entity.UserRef]*entity.Profile `json:"profiles"`
}

// GetHistory gets a page of the requester's conversation with other and
// marks other's messages to the requester as read. The page is returned as
// it was before the mark.
func (s *MessageService) GetHistory(ctx context.Context, requesterId, otherId entity.UserRef, page, limit int) (*HistoryResult, error) {
	result := &HistoryResult{
		Messages: []*entity.MessageInfo{},
		Profiles: map[entity.UserRef]*entity.Profile{},
	}
	if requesterId.IsZero() || otherId.IsZero() {
		return nil, errcode.ErrInvalidParam
	}

	channel, err := s.channels.FindByPair(ctx, requesterId, otherId)
	if err != nil {
		log.CtxError(ctx, "find channel failed: requester_id=%s, other_id=%s, error=%v", requesterId, otherId, err)
		return nil, errcode.ErrPullFailed
	}
	if channel == nil {
		return result, nil
	}

	messages, err := s.messages.List(ctx, channel.Id, page, limit)
	if err != nil {
		log.CtxError(ctx, "list messages failed: channel_id=%d, error=%v", channel.Id, err)
		return nil, errcode.ErrPullFailed
	}

	refs := make([]entity.UserRef, 0, 2)
	seen := make(map[entity.UserRef]struct{}, 2)
	for _, msg := range messages {
		for _, ref := range []entity.UserRef{msg.SenderId, msg.RecipientId} {
			if _, ok := seen[ref]; !ok {
				seen[ref] = struct{}{}
				refs = append(refs, ref)
			}
		}
	}

	profiles, err := s.profiles.Resolve(ctx, refs...)
	if err != nil {
		return nil, err
	}
	result.Profiles = profiles

	for _, msg := range messages {
		result.Messages = append(result.Messages, msg.ToMessageInfo(Display(profiles, msg.SenderId)))
	}

	if _, err := s.messages.MarkRead(ctx, channel.Id, otherId, requesterId); err != nil {
		log.CtxWarn(ctx, "mark read after history failed: channel_id=%d, error=%v", channel.Id, err)
	}

	return result, nil
}

// MarkConversationRead marks other's messages to the requester as read and
// returns how many changed
func (s *MessageService) MarkConversationRead(ctx context.Context, requesterId, otherId entity.UserRef) (int64, error) {
	if requesterId.IsZero() || otherId.IsZero() {
		return 0, errcode.ErrInvalidParam
	}

	channel, err := s.channels.FindByPair(ctx, requesterId, otherId)
	if err != nil {
		log.CtxError(ctx, "find channel failed: requester_id=%s, other_id=%s, error=%v", requesterId, otherId, err)
		return 0, errcode.ErrInternalServer
	}
	if channel == nil {
		return 0, nil
	}

	n, err := s.messages.MarkRead(ctx, channel.Id, otherId, requesterId)
	if err != nil {
		log.CtxError(ctx, "mark read failed: channel_id=%d, error=%v", channel.Id, err)
		return 0, errcode.ErrInternalServer
	}
	return n, nil
}

// CountUnread counts other's unread messages to the requester
func (s *MessageService) CountUnread(ctx context.Context, requesterId, otherId entity.UserRef) (int64, error) {
	channel, err := s.channels.FindByPair(ctx, requesterId, otherId)
	if err != nil {
		log.CtxError(ctx, "find channel failed: requester_id=%s, other_id=%s, error=%v", requesterId, otherId, err)
		return 0, errcode.ErrInternalServer
	}
	if channel == nil {
		return 0, nil
	}

	n, err := s.messages.CountUnread(ctx, channel.Id, otherId, requesterId)
	if err != nil {
		log.CtxError(ctx, "count unread failed: channel_id=%d, error=%v", channel.Id, err)
		return 0, errcode.ErrInternalServer
	}
	return n, nil
}
