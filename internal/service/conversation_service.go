package service

import (
	"context"
	"sort"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/internal/repository"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/mbeoliero/kit/log"
)

// ConversationService derives per-user conversation summaries from channels
type ConversationService struct {
	channels ChannelStore
	messages MessageStore
	profiles *ProfileResolver
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		channels: repos.Channel,
		messages: repos.Message,
		profiles: NewProfileResolver(repos.User),
	}
}

// ListConversations lists the user's conversations, most recent activity
// first. Channels whose other participant is unknown to the directory are
// left out.
func (s *ConversationService) ListConversations(ctx context.Context, userId entity.UserRef) ([]*entity.ConversationInfo, error) {
	if userId.IsZero() {
		return nil, errcode.ErrInvalidParam
	}

	channels, err := s.channels.ListForUser(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "list channels failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	others := make([]entity.UserRef, 0, len(channels))
	channelIds := make([]int64, 0, len(channels))
	for _, ch := range channels {
		others = append(others, ch.OtherParticipant(userId))
		channelIds = append(channelIds, ch.Id)
	}

	profiles, err := s.profiles.Resolve(ctx, others...)
	if err != nil {
		return nil, err
	}

	unread, err := s.messages.CountUnreadByChannel(ctx, userId, channelIds)
	if err != nil {
		log.CtxError(ctx, "count unread failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.ConversationInfo, 0, len(channels))
	for _, ch := range channels {
		other, ok := profiles[ch.OtherParticipant(userId)]
		if !ok {
			log.CtxDebug(ctx, "skip conversation with unknown user: channel_id=%d", ch.Id)
			continue
		}

		info := &entity.ConversationInfo{
			ChannelId:     ch.Id,
			OtherUser:     other,
			LastMessageAt: ch.ActivityAt(),
			UnreadCount:   unread[ch.Id],
		}
		if ch.LastMessage != nil {
			info.LastMessage = ch.LastMessage.ToLastMessageInfo()
		}
		result = append(result, info)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastMessageAt > result[j].LastMessageAt
	})

	return result, nil
}

// UnreadSnapshot returns the user's unread counts keyed by the other
// participant, computed from read flags. Senders with nothing unread and
// senders unknown to the directory are absent.
func (s *ConversationService) UnreadSnapshot(ctx context.Context, userId entity.UserRef) (map[entity.UserRef]int64, error) {
	if userId.IsZero() {
		return nil, errcode.ErrInvalidParam
	}

	bySender, err := s.messages.UnreadBySender(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "unread by sender failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	if len(bySender) == 0 {
		return bySender, nil
	}

	senders := make([]entity.UserRef, 0, len(bySender))
	for sender := range bySender {
		senders = append(senders, sender)
	}
	profiles, err := s.profiles.Resolve(ctx, senders...)
	if err != nil {
		return nil, err
	}

	for sender := range bySender {
		if _, ok := profiles[sender]; !ok {
			delete(bySender, sender)
		}
	}
	return bySender, nil
}
