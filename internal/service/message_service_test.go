package service

import (
	"context"
	"sync"
	"testing"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/internal/repository"
	"github.com/mbeoliero/beatdm/internal/testutil"
	"github.com/mbeoliero/beatdm/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	mu   sync.Mutex
	msgs []*entity.MessageInfo
}

func (p *recordingPusher) PushNewMessage(msg *entity.MessageInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *recordingPusher) pushed() []*entity.MessageInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*entity.MessageInfo(nil), p.msgs...)
}

// racingChannelStore makes the first lookup miss after another sender has
// already created the pair's channel
type racingChannelStore struct {
	ChannelStore
	once  sync.Once
	finds int
}

func (s *racingChannelStore) FindByPair(ctx context.Context, userA, userB entity.UserRef) (*entity.Channel, error) {
	s.finds++
	raced := false
	s.once.Do(func() {
		_, err := s.ChannelStore.Create(ctx, userB, userA)
		raced = err == nil
	})
	if raced {
		return nil, nil
	}
	return s.ChannelStore.FindByPair(ctx, userA, userB)
}

func setupMessageService(t *testing.T, users ...string) (*MessageService, *repository.Repositories, *recordingPusher) {
	t.Helper()
	repos := testutil.NewRepositories(t)
	testutil.SeedUsers(t, repos, users...)

	svc := NewMessageService(repos)
	pusher := &recordingPusher{}
	svc.SetPusher(pusher)
	return svc, repos, pusher
}

func countChannels(t *testing.T, repos *repository.Repositories) int64 {
	t.Helper()
	var n int64
	require.NoError(t, repos.ChatDB.Model(&entity.Channel{}).Count(&n).Error)
	return n
}

func TestSendMessage_FirstContactCreatesChannel(t *testing.T) {
	svc, repos, pusher := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	info, err := svc.SendMessage(ctx, "alice", "bob", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", info.Content)
	assert.Equal(t, entity.UserRef("alice"), info.SenderId)
	assert.Equal(t, entity.UserRef("bob"), info.RecipientId)
	assert.False(t, info.Read)
	require.NotNil(t, info.Sender)
	assert.Equal(t, "Name alice", info.Sender.Name)

	ch, err := repos.Channel.FindByPair(ctx, "bob", "alice")
	require.NoError(t, err)
	require.NotNil(t, ch)
	require.NotNil(t, ch.LastMessageId)
	assert.Equal(t, info.Id, *ch.LastMessageId)
	assert.Equal(t, ch.Id, info.ChannelId)

	pushed := pusher.pushed()
	require.Len(t, pushed, 1)
	assert.Equal(t, info.Id, pushed[0].Id)
}

func TestSendMessage_SamePairReusesChannel(t *testing.T) {
	svc, repos, _ := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, "alice", "bob", "one")
	require.NoError(t, err)
	second, err := svc.SendMessage(ctx, "bob", "alice", "two")
	require.NoError(t, err)
	third, err := svc.SendMessage(ctx, "alice", "bob", "three")
	require.NoError(t, err)

	assert.Equal(t, first.ChannelId, second.ChannelId)
	assert.Equal(t, first.ChannelId, third.ChannelId)
	assert.Equal(t, int64(1), countChannels(t, repos))
}

func TestSendMessage_EmptyContent(t *testing.T) {
	svc, repos, pusher := setupMessageService(t, "alice", "bob")

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := svc.SendMessage(context.Background(), "bob", "alice", content)
		assert.ErrorIs(t, err, errcode.ErrEmptyContent)
	}
	assert.Equal(t, int64(0), countChannels(t, repos))
	assert.Empty(t, pusher.pushed())
}

func TestSendMessage_UnknownRecipient(t *testing.T) {
	svc, repos, _ := setupMessageService(t, "alice")

	_, err := svc.SendMessage(context.Background(), "alice", "ghost", "hi")
	assert.ErrorIs(t, err, errcode.ErrUserNotFound)
	assert.Equal(t, 404, errcode.From(err).Status())
	assert.Equal(t, int64(0), countChannels(t, repos))
}

func TestSendMessage_SelfIsRejected(t *testing.T) {
	svc, _, _ := setupMessageService(t, "alice")

	_, err := svc.SendMessage(context.Background(), "alice", "alice", "note to self")
	assert.ErrorIs(t, err, errcode.ErrInvalidParam)
}

func TestSendMessage_UnknownSenderStillSends(t *testing.T) {
	svc, _, _ := setupMessageService(t, "bob")

	info, err := svc.SendMessage(context.Background(), "deleted", "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, entity.UnknownProfile("deleted"), info.Sender)
}

func TestSendMessage_RaceRecoversByFind(t *testing.T) {
	svc, repos, _ := setupMessageService(t, "alice", "bob")
	racing := &racingChannelStore{ChannelStore: repos.Channel}
	svc.channels = racing
	ctx := context.Background()

	info, err := svc.SendMessage(ctx, "alice", "bob", "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, racing.finds)

	ch, err := repos.Channel.FindByPair(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, ch.Id, info.ChannelId)
	assert.Equal(t, entity.UserRef("bob"), ch.UserOneId)
	assert.Equal(t, int64(1), countChannels(t, repos))
}

func TestSendMessage_ConcurrentFirstMessages(t *testing.T) {
	svc, repos, _ := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*entity.MessageInfo, 2)
	errs := make([]error, 2)
	pairs := [][2]entity.UserRef{{"alice", "bob"}, {"bob", "alice"}}
	for i, pair := range pairs {
		wg.Add(1)
		go func(i int, sender, recipient entity.UserRef) {
			defer wg.Done()
			results[i], errs[i] = svc.SendMessage(ctx, sender, recipient, "hi from "+sender.String())
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].ChannelId, results[1].ChannelId)
	assert.Equal(t, int64(1), countChannels(t, repos))

	msgs, err := repos.Message.List(ctx, results[0].ChannelId, 1, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestGetHistory_NoChannelIsEmpty(t *testing.T) {
	svc, _, _ := setupMessageService(t, "alice", "bob")

	result, err := svc.GetHistory(context.Background(), "alice", "bob", 1, 50)
	require.NoError(t, err)
	assert.Empty(t, result.Messages)
	assert.NotNil(t, result.Messages)
}

func TestGetHistory_MarksCounterpartRead(t *testing.T) {
	svc, _, _ := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	first, err := svc.GetHistory(ctx, "bob", "alice", 1, 50)
	require.NoError(t, err)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "hello", first.Messages[0].Content)
	assert.False(t, first.Messages[0].Read)
	assert.Contains(t, first.Profiles, entity.UserRef("alice"))
	assert.Contains(t, first.Profiles, entity.UserRef("bob"))

	second, err := svc.GetHistory(ctx, "bob", "alice", 1, 50)
	require.NoError(t, err)
	require.Len(t, second.Messages, 1)
	assert.True(t, second.Messages[0].Read)
}

func TestGetHistory_SenderViewDoesNotMarkOwnMessages(t *testing.T) {
	svc, _, _ := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "alice", "bob", "hello")
	require.NoError(t, err)

	_, err = svc.GetHistory(ctx, "alice", "bob", 1, 50)
	require.NoError(t, err)

	n, err := svc.CountUnread(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetHistory_OrderMatchesSendOrder(t *testing.T) {
	svc, _, _ := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	var sent []int64
	for i, content := range []string{"a", "b", "c", "d", "e", "f"} {
		sender, recipient := entity.UserRef("alice"), entity.UserRef("bob")
		if i%3 == 2 {
			sender, recipient = recipient, sender
		}
		info, err := svc.SendMessage(ctx, sender, recipient, content)
		require.NoError(t, err)
		sent = append(sent, info.Id)
	}

	result, err := svc.GetHistory(ctx, "alice", "bob", 1, 50)
	require.NoError(t, err)
	require.Len(t, result.Messages, len(sent))
	for i, msg := range result.Messages {
		assert.Equal(t, sent[i], msg.Id)
		if i > 0 {
			assert.GreaterOrEqual(t, msg.CreatedAt, result.Messages[i-1].CreatedAt)
		}
	}
}

func TestUnreadAccuracy(t *testing.T) {
	svc, _, _ := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		_, err := svc.SendMessage(ctx, "alice", "bob", "ping")
		require.NoError(t, err)
	}

	count, err := svc.CountUnread(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)

	_, err = svc.GetHistory(ctx, "bob", "alice", 1, 50)
	require.NoError(t, err)

	count, err = svc.CountUnread(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMarkConversationRead_Idempotent(t *testing.T) {
	svc, _, _ := setupMessageService(t, "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, "alice", "bob", "ping")
		require.NoError(t, err)
	}

	updated, err := svc.MarkConversationRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)

	updated, err = svc.MarkConversationRead(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)

	count, err := svc.CountUnread(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	updated, err = svc.MarkConversationRead(ctx, "bob", "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
}
