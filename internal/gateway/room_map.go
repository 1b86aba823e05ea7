package gateway

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
)

// RoomMap manages rooms. A room is named after a user id and holds every
// socket that joined it; membership does not survive a disconnect.
//
// Presence is shared through Redis as one sorted set per user whose members
// are the instances holding a joined socket, scored by their expiry in unix
// milliseconds. An instance that dies stops refreshing and ages out.
type RoomMap struct {
	mu          sync.RWMutex
	rooms       map[string]*Room // room name -> Room
	rdb         *redis.Client
	instanceId  string
	presenceTTL time.Duration
}

// Room holds all connections joined to one room
type Room struct {
	Clients []*Client
	Time    time.Time
}

// NewRoomMap creates a new RoomMap. rdb may be nil.
func NewRoomMap(rdb *redis.Client, instanceId string, presenceTTL time.Duration) *RoomMap {
	return &RoomMap{
		rooms:       make(map[string]*Room),
		rdb:         rdb,
		instanceId:  instanceId,
		presenceTTL: presenceTTL,
	}
}

// Join adds client to room. Joining the same room twice is a no-op.
func (m *RoomMap) Join(ctx context.Context, room string, client *Client) {
	if !m.join(room, client) {
		return
	}
	m.setOnline(ctx, room)
}

func (m *RoomMap) join(room string, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[room]
	if !exists {
		r = &Room{
			Clients: make([]*Client, 0, 4),
		}
		m.rooms[room] = r
	}

	for _, c := range r.Clients {
		if c.ConnId == client.ConnId {
			return false
		}
	}

	r.Clients = append(r.Clients, client)
	r.Time = time.Now()
	return true
}

// Leave removes client from room. Returns true if the room became empty.
func (m *RoomMap) Leave(ctx context.Context, room string, client *Client) bool {
	if !m.leave(room, client) {
		return false
	}
	m.setOffline(ctx, room)
	return true
}

func (m *RoomMap) leave(room string, client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.rooms[room]
	if !exists {
		return false
	}

	clients := make([]*Client, 0, len(r.Clients))
	for _, c := range r.Clients {
		if c.ConnId != client.ConnId {
			clients = append(clients, c)
		}
	}
	r.Clients = clients

	if len(r.Clients) == 0 {
		delete(m.rooms, room)
		return true
	}
	return false
}

// Members gets a copy of the clients joined to room
func (m *RoomMap) Members(room string) ([]*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.rooms[room]
	if !exists {
		return nil, false
	}

	clients := make([]*Client, len(r.Clients))
	copy(clients, r.Clients)
	return clients, true
}

// HasMembers checks if any socket is joined to room
func (m *RoomMap) HasMembers(room string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.rooms[room]
	return exists && len(r.Clients) > 0
}

// RoomCount returns the number of non-empty rooms, i.e. online users
func (m *RoomMap) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// IsOnline checks if user is online here or on another live instance
func (m *RoomMap) IsOnline(ctx context.Context, userId string) bool {
	if m.HasMembers(userId) {
		return true
	}
	if m.rdb == nil {
		return false
	}

	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	n, err := m.rdb.ZCount(ctx, onlineKey(userId), "("+now, "+inf").Result()
	if err != nil {
		log.CtxDebug(ctx, "presence lookup failed: user_id=%s, error=%v", userId, err)
		return false
	}
	return n > 0
}

// RefreshPresence re-registers this instance for every local room and drops
// entries of instances that stopped refreshing
func (m *RoomMap) RefreshPresence(ctx context.Context) {
	if m.rdb == nil {
		return
	}

	rooms := m.Rooms()
	if len(rooms) == 0 {
		return
	}

	pipe := m.rdb.Pipeline()
	for _, room := range rooms {
		m.addPresence(ctx, pipe, room)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.CtxWarn(ctx, "presence refresh failed: rooms=%d, error=%v", len(rooms), err)
	}
}

// Rooms returns all local room names
func (m *RoomMap) Rooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]string, 0, len(m.rooms))
	for room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (m *RoomMap) addPresence(ctx context.Context, pipe redis.Pipeliner, userId string) {
	now := time.Now()
	key := onlineKey(userId)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.Add(m.presenceTTL).UnixMilli()), Member: m.instanceId})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(now.UnixMilli(), 10))
	pipe.Expire(ctx, key, m.presenceTTL)
}

func (m *RoomMap) setOnline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}
	pipe := m.rdb.Pipeline()
	m.addPresence(ctx, pipe, userId)
	if _, err := pipe.Exec(ctx); err != nil {
		log.CtxWarn(ctx, "set presence failed: user_id=%s, error=%v", userId, err)
	}
}

// setOffline removes only this instance; sockets on other instances keep the user online
func (m *RoomMap) setOffline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.ZRem(ctx, onlineKey(userId), m.instanceId).Err(); err != nil {
		log.CtxWarn(ctx, "clear presence failed: user_id=%s, error=%v", userId, err)
	}
}

func onlineKey(userId string) string {
	return fmt.Sprintf(constant.RedisKeyOnline(), userId)
}
