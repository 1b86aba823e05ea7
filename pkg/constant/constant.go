package constant

// Socket event names
const (
	EventJoinRoom   = "join-room"
	EventNewMessage = "new-message"
	EventTyping     = "typing"
	EventStopTyping = "stop-typing"
	EventError      = "error"
)

// History paging
const (
	DefaultPage      = 1
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Store drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyOnline = "online:%s"  // online:{user_id} -> zset of instance ids
	redisKeyUser   = "profile:%s" // profile:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "beatdm:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
func RedisKeyUser() string   { return redisKeyPrefix + redisKeyUser }
