package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/pkg/constant"
	"github.com/mbeoliero/kit/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// UserRepo reads the marketplace user directory.
// Lookups are cached in Redis when rdb is set.
type UserRepo struct {
	db  *gorm.DB
	rdb *redis.Client
	ttl time.Duration
}

// NewUserRepo creates a new UserRepo
func NewUserRepo(db *gorm.DB, rdb *redis.Client, ttl time.Duration) *UserRepo {
	return &UserRepo{db: db, rdb: rdb, ttl: ttl}
}

// GetById gets user by Id. Returns nil, nil when the user does not exist.
func (r *UserRepo) GetById(ctx context.Context, id string) (*entity.User, error) {
	users, err := r.GetByIds(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// GetByIds gets users by Ids. Unknown Ids are omitted from the result.
func (r *UserRepo) GetByIds(ctx context.Context, ids []string) ([]*entity.User, error) {
	ids = dedupeIds(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	users, missing := r.getCached(ctx, ids)
	if len(missing) == 0 {
		return users, nil
	}

	var loaded []*entity.User
	if err := r.db.WithContext(ctx).Where("id IN ?", missing).Find(&loaded).Error; err != nil {
		return nil, err
	}
	r.setCached(ctx, loaded)

	return append(users, loaded...), nil
}

// Exists checks if user exists
func (r *UserRepo) Exists(ctx context.Context, id string) (bool, error) {
	user, err := r.GetById(ctx, id)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// getCached returns cached users and the ids that were not in the cache
func (r *UserRepo) getCached(ctx context.Context, ids []string) ([]*entity.User, []string) {
	if r.rdb == nil {
		return nil, ids
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, userCacheKey(id))
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.CtxDebug(ctx, "profile cache read failed: %v", err)
		}
		return nil, ids
	}

	users := make([]*entity.User, 0, len(ids))
	var missing []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var user entity.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		users = append(users, &user)
	}
	return users, missing
}

// setCached writes users to the cache; failures only cost a cache miss
func (r *UserRepo) setCached(ctx context.Context, users []*entity.User) {
	if r.rdb == nil || len(users) == 0 {
		return
	}

	pipe := r.rdb.Pipeline()
	for _, user := range users {
		data, err := json.Marshal(user)
		if err != nil {
			continue
		}
		pipe.Set(ctx, userCacheKey(user.Id), data, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.CtxDebug(ctx, "profile cache write failed: %v", err)
	}
}

func userCacheKey(id string) string {
	return fmt.Sprintf(constant.RedisKeyUser(), id)
}

func dedupeIds(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
