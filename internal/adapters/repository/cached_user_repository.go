package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
)

var _ domain.UserRepository = (*CachedUserRepository)(nil)

const userCacheTTL = 10 * time.Minute

// CachedUserRepository puts Redis in front of GetByID, the lookup every
// authenticated request performs. Users served from the cache carry no
// PasswordHash; credential checks go through GetByUsername, which is never
// cached, as is every read on the claim path.
type CachedUserRepository struct {
	next  domain.UserRepository
	cache *redis.Client
	log   logrus.FieldLogger
}

func NewCachedUserRepository(next domain.UserRepository, cache *redis.Client, log logrus.FieldLogger) *CachedUserRepository {
	return &CachedUserRepository{
		next:  next,
		cache: cache,
		log:   log,
	}
}

func (r *CachedUserRepository) cacheKey(id string) string {
	return fmt.Sprintf("users:id:%s", id)
}

func (r *CachedUserRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Del(ctx, r.cacheKey(id)).Err(); err != nil {
		r.log.WithError(err).WithField("user_id", id).Warn("cache: failed to invalidate user")
	}
}

func (r *CachedUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	key := r.cacheKey(id)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var user domain.User
		if err := json.Unmarshal([]byte(val), &user); err == nil {
			return &user, nil
		}

		r.log.WithField("user_id", id).Warn("cache: corrupted user entry, cleaning up key")
		r.cache.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.log.WithError(err).Warn("cache: redis read error")
	}

	user, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(user); err == nil {
		if setErr := r.cache.Set(ctx, key, data, userCacheTTL).Err(); setErr != nil {
			r.log.WithError(setErr).Warn("cache: redis set error")
		}
	}

	return user, nil
}

func (r *CachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.next.GetByUsername(ctx, username)
}

func (r *CachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.next.Create(ctx, user)
}

func (r *CachedUserRepository) UpdateStreak(ctx context.Context, user *domain.User) error {
	if err := r.next.UpdateStreak(ctx, user); err != nil {
		return err
	}
	r.invalidate(ctx, user.ID)
	return nil
}
