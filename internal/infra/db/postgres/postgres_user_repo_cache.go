package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/metrics"
	red "telegram-max-bridge/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches tenant rows in Redis. Limit lookups happen on
// every dispatched link, so this keeps the hot path off Postgres.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

// For write operations, invalidate all possible keys for that user.
func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	_ = d.cache.Del(ctx, fmt.Sprintf("user:id:%s", u.ID))
	_ = d.cache.Del(ctx, fmt.Sprintf("user:email:%s", u.Email))
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	key := fmt.Sprintf("user:id:%s", id)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, user)
	return user, nil
}

func (d *userRepoCacheDecorator) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	key := fmt.Sprintf("user:email:%s", email)
	if val, err := d.cache.Get(ctx, key); err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user, nil
		}
	}

	metrics.IncCacheRequest("user", "miss")
	user, err := d.inner.FindByEmail(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, user)
	return user, nil
}

// warm sets both keys so the next lookup by either identifier hits.
func (d *userRepoCacheDecorator) warm(ctx context.Context, u *model.User) {
	if u == nil {
		return
	}
	bytes, err := json.Marshal(u)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, fmt.Sprintf("user:id:%s", u.ID), bytes, d.ttl)
	_ = d.cache.Set(ctx, fmt.Sprintf("user:email:%s", u.Email), bytes, d.ttl)
}
