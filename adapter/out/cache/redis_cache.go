// Package cache provides a redis-backed ProfileCache for hosted
// deployments where the "device" is a backend session host rather than a
// browser-adjacent process. Keys are TTL-less: the cache contract is
// monotonic growth with explicit deletion on sign-out.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kareemamged/rashadai-sub002/core/domain"
)

const (
	profilePrefix = "authcore:profile:"
	emailPrefix   = "authcore:email:"
	lastEmailKey  = "authcore:meta:last_login_email"
)

// RedisCache implements out.ProfileCache on redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a cache over an existing client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the cached profile, or (nil, nil) when absent.
func (c *RedisCache) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	data, err := c.client.Get(ctx, profilePrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var profile domain.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, nil
	}
	return &profile, nil
}

// GetByEmail resolves the email index, then the entry.
func (c *RedisCache) GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	id, err := c.client.Get(ctx, emailPrefix+domain.NormalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, id)
}

// Put writes the entry and its email index, bumping UpdatedAt.
func (c *RedisCache) Put(ctx context.Context, profile *domain.UserProfile) error {
	cp := profile.Clone()
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, profilePrefix+cp.ID, data, 0)
	pipe.Set(ctx, emailPrefix+domain.NormalizeEmail(cp.Email), cp.ID, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes the entry and its email index.
func (c *RedisCache) Delete(ctx context.Context, id string) error {
	profile, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	keys := []string{profilePrefix + id}
	if profile != nil {
		keys = append(keys, emailPrefix+domain.NormalizeEmail(profile.Email))
	}
	return c.client.Del(ctx, keys...).Err()
}

// LastLoginEmail returns the convenience flag, empty when unset.
func (c *RedisCache) LastLoginEmail(ctx context.Context) (string, error) {
	email, err := c.client.Get(ctx, lastEmailKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return email, err
}

// SetLastLoginEmail records the convenience flag.
func (c *RedisCache) SetLastLoginEmail(ctx context.Context, email string) error {
	return c.client.Set(ctx, lastEmailKey, domain.NormalizeEmail(email), 0).Err()
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
