package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdentityCache caches resolved identities so reconnect storms do not hit the user store.
type IdentityCache interface {
	Get(ctx context.Context, userID int64) (Identity, bool, error)
	Set(ctx context.Context, identity Identity) error
	Invalidate(ctx context.Context, userID int64) error
}

// RedisIdentityCache stores identities in Redis as JSON with a TTL.
type RedisIdentityCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisIdentityCache creates a cache on top of an existing Redis client.
func NewRedisIdentityCache(client *redis.Client, prefix string, ttl time.Duration) *RedisIdentityCache {
	return &RedisIdentityCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisIdentityCache) key(userID int64) string {
	return c.prefix + strconv.FormatInt(userID, 10)
}

// Get returns the cached identity and whether it was found.
func (c *RedisIdentityCache) Get(ctx context.Context, userID int64) (Identity, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Identity{}, false, nil
		}
		return Identity{}, false, fmt.Errorf("identity cache get: %w", err)
	}

	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return Identity{}, false, fmt.Errorf("identity cache unmarshal: %w", err)
	}
	return identity, true, nil
}

// Set stores the identity with the configured TTL.
func (c *RedisIdentityCache) Set(ctx context.Context, identity Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("identity cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(identity.UserID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("identity cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached identity so the next handshake consults the store.
func (c *RedisIdentityCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("identity cache delete: %w", err)
	}
	return nil
}

type nopCache struct{}

func (nopCache) Get(context.Context, int64) (Identity, bool, error) { return Identity{}, false, nil }
func (nopCache) Set(context.Context, Identity) error                { return nil }
func (nopCache) Invalidate(context.Context, int64) error            { return nil }
