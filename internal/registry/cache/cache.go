// Package cache provides a redis-backed read cache for the registry's
// verification predicate. The practice log and scoring collaborators hit
// IsVerified on every write, so the hot path is worth caching; the registry
// service invalidates on every verification decision.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agritrust/pkg/domain"
)

// DefaultTTL bounds staleness if an invalidation is ever lost.
const DefaultTTL = 5 * time.Minute

// VerificationCache stores verification flags in redis, keyed per principal.
type VerificationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New constructs a cache with the given TTL; ttl<=0 falls back to DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *VerificationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &VerificationCache{client: client, ttl: ttl}
}

func key(principal domain.Principal) string {
	return "agritrust:verified:" + principal.String()
}

// Get returns the cached flag. A miss is (false, false, nil).
func (c *VerificationCache) Get(ctx context.Context, principal domain.Principal) (bool, bool, error) {
	value, err := c.client.Get(ctx, key(principal)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("verification cache get: %w", err)
	}
	return value == "1", true, nil
}

// Set records the flag with the configured TTL.
func (c *VerificationCache) Set(ctx context.Context, principal domain.Principal, verified bool) error {
	value := "0"
	if verified {
		value = "1"
	}
	if err := c.client.Set(ctx, key(principal), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("verification cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached flag so the next read goes to the store.
func (c *VerificationCache) Invalidate(ctx context.Context, principal domain.Principal) error {
	if err := c.client.Del(ctx, key(principal)).Err(); err != nil {
		return fmt.Errorf("verification cache invalidate: %w", err)
	}
	return nil
}
