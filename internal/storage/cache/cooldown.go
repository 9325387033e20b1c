package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// Cooldowns are advisory: they exist to stop us hammering a provider that
// already told us to back off. Both implementations therefore fail open:
// if the underlying store is unreachable we report "not in cooldown" and
// let the provider be the judge again.

// RedisCooldowns tracks rate-limited tokens in Redis so that every replica
// of the service observes the same backoff window.
type RedisCooldowns struct {
	cache CacheClient
	ttl   time.Duration
}

func NewRedisCooldowns(cache CacheClient, ttl time.Duration) *RedisCooldowns {
	return &RedisCooldowns{cache: cache, ttl: ttl}
}

func (c *RedisCooldowns) StartCooldown(ctx context.Context, platform push.Platform, token string) {
	_ = c.cache.Set(ctx, cooldownKey(platform, token), true, c.ttl)
}

func (c *RedisCooldowns) InCooldown(ctx context.Context, platform push.Platform, token string) bool {
	var flagged bool
	return c.cache.Get(ctx, cooldownKey(platform, token), &flagged) == nil
}

// MemoryCooldowns is the single-replica fallback used when no Redis address
// is configured. Windows are process-local and vanish on restart, which is
// acceptable for an advisory mechanism.
type MemoryCooldowns struct {
	entries *gocache.Cache
}

func NewMemoryCooldowns(ttl time.Duration) *MemoryCooldowns {
	return &MemoryCooldowns{entries: gocache.New(ttl, ttl)}
}

func (c *MemoryCooldowns) StartCooldown(_ context.Context, platform push.Platform, token string) {
	c.entries.Set(cooldownKey(platform, token), true, gocache.DefaultExpiration)
}

func (c *MemoryCooldowns) InCooldown(_ context.Context, platform push.Platform, token string) bool {
	_, found := c.entries.Get(cooldownKey(platform, token))
	return found
}

// cooldownKey hashes the token: web push tokens are whole JSON documents
// and raw device tokens should not appear in Redis key listings.
func cooldownKey(platform push.Platform, token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("push:cooldown:%s:%s", platform, hex.EncodeToString(sum[:]))
}
