// --- File: internal/storage/cache/tokenstore.go ---
package cache

import (
	"context"
	"fmt"
	"time"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedTokenStore is a Decorator that adds Read-Aside caching to any TokenStore.
type CachedTokenStore struct {
	realStore push.TokenStore
	cache     CacheClient
	ttl       time.Duration
}

// NewCachedTokenStore creates the decorator.
func NewCachedTokenStore(realStore push.TokenStore, cache CacheClient, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedTokenStore) GetTokens(ctx context.Context, user urn.URN) ([]push.DeviceToken, error) {
	key := s.cacheKey(user)

	// 1. Try Cache
	var cached []push.DeviceToken
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		// Cache Hit
		return cached, nil
	}

	// 2. Fallback to Real Store (Firestore)
	fresh, err := s.realStore.GetTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	// 3. Populate Cache (Fire and Forget)
	// We ignore errors here because caching is an optimization, not a transaction.
	// If Redis is down, we just serve from DB. Empty lists are cached too: a
	// user with no devices would otherwise hit Firestore on every message.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedTokenStore) RegisterToken(ctx context.Context, user urn.URN, token push.DeviceToken) error {
	// 1. Write to Source of Truth
	if err := s.realStore.RegisterToken(ctx, user, token); err != nil {
		return err
	}
	// 2. Invalidate Cache
	return s.invalidate(ctx, user)
}

// UnregisterToken must clear the cache even though the DB write already
// succeeded: a dead token kept in a warm cache would be pushed to until the
// TTL expired.
func (s *CachedTokenStore) UnregisterToken(ctx context.Context, user urn.URN, token push.DeviceToken) error {
	if err := s.realStore.UnregisterToken(ctx, user, token); err != nil {
		return err
	}
	return s.invalidate(ctx, user)
}

// --- Helpers ---

func (s *CachedTokenStore) invalidate(ctx context.Context, user urn.URN) error {
	// We delete the key. The next GetTokens is forced to go to Firestore,
	// which gives immediate consistency for unregister actions.
	return s.cache.Del(ctx, s.cacheKey(user))
}

func (s *CachedTokenStore) cacheKey(user urn.URN) string {
	return fmt.Sprintf("push:tokens:%s", user.String())
}
