package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tutorchat/pkg/config"
	"tutorchat/pkg/logger"
)

const cacheKeyPrefix = "identity:"

// identityCache holds verified identities keyed by a token digest so raw
// tokens never land in the cache.
type identityCache interface {
	get(ctx context.Context, digest string) (*Identity, error)
	set(ctx context.Context, digest string, id Identity) error
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// cachingVerifier fronts a Verifier with a TTL cache so hot tokens do not
// hit the auth collaborator on every request.
type cachingVerifier struct {
	base  Verifier
	cache identityCache
}

func newCachingVerifier(base Verifier, cfg config.AuthCacheConfig) (Verifier, error) {
	ttl := cfg.TTLDuration()
	switch cfg.Driver {
	case "", "memory":
		return &cachingVerifier{base: base, cache: newMemoryCache(ttl)}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return &cachingVerifier{base: base, cache: &redisCache{client: client, ttl: ttl}}, nil
	case "none":
		return base, nil
	default:
		return nil, fmt.Errorf("unknown auth cache driver: %s", cfg.Driver)
	}
}

func (v *cachingVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	digest := tokenDigest(token)
	if id, err := v.cache.get(ctx, digest); err == nil && id != nil {
		return *id, nil
	}
	id, err := v.base.Verify(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	if err := v.cache.set(ctx, digest, id); err != nil {
		logger.Debug("identity_cache_set_failed", "error", err)
	}
	return id, nil
}

// memoryCache is the in-process cache driver.
type memoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

type memoryEntry struct {
	id        Identity
	expiresAt time.Time
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *memoryCache) get(ctx context.Context, digest string) (*Identity, error) {
	c.mu.RLock()
	e, ok := c.entries[digest]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, nil
	}
	id := e.id
	return &id, nil
}

func (c *memoryCache) set(ctx context.Context, digest string, id Identity) error {
	c.mu.Lock()
	c.entries[digest] = memoryEntry{id: id, expiresAt: time.Now().Add(c.ttl)}
	// opportunistic sweep to keep the map bounded
	if len(c.entries) > 4096 {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.mu.Unlock()
	return nil
}

// redisCache is the shared cache driver for multi-instance deployments.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisCache) get(ctx context.Context, digest string) (*Identity, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+digest).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var id Identity
	if err := json.Unmarshal([]byte(val), &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *redisCache) set(ctx context.Context, digest string, id Identity) error {
	val, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+digest, val, c.ttl).Err()
}
