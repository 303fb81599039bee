/**
 * @description
 * Process-wide cache for partner authentication tokens (OAuth/MAC), keyed by
 * resource. Tokens are cached for an effective lifetime deliberately shorter
 * than the partner's stated lifetime to absorb round-trip latency. Concurrent
 * callers race to refresh on expiry; last-writer-wins is acceptable because
 * tokens are interchangeable.
 *
 * Two implementations share the TokenCache interface: a Redis-backed cache so
 * token reuse survives multi-process deployment, and an in-process fallback
 * for when Redis is not configured.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EffectiveTokenLifetime is shorter than the partner's stated token lifetime
// (600s) to tolerate request round-trip latency.
const EffectiveTokenLifetime = 570 * time.Second

var ErrNotFound = errors.New("token not found")

// Token is a cached partner credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	MACKey      string    `json:"mac_key"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the token's effective lifetime has elapsed.
func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenCache stores partner tokens keyed by resource.
type TokenCache interface {
	Get(ctx context.Context, resource string) (Token, error)
	Set(ctx context.Context, resource string, token Token) error
}

// MemoryTokenCache is the in-process fallback, safe for concurrent use.
type MemoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewMemoryTokenCache creates an empty in-process token cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]Token)}
}

func (c *MemoryTokenCache) Get(ctx context.Context, resource string) (Token, error) {
	c.mu.RLock()
	token, ok := c.tokens[resource]
	c.mu.RUnlock()
	if !ok || token.Expired(time.Now().UTC()) {
		return Token{}, ErrNotFound
	}
	return token, nil
}

func (c *MemoryTokenCache) Set(ctx context.Context, resource string, token Token) error {
	c.mu.Lock()
	c.tokens[resource] = token
	c.mu.Unlock()
	return nil
}

// RedisTokenCache stores tokens in Redis with a TTL matching the effective
// lifetime.
type RedisTokenCache struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenCache creates a Redis-backed token cache.
func NewRedisTokenCache(client *redis.Client, prefix string) *RedisTokenCache {
	if prefix == "" {
		prefix = "commerce:partner_token"
	}
	return &RedisTokenCache{client: client, prefix: prefix}
}

func (c *RedisTokenCache) key(resource string) string {
	return c.prefix + ":" + resource
}

func (c *RedisTokenCache) Get(ctx context.Context, resource string) (Token, error) {
	raw, err := c.client.Get(ctx, c.key(resource)).Bytes()
	if err == redis.Nil {
		return Token{}, ErrNotFound
	}
	if err != nil {
		return Token{}, err
	}
	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return Token{}, err
	}
	if token.Expired(time.Now().UTC()) {
		return Token{}, ErrNotFound
	}
	return token, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, resource string, token Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.client.Set(ctx, c.key(resource), raw, ttl).Err()
}
