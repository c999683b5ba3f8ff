// Package cache implements a tenant-partitioned read cache on Redis.
//
// Every key is prefixed with the owning tenant, so entries of different
// tenants can never collide and a whole tenant can be flushed at once.
// The cache fails soft in both directions: a broken backend turns reads
// into misses and writes into no-ops, and the caller falls through to
// the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tenantauth/tenantauth/internal/metrics"
)

const scanBatch = 200

// Cache is the Redis-backed tenant cache.
type Cache struct {
	redis   redis.UniversalClient
	prefix  string
	ttl     time.Duration
	enabled bool
}

// New creates a cache. When enabled is false every read misses and
// every write is dropped.
func New(client redis.UniversalClient, prefix string, ttl time.Duration, enabled bool) *Cache {
	return &Cache{
		redis:   client,
		prefix:  prefix,
		ttl:     ttl,
		enabled: enabled,
	}
}

func (c *Cache) entryKey(tenantID uint64, key string) string {
	return fmt.Sprintf("%s:c:%d:%s", c.prefix, tenantID, key)
}

func (c *Cache) tagKey(tenantID uint64, tag string) string {
	return fmt.Sprintf("%s:ct:%d:%s", c.prefix, tenantID, tag)
}

// Get loads a cached value into out. Returns false on miss, disabled
// cache or backend failure.
func (c *Cache) Get(ctx context.Context, tenantID uint64, key string, out interface{}) bool {
	if !c.enabled {
		return false
	}

	blob, err := c.redis.Get(ctx, c.entryKey(tenantID, key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}

		metrics.CacheOperations.WithLabelValues("miss").Inc()

		return false
	}

	if err := json.Unmarshal(blob, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry corrupt, dropping")
		c.Delete(ctx, tenantID, key)
		metrics.CacheOperations.WithLabelValues("miss").Inc()

		return false
	}

	metrics.CacheOperations.WithLabelValues("hit").Inc()

	return true
}

// Set stores a value under the tenant's namespace. tags group entries
// for bulk invalidation; the tag index expires together with the
// entries it points at.
func (c *Cache) Set(ctx context.Context, tenantID uint64, key string, value interface{}, tags ...string) {
	if !c.enabled {
		return
	}

	blob, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}

	entry := c.entryKey(tenantID, key)

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, entry, blob, c.ttl)

	for _, tag := range tags {
		tk := c.tagKey(tenantID, tag)
		pipe.SAdd(ctx, tk, entry)
		pipe.Expire(ctx, tk, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Delete removes a single entry.
func (c *Cache) Delete(ctx context.Context, tenantID uint64, key string) {
	if !c.enabled {
		return
	}

	if err := c.redis.Del(ctx, c.entryKey(tenantID, key)).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}

// DeleteByTag removes every entry the tag points at, then the tag itself.
func (c *Cache) DeleteByTag(ctx context.Context, tenantID uint64, tag string) {
	if !c.enabled {
		return
	}

	tk := c.tagKey(tenantID, tag)

	keys, err := c.redis.SMembers(ctx, tk).Result()
	if err != nil {
		log.Warn().Err(err).Str("tag", tag).Msg("cache tag lookup failed")
		return
	}

	pipe := c.redis.TxPipeline()
	for _, k := range keys {
		pipe.Del(ctx, k)
	}

	pipe.Del(ctx, tk)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("tag", tag).Msg("cache tag invalidation failed")
	}
}

// DeleteTenant flushes every cached entry of one tenant. Other tenants
// are untouched. Used when a tenant is suspended or its configuration
// changes.
func (c *Cache) DeleteTenant(ctx context.Context, tenantID uint64) {
	if !c.enabled {
		return
	}

	for _, pattern := range []string{
		fmt.Sprintf("%s:c:%d:*", c.prefix, tenantID),
		fmt.Sprintf("%s:ct:%d:*", c.prefix, tenantID),
	} {
		var cursor uint64

		for {
			keys, next, err := c.redis.Scan(ctx, cursor, pattern, scanBatch).Result()
			if err != nil {
				log.Warn().Err(err).Uint64("tenant_id", tenantID).Msg("cache tenant flush failed")
				return
			}

			if len(keys) > 0 {
				if err := c.redis.Del(ctx, keys...).Err(); err != nil {
					log.Warn().Err(err).Uint64("tenant_id", tenantID).Msg("cache tenant flush failed")
					return
				}
			}

			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
}
