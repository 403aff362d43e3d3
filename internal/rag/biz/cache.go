package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/linkvault/pkg/utils/json"
)

// 缓存的结果类型。
const (
	cacheKindSearch = "search"
	cacheKindAsk    = "ask"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache caches search and ask results per collection in Redis.
// Redis failures are logged and treated as misses.
type QueryCache struct {
	redis  goredis.UniversalClient
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis goredis.UniversalClient, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       10 * time.Minute,
			KeyPrefix: "linkvault:",
		}
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

func (c *QueryCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

func (c *QueryCache) collectionPrefix(collection string) string {
	return c.config.KeyPrefix + "query:" + collection + ":"
}

// generateCacheKey 键格式为 prefix + "query:" + collection + ":" + kind + ":" + sha256(query)。
func (c *QueryCache) generateCacheKey(collection, kind, query string) string {
	hash := sha256.Sum256([]byte(query))
	return c.collectionPrefix(collection) + kind + ":" + hex.EncodeToString(hash[:])
}

// Get loads a cached result into out. It reports whether a usable entry was found.
func (c *QueryCache) Get(ctx context.Context, collection, kind, query string, out any) bool {
	if !c.enabled() {
		return false
	}

	cacheKey := c.generateCacheKey(collection, kind, query)
	data, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warnw("failed to get from cache", "error", err.Error(), "key", cacheKey)
		}
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		logger.Warnw("failed to unmarshal cached result", "error", err.Error(), "key", cacheKey)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, cacheKey).Err()
		return false
	}

	logger.Debugw("cache hit", "collection", collection, "kind", kind, "key", cacheKey)
	return true
}

// Set 将结果写入缓存。
func (c *QueryCache) Set(ctx context.Context, collection, kind, query string, value any) error {
	if !c.enabled() {
		return nil
	}

	cacheKey := c.generateCacheKey(collection, kind, query)
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warnw("failed to marshal result for caching", "error", err.Error())
		return err
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set cache", "error", err.Error(), "key", cacheKey)
		return err
	}
	return nil
}

// InvalidateCollection drops every cached result of collection.
func (c *QueryCache) InvalidateCollection(ctx context.Context, collection string) error {
	if !c.enabled() {
		return nil
	}
	return c.deleteMatching(ctx, escapePattern(c.collectionPrefix(collection))+"*")
}

// Clear 清除所有查询缓存。
func (c *QueryCache) Clear(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.deleteMatching(ctx, escapePattern(c.config.KeyPrefix+"query:")+"*")
}

func (c *QueryCache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deletedCount := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
		} else {
			deletedCount++
		}
	}

	if err := iter.Err(); err != nil {
		logger.Warnw("error during cache scan", "error", err.Error(), "pattern", pattern)
		return err
	}

	logger.Debugw("invalidated query cache", "pattern", pattern, "deleted_count", deletedCount)
	return nil
}

// GetStats 获取缓存统计信息。
func (c *QueryCache) GetStats(ctx context.Context) (map[string]interface{}, error) {
	if !c.enabled() {
		return map[string]interface{}{
			"enabled": false,
		}, nil
	}

	iter := c.redis.Scan(ctx, 0, escapePattern(c.config.KeyPrefix+"query:")+"*", 0).Iterator()
	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapePattern 转义 SCAN 匹配模式中的通配符。
func escapePattern(s string) string {
	return patternEscaper.Replace(s)
}
