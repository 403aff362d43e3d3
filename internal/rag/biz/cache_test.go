package biz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 辅助函数：创建基于 miniredis 的缓存
func setupTestCache(t *testing.T) (*QueryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewQueryCache(client, &QueryCacheConfig{
		Enabled:   true,
		TTL:       time.Hour,
		KeyPrefix: "test:",
	}), mr
}

func TestNewQueryCache_WithNilConfig(t *testing.T) {
	cache := NewQueryCache(nil, nil)
	assert.False(t, cache.config.Enabled) // 默认禁用
	assert.Equal(t, 10*time.Minute, cache.config.TTL)
	assert.Equal(t, "linkvault:", cache.config.KeyPrefix)
	assert.False(t, cache.enabled())
}

func TestQueryCache_GenerateCacheKey(t *testing.T) {
	cache, _ := setupTestCache(t)

	key1 := cache.generateCacheKey("links", cacheKindAsk, "什么是 RAG？")
	key2 := cache.generateCacheKey("links", cacheKindAsk, "什么是 RAG？")
	key3 := cache.generateCacheKey("links", cacheKindSearch, "什么是 RAG？")
	key4 := cache.generateCacheKey("other", cacheKindAsk, "什么是 RAG？")

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.NotEqual(t, key1, key4)
	assert.Contains(t, key1, "test:query:links:ask:")
}

func TestQueryCache_SetAndGet(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	result := &AskResult{
		Question: "什么是向量数据库？",
		Answer:   "向量数据库是一种专门用于存储和检索向量嵌入的数据库。",
		Source:   Source{ID: 7, Score: 0.95, Text: "向量数据库介绍..."},
	}
	require.NoError(t, cache.Set(ctx, "links", cacheKindAsk, result.Question, result))

	var got AskResult
	require.True(t, cache.Get(ctx, "links", cacheKindAsk, result.Question, &got))
	assert.Equal(t, *result, got)

	// TTL 生效
	key := cache.generateCacheKey("links", cacheKindAsk, result.Question)
	assert.Equal(t, time.Hour, mr.TTL(key))

	// 未命中
	assert.False(t, cache.Get(ctx, "links", cacheKindAsk, "另一个问题", &got))
}

func TestQueryCache_CorruptedEntry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	key := cache.generateCacheKey("links", cacheKindSearch, "q")
	require.NoError(t, mr.Set(key, "{not json"))

	var got SearchResult
	assert.False(t, cache.Get(ctx, "links", cacheKindSearch, "q", &got))
	assert.False(t, mr.Exists(key), "corrupted entry is deleted")
}

func TestQueryCache_InvalidateCollection(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "links", cacheKindAsk, "a", &AskResult{Answer: "1"}))
	require.NoError(t, cache.Set(ctx, "links", cacheKindSearch, "b", &SearchResult{Query: "b"}))
	require.NoError(t, cache.Set(ctx, "links2", cacheKindAsk, "a", &AskResult{Answer: "2"}))

	require.NoError(t, cache.InvalidateCollection(ctx, "links"))

	var ask AskResult
	assert.False(t, cache.Get(ctx, "links", cacheKindAsk, "a", &ask))
	assert.True(t, cache.Get(ctx, "links2", cacheKindAsk, "a", &ask))
	assert.Equal(t, "2", ask.Answer)
	assert.Len(t, mr.Keys(), 1)

	require.NoError(t, cache.Clear(ctx))
	assert.Empty(t, mr.Keys())
}

func TestQueryCache_GetStats(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "links", cacheKindAsk, "a", &AskResult{}))
	stats, err := cache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 1, stats["key_count"])

	var nilCache *QueryCache
	stats, err = nilCache.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, stats["enabled"])
}

func TestQueryCache_RedisDown(t *testing.T) {
	cache, mr := setupTestCache(t)
	mr.Close()

	var got AskResult
	assert.False(t, cache.Get(context.Background(), "links", cacheKindAsk, "q", &got))
	assert.Error(t, cache.Set(context.Background(), "links", cacheKindAsk, "q", &got))
}
