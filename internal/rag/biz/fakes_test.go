package biz

import (
	"context"
	"hash/fnv"
	"sync"
	"testing"

	"github.com/kart-io/linkvault/internal/rag/fetcher"
	"github.com/kart-io/linkvault/internal/rag/metrics"
	"github.com/kart-io/linkvault/internal/rag/store"
	"github.com/kart-io/linkvault/pkg/llm"
)

const testDim = 8

// fakeFetcher 按 URL 返回预置内容。
type fakeFetcher struct {
	mu     sync.Mutex
	blocks map[string][]string
	errs   map[string]error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[pageURL]; ok {
		return nil, err
	}
	if b, ok := f.blocks[pageURL]; ok {
		return b, nil
	}
	return nil, fetcher.ErrNoContent
}

// hashEmbedder 基于 FNV 的确定性向量，可为特定文本指定向量。
type hashEmbedder struct {
	mu    sync.Mutex
	fixed map[string][]float32
	err   error
	calls int
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.fixed[text]; ok {
		return v, nil
	}
	v := make([]float32, testDim)
	for i := range v {
		h := fnv.New32a()
		_, _ = h.Write([]byte{byte(i)})
		_, _ = h.Write([]byte(text))
		v[i] = float32(h.Sum32()%1000) / 1000
	}
	return v, nil
}

func (e *hashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// scriptedChat 按顺序返回预置输出，并记录每次调用。
type scriptedChat struct {
	mu       sync.Mutex
	outputs  []string
	err      error
	messages [][]llm.Message
	opts     []llm.GenerateOptions
}

func (c *scriptedChat) Chat(_ context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, messages)
	c.opts = append(c.opts, opts)
	if c.err != nil {
		return "", c.err
	}
	if len(c.outputs) == 0 {
		return "ok", nil
	}
	out := c.outputs[0]
	if len(c.outputs) > 1 {
		c.outputs = c.outputs[1:]
	}
	return out, nil
}

func (c *scriptedChat) Name() string { return "scripted" }

func (c *scriptedChat) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// counterReserver 每次预留返回递增的块基址。
type counterReserver struct {
	mu    sync.Mutex
	next  int64
	calls int
}

func (r *counterReserver) ReserveBlock() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.next += 1 << 22
	return r.next
}

type testEnv struct {
	svc      *RAGService
	fetcher  *fakeFetcher
	index    *store.MemoryIndex
	embedder *hashEmbedder
	chat     *scriptedChat
	metrics  *metrics.RAGMetrics
}

func newTestEnv(t *testing.T, cache *QueryCache) *testEnv {
	t.Helper()
	env := &testEnv{
		fetcher:  &fakeFetcher{blocks: map[string][]string{}, errs: map[string]error{}},
		index:    store.NewMemoryIndex(&store.CollectionConfig{Dimension: testDim}),
		embedder: &hashEmbedder{fixed: map[string][]float32{}},
		chat:     &scriptedChat{},
		metrics:  metrics.NewRAGMetrics(),
	}
	env.svc = NewRAGService(&Dependencies{
		Fetcher:   env.fetcher,
		Index:     env.index,
		Embedder:  env.embedder,
		Retriever: NewRetriever(env.index, env.embedder, env.metrics),
		Composer:  NewComposer(env.chat, &ComposerConfig{MaxRewriteAttempts: 1}, env.metrics),
		IDs:       &counterReserver{},
		Cache:     cache,
		Metrics:   env.metrics,
	}, DefaultServiceConfig())
	return env
}
