// Package embedder turns text into fixed-dimension vectors over a lazily
// loaded embedding model.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/pkg/llm"
)

// DefaultDimension 默认向量维度（all-MiniLM-L6-v2）。
const DefaultDimension = 384

const warmUpText = "warm up"

// ErrModelUnavailable is returned when the model cannot be loaded or invoked,
// or when it produces vectors of the wrong dimension.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// ModelLoader loads the embedding model handle.
type ModelLoader func(ctx context.Context) (llm.EmbeddingProvider, error)

// Option configures an Embedder.
type Option func(*Embedder)

// WithDimension sets the expected vector dimension.
func WithDimension(dim int) Option {
	return func(e *Embedder) {
		if dim > 0 {
			e.dimension = dim
		}
	}
}

// WithCache keeps up to size recent vectors in process. size <= 0 disables it.
func WithCache(size int) Option {
	return func(e *Embedder) {
		if size <= 0 {
			return
		}
		c, err := lru.New[string, []float32](size)
		if err != nil {
			logger.Warnw("embedding lru disabled", "size", size, "error", err.Error())
			return
		}
		e.cache = c
	}
}

// Embedder is the process-wide text → vector service.
type Embedder struct {
	loader    ModelLoader
	dimension int
	cache     *lru.Cache[string, []float32]

	mu    sync.Mutex
	model atomic.Pointer[handle]
	loads atomic.Int64
}

type handle struct {
	provider llm.EmbeddingProvider
}

// New creates an Embedder. The model is not loaded until the first Embed.
func New(loader ModelLoader, opts ...Option) *Embedder {
	e := &Embedder{
		loader:    loader,
		dimension: DefaultDimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the expected vector dimension.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Loaded reports whether the model handle is currently held.
func (e *Embedder) Loaded() bool {
	return e.model.Load() != nil
}

// Loads returns how many times the loader completed successfully.
func (e *Embedder) Loads() int64 {
	return e.loads.Load()
}

// load 双重检查加载：成功结果被缓存，失败不缓存，下一次调用会重试。
func (e *Embedder) load(ctx context.Context) (llm.EmbeddingProvider, error) {
	if h := e.model.Load(); h != nil {
		return h.provider, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if h := e.model.Load(); h != nil {
		return h.provider, nil
	}

	if e.loader == nil {
		return nil, fmt.Errorf("%w: no model loader configured", ErrModelUnavailable)
	}

	provider, err := e.loader(ctx)
	if err != nil {
		logger.Errorw("failed to load embedding model", "error", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	sample, err := provider.EmbedSingle(ctx, warmUpText)
	if err != nil {
		closeProvider(provider)
		return nil, fmt.Errorf("%w: warm-up failed: %w", ErrModelUnavailable, err)
	}
	if len(sample) != e.dimension {
		closeProvider(provider)
		return nil, fmt.Errorf("%w: model returned %d dimensions, want %d", ErrModelUnavailable, len(sample), e.dimension)
	}

	e.model.Store(&handle{provider: provider})
	e.loads.Add(1)
	logger.Infow("embedding model loaded", "provider", provider.Name(), "dimension", e.dimension)
	return provider, nil
}

// Embed returns the vector for text. It is deterministic for a fixed model.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return slices.Clone(v), nil
		}
	}

	provider, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	vec, err := provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrModelUnavailable, len(vec), e.dimension)
	}

	if e.cache != nil {
		e.cache.Add(text, slices.Clone(vec))
	}
	return vec, nil
}

// Close releases the model handle. A later Embed loads it again.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.model.Swap(nil)
	if e.cache != nil {
		e.cache.Purge()
	}
	if h == nil {
		return nil
	}
	if c, ok := h.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func closeProvider(p llm.EmbeddingProvider) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}
