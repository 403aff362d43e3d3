package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/internal/rag/metrics"
	"github.com/kart-io/linkvault/internal/rag/store"
)

// DefaultRetrieveK 默认检索条数。
const DefaultRetrieveK = 5

// QueryEmbedder 将文本转换为向量。
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever 负责向量检索。
type Retriever struct {
	index    store.VectorIndex
	embedder QueryEmbedder
	metrics  *metrics.RAGMetrics
}

// NewRetriever 创建检索器实例。
func NewRetriever(index store.VectorIndex, embedder QueryEmbedder, m *metrics.RAGMetrics) *Retriever {
	if m == nil {
		m = metrics.GetRAGMetrics()
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		metrics:  m,
	}
}

// Retrieve embeds query and returns up to k hits from collection, best first.
// An empty collection yields an empty slice and no error.
func (r *Retriever) Retrieve(ctx context.Context, query, collection string, k int) ([]store.SearchHit, error) {
	if k <= 0 {
		k = DefaultRetrieveK
	}

	start := time.Now()
	hits, err := r.retrieve(ctx, query, collection, k)
	r.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	logger.Debugw("retrieved hits", "collection", collection, "k", k, "hits", len(hits))
	return hits, nil
}

func (r *Retriever) retrieve(ctx context.Context, query, collection string, k int) ([]store.SearchHit, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := r.index.Search(ctx, collection, vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}
	if hits == nil {
		hits = []store.SearchHit{}
	}
	return hits, nil
}
