package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/internal/rag/chunker"
	"github.com/kart-io/linkvault/internal/rag/fetcher"
	"github.com/kart-io/linkvault/internal/rag/metrics"
	"github.com/kart-io/linkvault/internal/rag/store"
	"github.com/kart-io/linkvault/pkg/infra/pool"
	"github.com/kart-io/linkvault/pkg/utils/errors"
)

// Service 定义 linkvault 服务接口。
type Service interface {
	// Ingest 抓取链接内容，分块、向量化后写入集合。
	Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error)
	// IngestBatch 并发入库多个链接。
	IngestBatch(ctx context.Context, req *BatchIngestRequest) (*BatchIngestResult, error)
	// Search 在集合内做相似度搜索。
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	// Ask 基于检索上下文回答问题。
	Ask(ctx context.Context, req *AskRequest) (*AskResult, error)
	// GetStats 获取服务统计信息。
	GetStats(ctx context.Context) (map[string]any, error)
}

// ServiceConfig 服务配置。
type ServiceConfig struct {
	// ChunkSize 分块大小（字符）。
	ChunkSize int
	// SearchLimit 搜索默认返回条数。
	SearchLimit int
	// AskK 问答默认检索条数。
	AskK int
	// CharLimit 答案默认长度上限。
	CharLimit int
	// ContextHitCount 构建上下文使用的命中数。
	ContextHitCount int
}

// DefaultServiceConfig 返回默认服务配置。
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		ChunkSize:       chunker.DefaultSize,
		SearchLimit:     DefaultRetrieveK,
		AskK:            3,
		CharLimit:       DefaultCharLimit,
		ContextHitCount: DefaultContextHitCount,
	}
}

// Dependencies 服务依赖。Cache 和 BatchPool 可为空。
type Dependencies struct {
	Fetcher   fetcher.ContentFetcher
	Index     store.VectorIndex
	Embedder  QueryEmbedder
	Retriever *Retriever
	Composer  *Composer
	IDs       BlockReserver
	Cache     *QueryCache
	BatchPool *pool.Pool
	Metrics   *metrics.RAGMetrics
}

// RAGService 组合抓取、分块、检索和生成组件。
type RAGService struct {
	fetcher   fetcher.ContentFetcher
	index     store.VectorIndex
	embedder  QueryEmbedder
	retriever *Retriever
	composer  *Composer
	ids       BlockReserver
	cache     *QueryCache
	batchPool *pool.Pool
	metrics   *metrics.RAGMetrics
	config    *ServiceConfig
}

// NewRAGService 创建服务实例。
func NewRAGService(deps *Dependencies, config *ServiceConfig) *RAGService {
	if config == nil {
		config = DefaultServiceConfig()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.GetRAGMetrics()
	}
	return &RAGService{
		fetcher:   deps.Fetcher,
		index:     deps.Index,
		embedder:  deps.Embedder,
		retriever: deps.Retriever,
		composer:  deps.Composer,
		ids:       deps.IDs,
		cache:     deps.Cache,
		batchPool: deps.BatchPool,
		metrics:   m,
		config:    config,
	}
}

// Ingest fetches req.URL, chunks the extracted text and writes one point per chunk.
func (s *RAGService) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.ErrRAGMissingURL
	}
	if err := s.checkCollection(req.CollectionName); err != nil {
		return nil, err
	}

	result, err := s.ingest(ctx, req)
	if err != nil {
		s.metrics.RecordIngest(0, err)
		return nil, err
	}
	s.metrics.RecordIngest(result.ChunksIngested, nil)
	return result, nil
}

func (s *RAGService) ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	// 1. 抓取
	blocks, err := s.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		if stderrors.Is(err, fetcher.ErrNoContent) {
			s.metrics.RecordNoContent()
			return nil, errors.ErrRAGNoContentExtracted
		}
		logger.Warnw("failed to fetch content", "url", req.URL, "error", err.Error())
		return nil, errors.ErrRAGIngestionFailed.WithCause(err)
	}

	// 2. 分块
	chunks := chunker.SplitBlocks(req.URL, blocks, s.config.ChunkSize)
	if len(chunks) == 0 {
		s.metrics.RecordNoContent()
		return nil, errors.ErrRAGNoContentExtracted
	}

	// 3. 确保集合存在
	if err := s.ensureCollection(ctx, req.CollectionName); err != nil {
		return nil, errors.ErrRAGIngestionFailed.WithCause(err)
	}

	// 4. 逐块向量化并写入
	ids := NewPointIDs(s.ids)
	for _, ch := range chunks {
		vector, err := s.embedder.Embed(ctx, ch.Text)
		if err != nil {
			return nil, errors.ErrRAGIngestionFailed.WithCause(
				fmt.Errorf("chunk %d: %w", ch.SequenceIndex, err))
		}

		point := store.Point{
			ID:     ids.Next(),
			Vector: vector,
			Payload: store.Payload{
				Text:       ch.Text,
				SourceURL:  req.URL,
				Title:      req.Title,
				Tags:       req.Tags,
				ChunkIndex: ch.SequenceIndex,
			},
		}
		if err := s.index.Upsert(ctx, req.CollectionName, point); err != nil {
			return nil, errors.ErrRAGIngestionFailed.WithCause(
				fmt.Errorf("chunk %d: %w", ch.SequenceIndex, err))
		}
	}

	// 5. 新内容使该集合的缓存结果失效
	if err := s.cache.InvalidateCollection(ctx, req.CollectionName); err != nil {
		logger.Warnw("failed to invalidate query cache", "collection", req.CollectionName, "error", err.Error())
	}

	logger.Infow("ingested link",
		"url", req.URL,
		"collection", req.CollectionName,
		"blocks", len(blocks),
		"chunks", len(chunks),
	)
	return &IngestResult{
		Collection:     req.CollectionName,
		ChunksIngested: len(chunks),
		Blocks:         blocks,
	}, nil
}

// checkCollection 校验集合名非空，且符合当前向量后端的命名规则。
func (s *RAGService) checkCollection(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.ErrRAGMissingCollectionName
	}
	if checker, ok := s.index.(store.NameChecker); ok {
		if err := checker.CheckName(name); err != nil {
			return errors.ErrRAGInvalidCollectionName.WithCause(err)
		}
	}
	return nil
}

// ensureCollection creates the collection unless it is known to exist.
// Creation on Unknown is safe because a conflict is swallowed.
func (s *RAGService) ensureCollection(ctx context.Context, name string) error {
	existence := s.index.Exists(ctx, name)
	if existence == store.ExistenceExists {
		return nil
	}
	if existence == store.ExistenceUnknown {
		logger.Warnw("collection existence unknown, attempting create", "collection", name)
	}
	return s.index.Create(ctx, name)
}

// IngestBatch ingests every URL independently on the batch pool. Chunks of a
// single URL stay sequential.
func (s *RAGService) IngestBatch(ctx context.Context, req *BatchIngestRequest) (*BatchIngestResult, error) {
	if len(req.URLs) == 0 {
		return nil, errors.ErrRAGMissingURL
	}
	if err := s.checkCollection(req.CollectionName); err != nil {
		return nil, err
	}
	s.metrics.RecordBatch()

	results := make([]BatchItemResult, len(req.URLs))
	var wg sync.WaitGroup
	for i, u := range req.URLs {
		task := func() {
			defer wg.Done()
			results[i] = s.ingestOne(ctx, u, req)
		}

		wg.Add(1)
		if s.batchPool == nil {
			go task()
			continue
		}
		if err := s.batchPool.Submit(task); err != nil {
			logger.Warnw("batch pool unavailable, ingesting inline", "url", u, "error", err.Error())
			task()
		}
	}
	wg.Wait()

	out := &BatchIngestResult{Collection: req.CollectionName, Results: results}
	for _, r := range results {
		if r.Error == "" {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out, nil
}

func (s *RAGService) ingestOne(ctx context.Context, u string, req *BatchIngestRequest) BatchItemResult {
	if err := ctx.Err(); err != nil {
		return BatchItemResult{URL: u, Code: errors.ErrRAGIngestionFailed.Code, Error: err.Error()}
	}

	res, err := s.Ingest(ctx, &IngestRequest{
		URL:            u,
		CollectionName: req.CollectionName,
		Title:          req.Title,
		Tags:           req.Tags,
	})
	if err != nil {
		e := errors.FromError(err)
		msg := e.MessageEN
		if cause := e.Cause(); cause != nil {
			msg += ": " + cause.Error()
		}
		return BatchItemResult{URL: u, Code: e.Code, Error: msg}
	}
	return BatchItemResult{URL: u, Chunks: res.ChunksIngested}
}

// Search returns the hits most similar to req.Query.
func (s *RAGService) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.ErrRAGMissingQuery
	}
	if err := s.checkCollection(req.CollectionName); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.config.SearchLimit
	}

	result, err := s.search(ctx, req.Query, req.CollectionName, limit)
	s.metrics.RecordSearch(err)
	return result, err
}

func (s *RAGService) search(ctx context.Context, query, collection string, limit int) (*SearchResult, error) {
	cacheKey := fmt.Sprintf("%d|%s", limit, query)
	var cached SearchResult
	if s.cache.enabled() {
		hit := s.cache.Get(ctx, collection, cacheKindSearch, cacheKey, &cached)
		s.metrics.RecordCache(hit)
		if hit {
			return &cached, nil
		}
	}

	hits, err := s.retriever.Retrieve(ctx, query, collection, limit)
	if err != nil {
		logger.Errorw("search failed", "collection", collection, "error", err.Error())
		return nil, errors.ErrRAGSearchFailed.WithCause(err)
	}

	result := &SearchResult{Query: query, Hits: hits}
	_ = s.cache.Set(ctx, collection, cacheKindSearch, cacheKey, result)
	return result, nil
}

// Ask answers req.Question from the top hits of the collection.
// No generation call is made when retrieval finds nothing.
func (s *RAGService) Ask(ctx context.Context, req *AskRequest) (*AskResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.ErrRAGMissingQuestion
	}
	if err := s.checkCollection(req.CollectionName); err != nil {
		return nil, err
	}

	k := req.K
	if k <= 0 {
		k = s.config.AskK
	}
	charLimit := req.CharLimit
	if charLimit <= 0 {
		charLimit = s.config.CharLimit
	}

	result, err := s.ask(ctx, req.Question, req.CollectionName, k, charLimit)
	s.metrics.RecordAsk(err)
	return result, err
}

func (s *RAGService) ask(ctx context.Context, question, collection string, k, charLimit int) (*AskResult, error) {
	cacheKey := fmt.Sprintf("%d|%d|%s", k, charLimit, question)
	var cached AskResult
	if s.cache.enabled() {
		hit := s.cache.Get(ctx, collection, cacheKindAsk, cacheKey, &cached)
		s.metrics.RecordCache(hit)
		if hit {
			return &cached, nil
		}
	}

	// 1. 检索
	hits, err := s.retriever.Retrieve(ctx, question, collection, k)
	if err != nil {
		logger.Errorw("ask retrieval failed", "collection", collection, "error", err.Error())
		return nil, errors.ErrRAGAskFailed.WithCause(err)
	}
	if len(hits) == 0 {
		s.metrics.RecordNoContext()
		return nil, errors.ErrRAGNoContextFound
	}

	// 2. 生成
	contextText := BuildContext(hits, s.config.ContextHitCount)
	answer, err := s.composer.Answer(ctx, question, contextText, charLimit)
	if err != nil {
		return nil, errors.ErrRAGAskFailed.WithCause(err)
	}

	top := hits[0]
	result := &AskResult{
		Question: question,
		Answer:   answer,
		Source: Source{
			ID:    top.ID,
			Score: top.Score,
			Text:  top.Payload.Text,
		},
	}
	_ = s.cache.Set(ctx, collection, cacheKindAsk, cacheKey, result)
	return result, nil
}

// GetStats 获取服务统计信息。
func (s *RAGService) GetStats(ctx context.Context) (map[string]any, error) {
	stats := map[string]any{
		"vector_backend": s.index.Name(),
		"metrics":        s.metrics.Stats(),
	}

	cacheStats, err := s.cache.GetStats(ctx)
	if err == nil {
		stats["cache"] = cacheStats
	}

	if s.batchPool != nil {
		ps := s.batchPool.Stats()
		stats["batch_pool"] = map[string]any{
			"capacity":  s.batchPool.Cap(),
			"running":   s.batchPool.Running(),
			"submitted": ps.Submitted,
			"completed": ps.Completed,
			"rejected":  ps.Rejected,
		}
	}

	return stats, nil
}

var _ Service = (*RAGService)(nil)
