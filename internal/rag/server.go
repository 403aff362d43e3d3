// Package ragsvc provides the linkvault server implementation.
package ragsvc

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/linkvault/internal/rag/biz"
	"github.com/kart-io/linkvault/internal/rag/embedder"
	"github.com/kart-io/linkvault/internal/rag/fetcher"
	"github.com/kart-io/linkvault/internal/rag/handler"
	"github.com/kart-io/linkvault/internal/rag/metrics"
	"github.com/kart-io/linkvault/internal/rag/router"
	"github.com/kart-io/linkvault/internal/rag/store"
	"github.com/kart-io/linkvault/pkg/component/milvus"
	"github.com/kart-io/linkvault/pkg/component/redis"
	"github.com/kart-io/linkvault/pkg/infra/app"
	"github.com/kart-io/linkvault/pkg/infra/middleware"
	"github.com/kart-io/linkvault/pkg/infra/pool"
	"github.com/kart-io/linkvault/pkg/infra/server"
	"github.com/kart-io/linkvault/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/linkvault/pkg/llm/huggingface"
	_ "github.com/kart-io/linkvault/pkg/llm/local"
	_ "github.com/kart-io/linkvault/pkg/llm/ollama"
	_ "github.com/kart-io/linkvault/pkg/llm/openai"
	"github.com/kart-io/linkvault/pkg/llm/resilience"
	cacheopts "github.com/kart-io/linkvault/pkg/options/cache"
	llmopts "github.com/kart-io/linkvault/pkg/options/llm"
	logopts "github.com/kart-io/linkvault/pkg/options/logger"
	milvusopts "github.com/kart-io/linkvault/pkg/options/milvus"
	qdrantopts "github.com/kart-io/linkvault/pkg/options/qdrant"
	ragopts "github.com/kart-io/linkvault/pkg/options/rag"
	serveropts "github.com/kart-io/linkvault/pkg/options/server"
	"github.com/kart-io/linkvault/pkg/utils/id"
	"github.com/kart-io/linkvault/pkg/utils/validator"
)

// Name is the name of the application.
const Name = "linkvault"

// healthCheckCollection is only enumerated, never created.
const healthCheckCollection = "linkvault-health-check"

// Config contains application-related configurations.
type Config struct {
	ServerOptions    *serveropts.Options
	LogOptions       *logopts.Options
	RAGOptions       *ragopts.Options
	QdrantOptions    *qdrantopts.Options
	MilvusOptions    *milvusopts.Options
	CacheOptions     *cacheopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
}

// Server represents the linkvault server.
type Server struct {
	srv *server.Manager
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type namedCloser struct {
	name   string
	closer server.Closer
}

// closers 记录已创建的依赖：初始化失败时逆序释放，成功后交给 Manager。
type closers []namedCloser

func (c *closers) add(name string, closer server.Closer) {
	*c = append(*c, namedCloser{name: name, closer: closer})
}

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		_ = c[i].closer.Close()
	}
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (srv *Server, err error) {
	printBanner(cfg)

	var opened closers
	defer func() {
		if err != nil {
			opened.closeAll()
		}
	}()

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting linkvault service...")

	// 2. 请求校验
	validator.Install()

	m := metrics.GetRAGMetrics()
	health := middleware.NewHealthManager(app.GetVersion())

	// 3. 初始化向量索引
	index, err := cfg.newVectorIndex(ctx)
	if err != nil {
		return nil, err
	}
	opened.add("vector-index", index)
	health.RegisterChecker("vector_index", func(ctx context.Context) error {
		if index.Exists(ctx, healthCheckCollection) == store.ExistenceUnknown {
			return fmt.Errorf("%s: cannot list collections", index.Name())
		}
		return nil
	})
	logger.Infow("Vector index initialized", "backend", index.Name(), "dimension", cfg.RAGOptions.EmbeddingDim)

	// 4. 初始化 Redis（可选，连接失败时关闭缓存）
	var redisClient goredis.UniversalClient
	if cfg.CacheOptions.Enabled {
		rc, err := redis.New(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", err.Error())
		} else {
			redisClient = rc.Client()
			opened.add("redis", rc)
			health.RegisterChecker("redis", rc.Ping)
			logger.Infow("Redis cache initialized",
				"addr", cfg.CacheOptions.Redis.Addr(),
				"ttl", cfg.CacheOptions.TTL,
			)
		}
	} else {
		logger.Info("Cache is disabled")
	}

	// 5. 初始化 Embedding 模型（首次使用时加载）
	emb := embedder.New(cfg.embeddingLoader(redisClient, m),
		embedder.WithDimension(cfg.RAGOptions.EmbeddingDim),
		embedder.WithCache(cfg.RAGOptions.EmbeddingLRUSize),
	)
	opened.add("embedder", emb)
	health.RegisterChecker("embedder", func(ctx context.Context) error {
		_, err := emb.Embed(ctx, "health")
		return err
	})
	logger.Infow("Embedding service configured",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	// 6. 初始化 Chat 供应商
	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	chat := resilience.NewResilientChatProvider(chatProvider,
		retryConfig(cfg.ChatOptions),
		breakerConfig("chat", cfg.ChatOptions, m),
	)
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 7. 内容抓取
	contentFetcher := fetcher.NewMicrolink(&fetcher.Config{
		BaseURL:       cfg.RAGOptions.Fetcher.BaseURL,
		APIKey:        cfg.RAGOptions.Fetcher.APIKey,
		Timeout:       cfg.RAGOptions.Fetcher.Timeout,
		MinLineLength: cfg.RAGOptions.Fetcher.MinLineLength,
	})

	// 8. 点 ID 生成器
	ids, err := id.NewSnowflakeGenerator(id.WithNodeID(cfg.RAGOptions.NodeID))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize id generator: %w", err)
	}

	// 9. 批量入库工作池
	batchPool, err := pool.NewPool("ingest-batch", pool.BatchPoolConfig(cfg.RAGOptions.BatchConcurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize batch pool: %w", err)
	}
	opened.add("batch-pool", closerFunc(func() error {
		batchPool.Release()
		return nil
	}))

	// 10. 初始化 Biz 层
	queryCache := biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
		Enabled:   redisClient != nil,
		TTL:       cfg.CacheOptions.TTL,
		KeyPrefix: cfg.CacheOptions.KeyPrefix,
	})
	ragService := biz.NewRAGService(&biz.Dependencies{
		Fetcher:   contentFetcher,
		Index:     index,
		Embedder:  emb,
		Retriever: biz.NewRetriever(index, emb, m),
		Composer: biz.NewComposer(chat, &biz.ComposerConfig{
			MaxRewriteAttempts: cfg.RAGOptions.MaxRewriteAttempts,
		}, m),
		IDs:       ids,
		Cache:     queryCache,
		BatchPool: batchPool,
		Metrics:   m,
	}, &biz.ServiceConfig{
		ChunkSize:       cfg.RAGOptions.ChunkSize,
		SearchLimit:     cfg.RAGOptions.SearchLimit,
		AskK:            cfg.RAGOptions.AskK,
		CharLimit:       cfg.RAGOptions.CharLimit,
		ContextHitCount: cfg.RAGOptions.ContextHitCount,
	})
	logger.Infow("Service initialized",
		"cache.enabled", redisClient != nil,
		"chunk_size", cfg.RAGOptions.ChunkSize,
		"batch_concurrency", cfg.RAGOptions.BatchConcurrency,
	)

	// 11. 初始化服务器并注册路由
	serverManager := server.NewManager(
		server.WithHTTPOptions(cfg.ServerOptions.HTTP),
		server.WithMiddleware(cfg.ServerOptions.Middleware),
		server.WithShutdownTimeout(cfg.ServerOptions.ShutdownTimeout),
	)
	if err := router.Register(serverManager, &router.Routes{
		Handler: handler.NewRAGHandler(ragService),
		Health:  health,
		Metrics: m,
	}); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	for _, c := range opened {
		serverManager.AddCloser(c.name, c.closer)
	}

	logger.Info("linkvault service is ready")
	return &Server{srv: serverManager}, nil
}

// Run starts the server and blocks until ctx is done or a signal arrives.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx)
}

func (cfg *Config) newVectorIndex(ctx context.Context) (store.VectorIndex, error) {
	collection := &store.CollectionConfig{
		Dimension: cfg.RAGOptions.EmbeddingDim,
		Segments:  cfg.RAGOptions.Segments,
	}

	switch cfg.RAGOptions.VectorBackend {
	case ragopts.BackendMilvus:
		client, err := milvus.New(ctx, cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		return store.NewMilvusIndex(client, collection), nil
	case ragopts.BackendMemory:
		logger.Warn("Using the in-memory vector index, data is lost on restart")
		return store.NewMemoryIndex(collection), nil
	default:
		return store.NewQdrantIndex(&store.QdrantConfig{
			URL:     cfg.QdrantOptions.URL,
			APIKey:  cfg.QdrantOptions.APIKey,
			Timeout: cfg.QdrantOptions.Timeout,
		}, collection), nil
	}
}

// embeddingLoader 构造供应商：熔断重试包装，Redis 可用时再加一层向量缓存。
func (cfg *Config) embeddingLoader(redisClient goredis.UniversalClient, m *metrics.RAGMetrics) embedder.ModelLoader {
	return func(_ context.Context) (llm.EmbeddingProvider, error) {
		configMap := cfg.EmbeddingOptions.ToConfigMap()
		configMap["dimension"] = cfg.RAGOptions.EmbeddingDim

		provider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, configMap)
		if err != nil {
			return nil, err
		}

		var wrapped llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(provider,
			retryConfig(cfg.EmbeddingOptions),
			breakerConfig("embedding", cfg.EmbeddingOptions, m),
		)
		if redisClient != nil && cfg.CacheOptions.EmbeddingTTL > 0 {
			wrapped = llm.NewCachedEmbeddingProvider(wrapped, redisClient, &llm.EmbeddingCacheConfig{
				TTL:       cfg.CacheOptions.EmbeddingTTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
			})
		}
		return wrapped, nil
	}
}

func retryConfig(o *llmopts.ProviderOptions) *resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxRetries = o.MaxRetries
	return rc
}

func breakerConfig(name string, o *llmopts.ProviderOptions, m *metrics.RAGMetrics) *resilience.CircuitBreakerConfig {
	if !o.CircuitBreaker {
		return nil
	}
	cb := resilience.DefaultCircuitBreakerConfig()
	cb.Name = name
	cb.MaxFailures = o.FailureThreshold
	cb.OnStateChange = m.OnBreakerStateChange
	return cb
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Vector backend: %s\n", cfg.RAGOptions.VectorBackend)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
}
