// Package rag provides RAG (Retrieval-Augmented Generation) configuration options.
package rag

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 向量存储后端。
const (
	BackendQdrant = "qdrant"
	BackendMilvus = "milvus"
	BackendMemory = "memory"
)

// MilvusMaxChunkSize 是 Milvus 后端允许的最大分块字符数：
// text 字段为 VarChar(65535) 字节，按每字符最多 4 字节计算。
const MilvusMaxChunkSize = 65535 / 4

// Options contains RAG-specific configuration.
type Options struct {
	// ChunkSize is the number of characters per chunk.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// EmbeddingDim is the dimension of embedding vectors and of every collection.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// Segments is the segment (shard) count used when creating a collection.
	Segments int `json:"segments" mapstructure:"segments"`

	// VectorBackend selects the vector index: qdrant, milvus or memory.
	VectorBackend string `json:"vector-backend" mapstructure:"vector-backend"`

	// SearchLimit is the default number of hits returned by search.
	SearchLimit int `json:"search-limit" mapstructure:"search-limit"`

	// AskK is the default number of hits retrieved for ask.
	AskK int `json:"ask-k" mapstructure:"ask-k"`

	// CharLimit is the default answer length bound in characters.
	CharLimit int `json:"char-limit" mapstructure:"char-limit"`

	// ContextHitCount 构建上下文时使用的命中数。
	ContextHitCount int `json:"context-hit-count" mapstructure:"context-hit-count"`

	// MaxRewriteAttempts 答案过长时最多改写几次。
	MaxRewriteAttempts int `json:"max-rewrite-attempts" mapstructure:"max-rewrite-attempts"`

	// NodeID 是 Snowflake 节点号，多实例部署时必须各不相同。
	NodeID int64 `json:"node-id" mapstructure:"node-id"`

	// BatchConcurrency bounds the worker pool used by batch ingest.
	BatchConcurrency int `json:"batch-concurrency" mapstructure:"batch-concurrency"`

	// EmbeddingLRUSize 查询向量的进程内 LRU 大小，0 表示关闭。
	EmbeddingLRUSize int `json:"embedding-lru-size" mapstructure:"embedding-lru-size"`

	// Fetcher 内容抓取配置。
	Fetcher *FetcherOptions `json:"fetcher" mapstructure:"fetcher"`
}

// FetcherOptions configures the Microlink content extraction client.
type FetcherOptions struct {
	BaseURL       string        `json:"base-url" mapstructure:"base-url"`
	APIKey        string        `json:"-" mapstructure:"api-key"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	MinLineLength int           `json:"min-line-length" mapstructure:"min-line-length"`
}

// NewFetcherOptions 创建默认抓取配置。
func NewFetcherOptions() *FetcherOptions {
	return &FetcherOptions{
		BaseURL:       "https://api.microlink.io",
		Timeout:       30 * time.Second,
		MinLineLength: 30,
	}
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:          1000,
		EmbeddingDim:       384,
		Segments:           2,
		VectorBackend:      BackendQdrant,
		SearchLimit:        5,
		AskK:               3,
		CharLimit:          500,
		ContextHitCount:    1,
		MaxRewriteAttempts: 1,
		NodeID:             1,
		BatchConcurrency:   4,
		EmbeddingLRUSize:   1024,
		Fetcher:            NewFetcherOptions(),
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Characters per chunk.")
	fs.IntVar(&o.EmbeddingDim, p+"embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.Segments, p+"segments", o.Segments, "Segment count for new collections.")
	fs.StringVar(&o.VectorBackend, p+"vector-backend", o.VectorBackend, "Vector index backend (qdrant, milvus, memory).")
	fs.IntVar(&o.SearchLimit, p+"search-limit", o.SearchLimit, "Default number of search hits.")
	fs.IntVar(&o.AskK, p+"ask-k", o.AskK, "Default number of hits retrieved for ask.")
	fs.IntVar(&o.CharLimit, p+"char-limit", o.CharLimit, "Default answer length bound in characters.")
	fs.IntVar(&o.ContextHitCount, p+"context-hit-count", o.ContextHitCount, "Number of hits joined into the answer context.")
	fs.IntVar(&o.MaxRewriteAttempts, p+"max-rewrite-attempts", o.MaxRewriteAttempts, "Rewrite attempts for answers over the char limit.")
	fs.Int64Var(&o.NodeID, p+"node-id", o.NodeID, "Snowflake node id for point ids (0-1023).")
	fs.IntVar(&o.BatchConcurrency, p+"batch-concurrency", o.BatchConcurrency, "Worker pool size for batch ingest.")
	fs.IntVar(&o.EmbeddingLRUSize, p+"embedding-lru-size", o.EmbeddingLRUSize, "In-process query embedding LRU size, 0 disables.")

	if o.Fetcher == nil {
		o.Fetcher = NewFetcherOptions()
	}
	fs.StringVar(&o.Fetcher.BaseURL, p+"fetcher.base-url", o.Fetcher.BaseURL, "Microlink API base URL.")
	fs.StringVar(&o.Fetcher.APIKey, p+"fetcher.api-key", o.Fetcher.APIKey, "Microlink API key (x-api-key header).")
	fs.DurationVar(&o.Fetcher.Timeout, p+"fetcher.timeout", o.Fetcher.Timeout, "Microlink request timeout.")
	fs.IntVar(&o.Fetcher.MinLineLength, p+"fetcher.min-line-length", o.Fetcher.MinLineLength, "Keep only content lines longer than this.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("rag.embedding-dim must be positive"))
	}
	if o.Segments <= 0 {
		errs = append(errs, fmt.Errorf("rag.segments must be positive"))
	}
	switch strings.ToLower(o.VectorBackend) {
	case BackendMilvus:
		if o.ChunkSize > MilvusMaxChunkSize {
			errs = append(errs, fmt.Errorf("rag.chunk-size must be at most %d with the milvus backend", MilvusMaxChunkSize))
		}
	case BackendQdrant, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("rag.vector-backend %q is not one of qdrant, milvus, memory", o.VectorBackend))
	}
	if o.SearchLimit <= 0 || o.AskK <= 0 {
		errs = append(errs, fmt.Errorf("rag.search-limit and rag.ask-k must be positive"))
	}
	if o.CharLimit <= 0 {
		errs = append(errs, fmt.Errorf("rag.char-limit must be positive"))
	}
	if o.ContextHitCount <= 0 {
		errs = append(errs, fmt.Errorf("rag.context-hit-count must be positive"))
	}
	if o.MaxRewriteAttempts < 0 {
		errs = append(errs, fmt.Errorf("rag.max-rewrite-attempts must be non-negative"))
	}
	if o.NodeID < 0 || o.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("rag.node-id must be within 0-1023"))
	}
	if o.BatchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("rag.batch-concurrency must be positive"))
	}
	if o.Fetcher != nil && o.Fetcher.BaseURL == "" {
		errs = append(errs, fmt.Errorf("rag.fetcher.base-url cannot be empty"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.Fetcher == nil {
		o.Fetcher = NewFetcherOptions()
	}
	o.VectorBackend = strings.ToLower(o.VectorBackend)
	return nil
}
