package store

import (
	"context"
	"errors"
	"fmt"
)

// DefaultDimension 默认向量维度。
const DefaultDimension = 384

var (
	// ErrDimensionMismatch is returned when a vector does not match the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrCollectionNotFound is returned when searching or writing a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrInvalidCollectionName is returned when a backend cannot store a collection under the given name.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Existence 是集合存在性检查的三态结果。
type Existence int

const (
	// ExistenceUnknown 表示无法枚举集合。
	ExistenceUnknown Existence = iota
	ExistenceExists
	ExistenceAbsent
)

func (e Existence) String() string {
	switch e {
	case ExistenceExists:
		return "exists"
	case ExistenceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Payload is the metadata stored alongside a vector.
type Payload struct {
	// Text 分块原文，必填。
	Text       string   `json:"text"`
	SourceURL  string   `json:"source_url,omitempty"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	ChunkIndex int      `json:"chunk_index"`
}

// Point is one indexed vector. Upserting an existing ID overwrites it.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload Payload
}

// SearchHit is a scored search result.
type SearchHit struct {
	ID      uint64  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// CollectionConfig 集合创建参数。
type CollectionConfig struct {
	// Dimension 向量维度。
	Dimension int
	// Segments 段数（Qdrant default_segment_number / Milvus shard 数）。
	Segments int
	// Replication 副本数。
	Replication int
}

// DefaultCollectionConfig returns dimension 384, 2 segments, replication 1.
func DefaultCollectionConfig() *CollectionConfig {
	return &CollectionConfig{
		Dimension:   DefaultDimension,
		Segments:    2,
		Replication: 1,
	}
}

func (c *CollectionConfig) complete() *CollectionConfig {
	out := DefaultCollectionConfig()
	if c == nil {
		return out
	}
	if c.Dimension > 0 {
		out.Dimension = c.Dimension
	}
	if c.Segments > 0 {
		out.Segments = c.Segments
	}
	if c.Replication > 0 {
		out.Replication = c.Replication
	}
	return out
}

// VectorIndex 定义命名集合上的向量索引操作。
// 所有集合使用余弦相似度。
type VectorIndex interface {
	// Exists 枚举集合并精确匹配名称。枚举失败返回 ExistenceUnknown 而不是错误。
	Exists(ctx context.Context, name string) Existence

	// Create 创建集合。集合已存在时记录日志并返回 nil。
	Create(ctx context.Context, name string) error

	// Upsert 插入或覆盖一个点。
	Upsert(ctx context.Context, name string, point Point) error

	// Search 返回按分数降序排列的最多 limit 个结果。
	Search(ctx context.Context, name string, vector []float32, limit int) ([]SearchHit, error)

	// Name 返回后端名称。
	Name() string

	// Close 释放连接。
	Close() error
}

// NameChecker 由对集合名有额外限制的后端实现。
type NameChecker interface {
	// CheckName 返回 ErrInvalidCollectionName 包装的错误，名称可用时返回 nil。
	CheckName(name string) error
}

func checkDimension(vector []float32, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dim)
	}
	return nil
}
