package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/linkvault/pkg/component/milvus"
	"github.com/kart-io/linkvault/pkg/utils/json"
)

// Milvus 集合字段名。
const (
	milvusFieldID      = "id"
	milvusFieldVector  = "vector"
	milvusFieldText    = "text"
	milvusFieldPayload = "payload"

	milvusTextMaxLen = 65535
	milvusMaxNameLen = 255

	// milvusSearchEf 是 HNSW 搜索的最小 ef，Milvus 要求 ef >= topk。
	milvusSearchEf = 64
)

var milvusNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// milvusAdmin 是建表与加载所需的 Milvus 调用。
type milvusAdmin interface {
	CreateCollection(ctx context.Context, name string, schema *entity.Schema, shards int32) error
	HasVectorIndex(ctx context.Context, name string) (bool, error)
	CreateVectorIndex(ctx context.Context, name string) error
	Load(ctx context.Context, name string, replicas int) error
}

type sdkAdmin struct {
	client *milvus.Client
}

func (a sdkAdmin) CreateCollection(ctx context.Context, name string, schema *entity.Schema, shards int32) error {
	return a.client.RawClient().CreateCollection(ctx,
		milvusclient.NewCreateCollectionOption(name, schema).WithShardNum(shards))
}

func (a sdkAdmin) HasVectorIndex(ctx context.Context, name string) (bool, error) {
	names, err := a.client.RawClient().ListIndexes(ctx,
		milvusclient.NewListIndexOption(name).WithFieldName(milvusFieldVector))
	if err != nil {
		if isMilvusIndexMissing(err) {
			return false, nil
		}
		return false, err
	}
	return len(names) > 0, nil
}

func (a sdkAdmin) CreateVectorIndex(ctx context.Context, name string) error {
	idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
	task, err := a.client.RawClient().CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, milvusFieldVector, idx))
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (a sdkAdmin) Load(ctx context.Context, name string, replicas int) error {
	task, err := a.client.RawClient().LoadCollection(ctx,
		milvusclient.NewLoadCollectionOption(name).WithReplica(replicas))
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

// MilvusIndex 基于 Milvus 实现 VectorIndex。
type MilvusIndex struct {
	client     *milvus.Client
	admin      milvusAdmin
	collection *CollectionConfig

	// ready 记录已建索引并加载的集合。
	ready   sync.Map
	readyMu sync.Mutex
}

// NewMilvusIndex creates a Milvus-backed index over an established connection.
func NewMilvusIndex(client *milvus.Client, collection *CollectionConfig) *MilvusIndex {
	return &MilvusIndex{
		client:     client,
		admin:      sdkAdmin{client: client},
		collection: collection.complete(),
	}
}

// Name returns the backend name.
func (m *MilvusIndex) Name() string {
	return "milvus"
}

// CheckName accepts letters, digits and '_' with a non-digit first character.
func (m *MilvusIndex) CheckName(name string) error {
	if len(name) > milvusMaxNameLen || !milvusNameRegex.MatchString(name) {
		return fmt.Errorf("%w: milvus names must start with a letter or '_' and contain only letters, digits and '_' (at most %d characters)",
			ErrInvalidCollectionName, milvusMaxNameLen)
	}
	return nil
}

// Exists lists collections and matches name exactly.
func (m *MilvusIndex) Exists(ctx context.Context, name string) Existence {
	names, err := m.client.RawClient().ListCollections(ctx, milvusclient.NewListCollectionOption())
	if err != nil {
		logger.Warnw("failed to list milvus collections", "collection", name, "error", err.Error())
		return ExistenceUnknown
	}
	for _, n := range names {
		if n == name {
			return ExistenceExists
		}
	}
	return ExistenceAbsent
}

func (m *MilvusIndex) schema(name string) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("linkvault chunks").
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(milvusFieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(false)).
		WithField(entity.NewField().
			WithName(milvusFieldVector).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(m.collection.Dimension))).
		WithField(entity.NewField().
			WithName(milvusFieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(milvusTextMaxLen)).
		WithField(entity.NewField().
			WithName(milvusFieldPayload).
			WithDataType(entity.FieldTypeJSON))
}

// Create creates the collection with an HNSW cosine index and loads it.
// An existing collection is not recreated, but a missing index or an
// unloaded collection left by an interrupted Create is repaired.
func (m *MilvusIndex) Create(ctx context.Context, name string) error {
	err := m.admin.CreateCollection(ctx, name, m.schema(name), int32(m.collection.Segments))
	switch {
	case err == nil:
		logger.Infow("created milvus collection", "collection", name, "dimension", m.collection.Dimension)
	case isMilvusConflict(err):
		logger.Infow("milvus collection already exists", "collection", name)
	default:
		return fmt.Errorf("failed to create milvus collection %s: %w", name, err)
	}
	return m.ensureReady(ctx, name)
}

// ensureReady 确保集合已建向量索引并已加载。失败不记忆，下次调用重试。
func (m *MilvusIndex) ensureReady(ctx context.Context, name string) error {
	if _, ok := m.ready.Load(name); ok {
		return nil
	}
	m.readyMu.Lock()
	defer m.readyMu.Unlock()
	if _, ok := m.ready.Load(name); ok {
		return nil
	}

	indexed, err := m.admin.HasVectorIndex(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to describe milvus index on %s: %w", name, err)
	}
	if !indexed {
		logger.Infow("creating milvus vector index", "collection", name)
		if err := m.admin.CreateVectorIndex(ctx, name); err != nil {
			return fmt.Errorf("failed to create milvus index on %s: %w", name, err)
		}
	}
	if err := m.admin.Load(ctx, name, m.collection.Replication); err != nil {
		return fmt.Errorf("failed to load milvus collection %s: %w", name, err)
	}
	m.ready.Store(name, struct{}{})
	return nil
}

func isMilvusConflict(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exist")
}

func isMilvusIndexMissing(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index not found") || strings.Contains(msg, "index not exist")
}

// hnswEf 返回不小于 limit 的 ef。
func hnswEf(limit int) int {
	return max(milvusSearchEf, limit)
}

func milvusSearchOption(name string, vector []float32, limit int) milvusclient.SearchOption {
	return milvusclient.NewSearchOption(name, limit, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(milvusFieldVector).
		WithAnnParam(index.NewHNSWAnnParam(hnswEf(limit))).
		WithOutputFields(milvusFieldText, milvusFieldPayload)
}

// pointColumns 将一个点转换为列式写入数据。
func pointColumns(point Point, dim int) ([]column.Column, error) {
	payload, err := json.Marshal(point.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return []column.Column{
		column.NewColumnInt64(milvusFieldID, []int64{int64(point.ID)}),
		column.NewColumnFloatVector(milvusFieldVector, dim, [][]float32{point.Vector}),
		column.NewColumnVarChar(milvusFieldText, []string{point.Payload.Text}),
		column.NewColumnJSONBytes(milvusFieldPayload, [][]byte{payload}),
	}, nil
}

// Upsert inserts or replaces one point.
func (m *MilvusIndex) Upsert(ctx context.Context, name string, point Point) error {
	if err := checkDimension(point.Vector, m.collection.Dimension); err != nil {
		return err
	}

	cols, err := pointColumns(point, m.collection.Dimension)
	if err != nil {
		return err
	}
	if err := m.ensureReady(ctx, name); err != nil {
		return err
	}
	if _, err := m.client.RawClient().Upsert(ctx, milvusclient.NewColumnBasedInsertOption(name, cols...)); err != nil {
		return fmt.Errorf("milvus upsert on %s failed: %w", name, err)
	}
	return nil
}

// Search returns up to limit hits ordered by descending cosine similarity.
func (m *MilvusIndex) Search(ctx context.Context, name string, vector []float32, limit int) ([]SearchHit, error) {
	if err := checkDimension(vector, m.collection.Dimension); err != nil {
		return nil, err
	}
	if err := m.ensureReady(ctx, name); err != nil {
		return nil, err
	}

	results, err := m.client.RawClient().Search(ctx, milvusSearchOption(name, vector, limit))
	if err != nil {
		return nil, fmt.Errorf("milvus search on %s failed: %w", name, err)
	}
	if len(results) == 0 {
		return []SearchHit{}, nil
	}

	rs := results[0]
	hits := make([]SearchHit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := SearchHit{Score: rs.Scores[i]}
		if ids, ok := rs.IDs.(*column.ColumnInt64); ok {
			hit.ID = uint64(ids.Data()[i])
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnJSONBytes:
				if col.Name() == milvusFieldPayload {
					if err := json.Unmarshal(col.Data()[i], &hit.Payload); err != nil {
						logger.Warnw("failed to decode milvus payload", "collection", name, "error", err.Error())
					}
				}
			case *column.ColumnVarChar:
				if col.Name() == milvusFieldText && hit.Payload.Text == "" {
					hit.Payload.Text = col.Data()[i]
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close closes the underlying Milvus connection.
func (m *MilvusIndex) Close() error {
	return m.client.Close(context.Background())
}

var (
	_ VectorIndex = (*MilvusIndex)(nil)
	_ NameChecker = (*MilvusIndex)(nil)
)
