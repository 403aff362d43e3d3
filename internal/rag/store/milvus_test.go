package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/linkvault/pkg/utils/json"
)

func TestPointColumns(t *testing.T) {
	p := Point{ID: 7, Vector: []float32{0.1, 0.2, 0.3}, Payload: Payload{Text: "chunk", Title: "t", ChunkIndex: 1}}
	cols, err := pointColumns(p, 3)
	require.NoError(t, err)
	require.Len(t, cols, 4)

	ids, ok := cols[0].(*column.ColumnInt64)
	require.True(t, ok)
	assert.Equal(t, milvusFieldID, ids.Name())
	assert.Equal(t, []int64{7}, ids.Data())

	text, ok := cols[2].(*column.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, []string{"chunk"}, text.Data())

	payload, ok := cols[3].(*column.ColumnJSONBytes)
	require.True(t, ok)
	var got Payload
	require.NoError(t, json.Unmarshal(payload.Data()[0], &got))
	assert.Equal(t, p.Payload, got)
}

func TestIsMilvusConflict(t *testing.T) {
	assert.True(t, isMilvusConflict(errors.New("collection already exists[collection=links]")))
	assert.True(t, isMilvusConflict(errors.New("Collection Already Exist")))
	assert.False(t, isMilvusConflict(errors.New("connection refused")))
}

type fakeMilvusAdmin struct {
	createErr   error
	indexed     bool
	indexErr    error
	loadErr     error
	creates     int
	indexBuilds int
	loads       int
}

func (f *fakeMilvusAdmin) CreateCollection(_ context.Context, _ string, _ *entity.Schema, _ int32) error {
	f.creates++
	return f.createErr
}

func (f *fakeMilvusAdmin) HasVectorIndex(context.Context, string) (bool, error) {
	return f.indexed, nil
}

func (f *fakeMilvusAdmin) CreateVectorIndex(context.Context, string) error {
	f.indexBuilds++
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed = true
	return nil
}

func (f *fakeMilvusAdmin) Load(context.Context, string, int) error {
	f.loads++
	return f.loadErr
}

func newFakeMilvusIndex(admin milvusAdmin) *MilvusIndex {
	return &MilvusIndex{admin: admin, collection: (&CollectionConfig{Dimension: 3}).complete()}
}

func TestMilvusCreate_New(t *testing.T) {
	admin := &fakeMilvusAdmin{}
	m := newFakeMilvusIndex(admin)

	require.NoError(t, m.Create(context.Background(), "links"))
	assert.Equal(t, 1, admin.creates)
	assert.Equal(t, 1, admin.indexBuilds)
	assert.Equal(t, 1, admin.loads)
}

func TestMilvusCreate_ConflictRepairsMissingIndex(t *testing.T) {
	admin := &fakeMilvusAdmin{createErr: errors.New("collection already exists[collection=links]")}
	m := newFakeMilvusIndex(admin)

	require.NoError(t, m.Create(context.Background(), "links"))
	assert.Equal(t, 1, admin.indexBuilds)
	assert.Equal(t, 1, admin.loads)
}

func TestMilvusCreate_ConflictWithIndexOnlyLoads(t *testing.T) {
	admin := &fakeMilvusAdmin{createErr: errors.New("collection already exists"), indexed: true}
	m := newFakeMilvusIndex(admin)

	require.NoError(t, m.Create(context.Background(), "links"))
	assert.Equal(t, 0, admin.indexBuilds)
	assert.Equal(t, 1, admin.loads)
}

func TestMilvusCreate_IndexFailureRetried(t *testing.T) {
	admin := &fakeMilvusAdmin{indexErr: errors.New("index build timeout")}
	m := newFakeMilvusIndex(admin)
	ctx := context.Background()

	err := m.Create(ctx, "links")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index build timeout")
	assert.Equal(t, 0, admin.loads)

	// 第二次 Create 命中已存在的集合，补建索引并加载。
	admin.createErr = errors.New("collection already exists")
	admin.indexErr = nil
	require.NoError(t, m.Create(ctx, "links"))
	assert.Equal(t, 2, admin.indexBuilds)
	assert.Equal(t, 1, admin.loads)

	// 就绪状态被记住。
	require.NoError(t, m.ensureReady(ctx, "links"))
	assert.Equal(t, 1, admin.loads)
}

func TestMilvusCreate_OtherError(t *testing.T) {
	admin := &fakeMilvusAdmin{createErr: errors.New("connection refused")}
	m := newFakeMilvusIndex(admin)

	err := m.Create(context.Background(), "links")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, admin.indexBuilds)
}

func TestMilvusEnsureReady_LoadFailureNotRemembered(t *testing.T) {
	admin := &fakeMilvusAdmin{indexed: true, loadErr: errors.New("no query node")}
	m := newFakeMilvusIndex(admin)
	ctx := context.Background()

	require.Error(t, m.ensureReady(ctx, "links"))
	admin.loadErr = nil
	require.NoError(t, m.ensureReady(ctx, "links"))
	assert.Equal(t, 2, admin.loads)
}

func TestIsMilvusIndexMissing(t *testing.T) {
	assert.True(t, isMilvusIndexMissing(errors.New("index not found[collection=links]")))
	assert.True(t, isMilvusIndexMissing(errors.New("Index Not Exist")))
	assert.False(t, isMilvusIndexMissing(errors.New("collection not found[collection=links]")))
}

func searchParams(t *testing.T, limit int) map[string]string {
	t.Helper()
	req, err := milvusSearchOption("links", []float32{0.1, 0.2, 0.3}, limit).Request()
	require.NoError(t, err)
	params := make(map[string]string, len(req.GetSearchParams()))
	for _, kv := range req.GetSearchParams() {
		params[kv.GetKey()] = kv.GetValue()
	}
	return params
}

func TestMilvusSearchOption_EfCoversLimit(t *testing.T) {
	tests := []struct {
		limit  int
		wantEf int
	}{
		{limit: 5, wantEf: 64},
		{limit: 64, wantEf: 64},
		{limit: 100, wantEf: 100},
	}
	for _, tt := range tests {
		params := searchParams(t, tt.limit)
		assert.Equal(t, strconv.Itoa(tt.limit), params["topk"])
		assert.NotContains(t, params, "ef")

		var ann struct {
			Ef int `json:"ef"`
		}
		require.NoError(t, json.Unmarshal([]byte(params["params"]), &ann))
		assert.Equal(t, tt.wantEf, ann.Ef, "limit %d", tt.limit)
		assert.GreaterOrEqual(t, ann.Ef, tt.limit)
	}
}

func TestMilvusCheckName(t *testing.T) {
	m := newFakeMilvusIndex(&fakeMilvusAdmin{})
	for _, name := range []string{"links", "_links", "my_links_2", strings.Repeat("a", 255)} {
		assert.NoError(t, m.CheckName(name), name)
	}
	for _, name := range []string{"my-links", "My Links", "2links", "links.v2", strings.Repeat("a", 256)} {
		assert.ErrorIs(t, m.CheckName(name), ErrInvalidCollectionName, name)
	}
}
