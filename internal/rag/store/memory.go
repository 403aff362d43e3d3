package store

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/kart-io/logger"
)

// MemoryIndex 是进程内的向量索引，暴力计算余弦相似度。
// 用于测试和本地运行。
type MemoryIndex struct {
	mu          sync.RWMutex
	config      *CollectionConfig
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	points map[uint64]Point
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(config *CollectionConfig) *MemoryIndex {
	return &MemoryIndex{
		config:      config.complete(),
		collections: make(map[string]*memoryCollection),
	}
}

// Name returns the backend name.
func (m *MemoryIndex) Name() string {
	return "memory"
}

// Exists reports whether the collection exists.
func (m *MemoryIndex) Exists(_ context.Context, name string) Existence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.collections[name]; ok {
		return ExistenceExists
	}
	return ExistenceAbsent
}

// Create creates the collection. An existing collection is left untouched.
func (m *MemoryIndex) Create(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		logger.Infow("collection already exists", "backend", m.Name(), "collection", name)
		return nil
	}
	m.collections[name] = &memoryCollection{points: make(map[uint64]Point)}
	return nil
}

// Upsert stores a copy of the point, replacing any point with the same ID.
func (m *MemoryIndex) Upsert(_ context.Context, name string, point Point) error {
	if err := checkDimension(point.Vector, m.config.Dimension); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	point.Vector = slices.Clone(point.Vector)
	point.Payload.Tags = slices.Clone(point.Payload.Tags)
	c.points[point.ID] = point
	return nil
}

// Search ranks all points by cosine similarity. Ties are broken by ascending ID.
func (m *MemoryIndex) Search(_ context.Context, name string, vector []float32, limit int) ([]SearchHit, error) {
	if err := checkDimension(vector, m.config.Dimension); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	hits := make([]SearchHit, 0, len(c.points))
	for _, p := range c.points {
		hits = append(hits, SearchHit{ID: p.ID, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Count returns the number of points in a collection.
func (m *MemoryIndex) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

// Close is a no-op.
func (m *MemoryIndex) Close() error {
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ VectorIndex = (*MemoryIndex)(nil)
