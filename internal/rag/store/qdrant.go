package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/pkg/utils/httpclient"
)

// QdrantConfig Qdrant REST 客户端配置。
type QdrantConfig struct {
	// URL Qdrant REST 地址，例如 http://localhost:6333。
	URL string
	// APIKey 非空时以 api-key 头发送。
	APIKey string
	// Timeout 单次请求超时。
	Timeout time.Duration
}

// QdrantIndex 通过 Qdrant REST API 实现 VectorIndex。
type QdrantIndex struct {
	baseURL    string
	client     *httpclient.Client
	collection *CollectionConfig
}

// NewQdrantIndex creates a Qdrant-backed index. Requests are never retried.
func NewQdrantIndex(cfg *QdrantConfig, collection *CollectionConfig, opts ...httpclient.Option) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts = append([]httpclient.Option{httpclient.WithHeader("api-key", cfg.APIKey)}, opts...)
	return &QdrantIndex{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		client:     httpclient.NewClient(timeout, 0, opts...),
		collection: collection.complete(),
	}
}

// Name returns the backend name.
func (q *QdrantIndex) Name() string {
	return "qdrant"
}

func (q *QdrantIndex) collectionURL(name string, parts ...string) string {
	u := q.baseURL + "/collections/" + url.PathEscape(name)
	if len(parts) > 0 {
		u += "/" + strings.Join(parts, "/")
	}
	return u
}

type qdrantCollectionsResponse struct {
	Result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	} `json:"result"`
}

// Exists lists collections and matches name exactly.
func (q *QdrantIndex) Exists(ctx context.Context, name string) Existence {
	var resp qdrantCollectionsResponse
	if err := q.client.SendJSON(ctx, http.MethodGet, q.baseURL+"/collections", nil, &resp); err != nil {
		logger.Warnw("failed to list qdrant collections", "collection", name, "error", err.Error())
		return ExistenceUnknown
	}
	for _, c := range resp.Result.Collections {
		if c.Name == name {
			return ExistenceExists
		}
	}
	return ExistenceAbsent
}

type qdrantCreateRequest struct {
	Vectors struct {
		Size     int    `json:"size"`
		Distance string `json:"distance"`
	} `json:"vectors"`
	OptimizersConfig struct {
		DefaultSegmentNumber int `json:"default_segment_number"`
	} `json:"optimizers_config"`
	ReplicationFactor int `json:"replication_factor"`
}

// Create creates a cosine collection. A 409 conflict is logged and swallowed.
func (q *QdrantIndex) Create(ctx context.Context, name string) error {
	var req qdrantCreateRequest
	req.Vectors.Size = q.collection.Dimension
	req.Vectors.Distance = "Cosine"
	req.OptimizersConfig.DefaultSegmentNumber = q.collection.Segments
	req.ReplicationFactor = q.collection.Replication

	err := q.client.SendJSON(ctx, http.MethodPut, q.collectionURL(name), req, nil)
	if err == nil {
		logger.Infow("created qdrant collection", "collection", name, "dimension", q.collection.Dimension)
		return nil
	}
	if isQdrantConflict(err) {
		logger.Infow("qdrant collection already exists", "collection", name)
		return nil
	}
	return fmt.Errorf("failed to create qdrant collection %s: %w", name, err)
}

func isQdrantConflict(err error) bool {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusConflict ||
		(se.StatusCode == http.StatusBadRequest && strings.Contains(se.Body, "already exists"))
}

type qdrantPoint struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Upsert writes one point and waits until it is applied.
func (q *QdrantIndex) Upsert(ctx context.Context, name string, point Point) error {
	if err := checkDimension(point.Vector, q.collection.Dimension); err != nil {
		return err
	}

	body := map[string]any{
		"points": []qdrantPoint{{ID: point.ID, Vector: point.Vector, Payload: point.Payload}},
	}
	if err := q.client.SendJSON(ctx, http.MethodPut, q.collectionURL(name, "points")+"?wait=true", body, nil); err != nil {
		return q.wrapErr("upsert", name, err)
	}
	return nil
}

type qdrantSearchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      uint64  `json:"id"`
		Score   float32 `json:"score"`
		Payload Payload `json:"payload"`
	} `json:"result"`
}

// Search returns up to limit hits with payload, best first.
func (q *QdrantIndex) Search(ctx context.Context, name string, vector []float32, limit int) ([]SearchHit, error) {
	if err := checkDimension(vector, q.collection.Dimension); err != nil {
		return nil, err
	}

	req := qdrantSearchRequest{Vector: vector, Limit: limit, WithPayload: true}
	var resp qdrantSearchResponse
	if err := q.client.SendJSON(ctx, http.MethodPost, q.collectionURL(name, "points", "search"), req, &resp); err != nil {
		return nil, q.wrapErr("search", name, err)
	}

	hits := make([]SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, SearchHit{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

func (q *QdrantIndex) wrapErr(op, name string, err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s: %w: %s", op, ErrCollectionNotFound, name)
	}
	return fmt.Errorf("qdrant %s on %s failed: %w", op, name, err)
}

// Close is a no-op; the HTTP client holds no dedicated resources.
func (q *QdrantIndex) Close() error {
	return nil
}

var _ VectorIndex = (*QdrantIndex)(nil)
