package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/linkvault/internal/rag/biz"
	"github.com/kart-io/linkvault/internal/rag/embedder"
	"github.com/kart-io/linkvault/internal/rag/fetcher"
	"github.com/kart-io/linkvault/internal/rag/handler"
	"github.com/kart-io/linkvault/internal/rag/metrics"
	"github.com/kart-io/linkvault/internal/rag/store"
	"github.com/kart-io/linkvault/pkg/infra/middleware"
	"github.com/kart-io/linkvault/pkg/infra/server"
	"github.com/kart-io/linkvault/pkg/llm"
	"github.com/kart-io/linkvault/pkg/llm/local"
	"github.com/kart-io/linkvault/pkg/utils/errors"
	"github.com/kart-io/linkvault/pkg/utils/id"
	"github.com/kart-io/linkvault/pkg/utils/json"
	"github.com/kart-io/linkvault/pkg/utils/response"
	"github.com/kart-io/linkvault/pkg/utils/validator"
)

const pageText = `Go is an open source programming language that makes it simple to build secure, scalable systems.
Goroutines are lightweight threads managed by the Go runtime scheduler.
Channels let goroutines communicate by sending typed values to each other.
short line`

func init() {
	gin.SetMode(gin.TestMode)
	validator.Install()
}

func newMicrolink(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("url"), "empty") {
			_, _ = w.Write([]byte(`{"status":"success","data":{}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"status": "success",
			"data":   map[string]any{"title": "Go", "content": map[string]any{"text": pageText}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newEngine(t *testing.T) (*gin.Engine, *store.MemoryIndex) {
	t.Helper()

	provider, err := local.NewProvider(map[string]any{"dimension": 64})
	require.NoError(t, err)

	m := metrics.NewRAGMetrics()
	index := store.NewMemoryIndex(&store.CollectionConfig{Dimension: 64})
	emb := embedder.New(func(context.Context) (llm.EmbeddingProvider, error) {
		return provider, nil
	}, embedder.WithDimension(64))
	gen, err := id.NewSnowflakeGenerator(id.WithNodeID(1))
	require.NoError(t, err)

	svc := biz.NewRAGService(&biz.Dependencies{
		Fetcher:   fetcher.NewMicrolink(&fetcher.Config{BaseURL: newMicrolink(t).URL, MinLineLength: 30}),
		Index:     index,
		Embedder:  emb,
		Retriever: biz.NewRetriever(index, emb, m),
		Composer:  biz.NewComposer(provider, nil, m),
		IDs:       gen,
		Metrics:   m,
	}, biz.DefaultServiceConfig())

	health := middleware.NewHealthManager("test")
	health.RegisterChecker("embedder", func(ctx context.Context) error {
		_, err := emb.Embed(ctx, "health")
		return err
	})

	engine := gin.New()
	Install(engine, &Routes{Handler: handler.NewRAGHandler(svc), Health: health, Metrics: m})
	return engine, index
}

func call(t *testing.T, engine http.Handler, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp response.Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func TestRoutes_IngestSearchAsk(t *testing.T) {
	engine, index := newEngine(t)

	w, resp := call(t, engine, http.MethodPost, "/api/v1/ingest",
		`{"url":"https://go.dev/doc","collectionName":"golang"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, resp.Code)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, `Ingested 1 chunks into "golang"`, data["message"])
	assert.Equal(t, 1, index.Count("golang"))

	w, resp = call(t, engine, http.MethodPost, "/api/v1/search",
		`{"query":"goroutines and channels","collectionName":"golang"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Goroutines are lightweight threads")

	w, resp = call(t, engine, http.MethodPost, "/api/v1/ask",
		`{"question":"What are goroutines?","collectionName":"golang","charLimit":200}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data, ok = resp.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["answer"])
	assert.Equal(t, "What are goroutines?", data["question"])
}

func TestRoutes_Errors(t *testing.T) {
	engine, _ := newEngine(t)

	w, resp := call(t, engine, http.MethodPost, "/api/v1/ingest", `{"collectionName":"golang"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrRAGMissingURL.Code, resp.Code)

	w, resp = call(t, engine, http.MethodPost, "/api/v1/ingest", `{"url":"https://empty.example","collectionName":"golang"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrRAGNoContentExtracted.Code, resp.Code)

	w, resp = call(t, engine, http.MethodPost, "/api/v1/ask", `{"question":"anything","collectionName":"nothing-here"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrRAGAskFailed.Code, resp.Code)
}

func TestRoutes_Operational(t *testing.T) {
	engine, _ := newEngine(t)

	w, resp := call(t, engine, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, resp.Data, "vector_backend")

	w, _ = call(t, engine, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), "linkvault_rag_ingests_total 0")

	w, _ = call(t, engine, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"embedder":{"status":"UP"}`)

	w, _ = call(t, engine, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, engine, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "git_version")
}

func TestRegister_UsesManagerEngine(t *testing.T) {
	mgr := server.NewManager()
	require.NoError(t, Register(mgr, &Routes{Handler: handler.NewRAGHandler(nil)}))

	paths := map[string]bool{}
	for _, r := range mgr.HTTPServer().Engine().Routes() {
		paths[r.Method+" "+r.Path] = true
	}
	assert.True(t, paths["POST /api/v1/ingest"])
	assert.True(t, paths["POST /api/v1/ingest/batch"])
	assert.True(t, paths["POST /api/v1/search"])
	assert.True(t, paths["POST /api/v1/ask"])
	assert.True(t, paths["GET /api/v1/stats"])
	assert.True(t, paths["GET /version"])
	assert.False(t, paths["GET /metrics"], "metrics route needs a metrics source")
}
