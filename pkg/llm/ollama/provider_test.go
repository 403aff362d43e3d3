package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/linkvault/pkg/llm"
	"github.com/kart-io/linkvault/pkg/utils/httpclient"
	"github.com/kart-io/linkvault/pkg/utils/json"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Raw)
		assert.InDelta(t, 0.2, req.Options.Temperature, 1e-9)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: " generated", Done: true})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"name":"gpt2"},{"name":"all-minilm"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProviderEmbed(t *testing.T) {
	srv := newTestServer(t)
	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, EmbedModel: "m", ChatModel: "c", Timeout: DefaultConfig().Timeout})

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	single, err := p.EmbedSingle(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, single)
}

func TestProviderChatEchoesPrompt(t *testing.T) {
	srv := newTestServer(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	p := NewProviderWithConfig(cfg)

	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "q"},
	}, llm.GenerateOptions{MaxLength: 1024, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "sys\n\nq generated", out)
}

func TestProviderListModels(t *testing.T) {
	srv := newTestServer(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	p := NewProviderWithConfig(cfg)

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt2", "all-minilm"}, models)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	p := NewProviderWithConfig(cfg)

	_, err := p.EmbedSingle(context.Background(), "x")
	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestNumPredict(t *testing.T) {
	assert.Equal(t, 0, numPredict(0, 10))
	assert.Equal(t, 25, numPredict(50, 10))
	assert.Equal(t, 200, numPredict(1000, 200))
}
