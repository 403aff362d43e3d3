package huggingface

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/linkvault/pkg/llm"
	"github.com/kart-io/linkvault/pkg/utils/json"
)

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(map[string]any{})
	assert.Error(t, err)

	p, err := NewProvider(map[string]any{"api_key": "hf_x"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
}

func TestDecodeEmbeddingsMeanPooling(t *testing.T) {
	got, err := decodeEmbeddings([]byte(`[[[1,2],[3,4]]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 3}}, got)

	got, err = decodeEmbeddings([]byte(`[[0.5,0.25]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.25}}, got)

	_, err = decodeEmbeddings([]byte(`{"error":"loading"}`))
	assert.Error(t, err)
}

func TestProviderEmbedAndChat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pipeline/feature-extraction/emb", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf_x", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[[0.1,0.2,0.3]]`))
	})
	mux.HandleFunc("/models/gen", func(w http.ResponseWriter, r *http.Request) {
		var req generationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Parameters.ReturnFullText)
		assert.Equal(t, 600, req.Parameters.MaxLength)
		_, _ = w.Write([]byte(`[{"generated_text":"` + "prompt continuation" + `"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewProviderWithConfig(&Config{BaseURL: srv.URL, APIKey: "hf_x", EmbedModel: "emb", ChatModel: "gen", Timeout: time.Second})

	vec, err := p.EmbedSingle(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	out, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "prompt"}},
		llm.GenerateOptions{MaxLength: 600, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "prompt continuation", out)
}
