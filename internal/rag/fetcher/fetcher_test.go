package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &gotQuery
}

func newFetcher(baseURL string) *Microlink {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	return NewMicrolink(cfg)
}

func TestFetch_ContentLines(t *testing.T) {
	body := `{"status":"success","data":{"title":"T","description":"D","content":{"text":"short\n   This line is definitely longer than thirty characters.   \nnope\nAnother sufficiently long line of page text here."}}}`
	srv, gotQuery := newServer(t, http.StatusOK, body)

	blocks, err := newFetcher(srv.URL).Fetch(context.Background(), "https://example.com/a?b=1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"This line is definitely longer than thirty characters.",
		"Another sufficiently long line of page text here.",
	}, blocks)
	assert.Equal(t, "https://example.com/a?b=1", *gotQuery)
}

func TestFetch_FallsBackToDescriptionThenTitle(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"status":"success","data":{"title":"Title","description":"  A description  ","content":{"text":"tiny"}}}`)
	blocks, err := newFetcher(srv.URL).Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"A description"}, blocks)

	srv2, _ := newServer(t, http.StatusOK, `{"status":"success","data":{"title":"Only title"}}`)
	blocks, err = newFetcher(srv2.URL).Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"Only title"}, blocks)
}

func TestFetch_NoContent(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"status":"success","data":{"title":"","description":""}}`)
	_, err := newFetcher(srv.URL).Fetch(context.Background(), "https://example.com")
	assert.True(t, errors.Is(err, ErrNoContent))
}

func TestFetch_FailureStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"status":"fail","message":"invalid url"}`)
	_, err := newFetcher(srv.URL).Fetch(context.Background(), "nope")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoContent))
	assert.Contains(t, err.Error(), "invalid url")

	srv2, _ := newServer(t, http.StatusBadRequest, `{"status":"fail"}`)
	_, err = newFetcher(srv2.URL).Fetch(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestFetch_SendsAPIKey(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("x-api-key")
		_, _ = w.Write([]byte(`{"status":"success","data":{"title":"x"}}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "secret"
	_, err := NewMicrolink(cfg).Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
}

func TestExtractLines(t *testing.T) {
	assert.Empty(t, ExtractLines("", 30))
	assert.Equal(t, []string{"abcd"}, ExtractLines(" ab \n abcd ", 3))
}
