package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeAndParseCode(t *testing.T) {
	code := MakeCode(ServiceRAG, CategoryResource, 2)
	assert.Equal(t, 2004002, code)

	service, category, seq := ParseCode(code)
	assert.Equal(t, ServiceRAG, service)
	assert.Equal(t, CategoryResource, category)
	assert.Equal(t, 2, seq)
}

func TestRAGErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		err    *Errno
		status int
	}{
		{"missing url", ErrRAGMissingURL, http.StatusBadRequest},
		{"missing collection", ErrRAGMissingCollectionName, http.StatusBadRequest},
		{"missing query", ErrRAGMissingQuery, http.StatusBadRequest},
		{"missing question", ErrRAGMissingQuestion, http.StatusBadRequest},
		{"invalid collection", ErrRAGInvalidCollectionName, http.StatusBadRequest},
		{"no content", ErrRAGNoContentExtracted, http.StatusNotFound},
		{"no context", ErrRAGNoContextFound, http.StatusNotFound},
		{"ingestion", ErrRAGIngestionFailed, http.StatusInternalServerError},
		{"search", ErrRAGSearchFailed, http.StatusInternalServerError},
		{"ask", ErrRAGAskFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			registered, ok := Lookup(tt.err.Code)
			assert.True(t, ok)
			assert.Same(t, tt.err, registered)
		})
	}
}

func TestWithCauseKeepsIdentity(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := ErrRAGSearchFailed.WithCause(cause)

	assert.True(t, stderrors.Is(err, ErrRAGSearchFailed))
	assert.False(t, stderrors.Is(err, ErrRAGAskFailed))
	assert.Same(t, cause, err.Cause())
	assert.Nil(t, ErrRAGSearchFailed.Cause(), "the registered value must not be mutated")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("ingest: %w", ErrRAGMissingURL)
	assert.Equal(t, ErrRAGMissingURL.Code, FromError(wrapped).Code)
	assert.Equal(t, ErrRAGMissingURL.Code, GetCode(wrapped))

	plain := stderrors.New("boom")
	assert.Equal(t, ErrInternal.Code, FromError(plain).Code)
	assert.Equal(t, -1, GetCode(plain))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrRAGAskFailed.Code, http.StatusInternalServerError, "dup", ""))
	})
}

func TestMessageLanguage(t *testing.T) {
	assert.Equal(t, "No context found", ErrRAGNoContextFound.Message("en"))
	assert.Equal(t, "未找到相关上下文", ErrRAGNoContextFound.Message("zh-CN"))
}
