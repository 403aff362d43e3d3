package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/kart-io/linkvault/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/linkvault/pkg/options/middleware"
	"github.com/kart-io/linkvault/pkg/utils/id"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_Generates(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		seen = common.GetRequestID(c.Request.Context())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.NotEmpty(t, seen)
	assert.True(t, id.IsULID(seen))
	assert.Equal(t, seen, w.Header().Get(common.HeaderXRequestID))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		seen = common.GetRequestID(c.Request.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(common.HeaderXRequestID, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(common.HeaderXRequestID))
}

func TestRequestID_HexGenerator(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDWithOptions(mwopts.RequestIDOptions{Header: "X-Trace", GeneratorType: "hex"}))
	r.GET("/x", func(*gin.Context) {})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Len(t, w.Header().Get("X-Trace"), 32)
}

func TestRequestID_UUIDGenerator(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDWithOptions(mwopts.RequestIDOptions{Header: common.HeaderXRequestID, GeneratorType: "uuid"}))
	r.GET("/x", func(*gin.Context) {})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	rid := w.Header().Get(common.HeaderXRequestID)
	assert.Len(t, rid, 36)
	assert.False(t, id.IsULID(rid))
}
