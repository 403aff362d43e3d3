package resilience

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/pkg/utils/errors"
	"github.com/kart-io/linkvault/pkg/utils/response"
)

// BodyLimit 返回请求体大小限制中间件。
//
// Content-Length 已超限时直接返回 413；否则用 http.MaxBytesReader 限制实际读取，
// 读超限时 binding 得到 *http.MaxBytesError，由 handler 按参数错误返回。
func BodyLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		if req.ContentLength > maxSize {
			logger.Warnw("request body too large",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", maxSize,
			)
			response.Fail(c, errors.ErrRequestTooLarge)
			return
		}

		if req.Body != nil {
			req.Body = http.MaxBytesReader(c.Writer, req.Body, maxSize)
		}
		c.Next()
	}
}
