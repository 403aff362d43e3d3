// Package resilience provides panic recovery middleware.
package resilience

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/linkvault/pkg/options/middleware"
	"github.com/kart-io/linkvault/pkg/utils/errors"
	"github.com/kart-io/linkvault/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(ctx *gin.Context, err interface{}, stack []byte)

// Recovery returns a middleware that recovers from panics with default options.
func Recovery() gin.HandlerFunc {
	return RecoveryWithOptions(*mwopts.NewRecoveryOptions(), nil)
}

// RecoveryWithOptions 返回 Recovery 中间件。
// onPanic 可选，用于额外的告警逻辑；为 nil 时只记录日志并返回错误响应。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	includeStack := opts.EnableStackTrace
	if includeStack && isProductionEnvironment() {
		logger.Warn("Stack trace is enabled but running in production environment. " +
			"Stack trace will NOT be returned to clients.")
		includeStack = false
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()

				logger.Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(stack),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				if onPanic != nil {
					onPanic(c, r, stack)
				}

				if includeStack {
					response.Fail(c, errors.ErrPanic.WithMessage(fmt.Sprintf("panic: %v\n%s", r, stack)))
					return
				}
				response.Fail(c, errors.ErrPanic)
			}
		}()
		c.Next()
	}
}

// isProductionEnvironment checks APP_ENV or GO_ENV.
func isProductionEnvironment() bool {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	switch env {
	case "production", "prod", "PRODUCTION", "PROD":
		return true
	default:
		return false
	}
}
