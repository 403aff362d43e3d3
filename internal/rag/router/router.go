// Package router registers the linkvault HTTP routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/internal/rag/handler"
	"github.com/kart-io/linkvault/internal/rag/metrics"
	"github.com/kart-io/linkvault/pkg/infra/middleware"
	"github.com/kart-io/linkvault/pkg/infra/server"
)

// Prometheus 指标名前缀，例如 linkvault_rag_ingests_total。
const (
	metricsNamespace = "linkvault"
	metricsSubsystem = "rag"
)

// Routes 路由依赖。Health 和 Metrics 为空时不注册对应端点。
type Routes struct {
	Handler *handler.RAGHandler
	Health  *middleware.HealthManager
	Metrics *metrics.RAGMetrics
}

// Register registers the linkvault routes on the manager's HTTP server.
func Register(mgr *server.Manager, routes *Routes) error {
	logger.Info("Registering linkvault routes...")

	httpServer := mgr.HTTPServer()
	if httpServer == nil {
		logger.Warn("HTTP server is not configured, no routes registered")
		return nil
	}

	Install(httpServer.Engine(), routes)
	logger.Info("HTTP routes registered")
	return nil
}

// Install registers the routes on engine.
func Install(engine *gin.Engine, routes *Routes) {
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/ingest", routes.Handler.Ingest)
		v1.POST("/ingest/batch", routes.Handler.IngestBatch)
		v1.POST("/search", routes.Handler.Search)
		v1.POST("/ask", routes.Handler.Ask)
		v1.GET("/stats", routes.Handler.Stats)
	}

	if routes.Health != nil {
		engine.GET("/health", routes.Health.Handler())
		engine.GET("/live", middleware.LivenessHandler)
	}
	if routes.Metrics != nil {
		m := routes.Metrics
		engine.GET("/metrics", func(c *gin.Context) {
			c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
				[]byte(m.Export(metricsNamespace, metricsSubsystem)))
		})
	}
	engine.GET("/version", middleware.VersionHandler(false))
}
