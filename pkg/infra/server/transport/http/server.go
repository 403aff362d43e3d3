// Package http provides the gin-based HTTP server.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/pkg/infra/middleware"
	"github.com/kart-io/linkvault/pkg/infra/middleware/observability"
	"github.com/kart-io/linkvault/pkg/infra/middleware/resilience"
	mwopts "github.com/kart-io/linkvault/pkg/options/middleware"
	options "github.com/kart-io/linkvault/pkg/options/server/http"
	apierrors "github.com/kart-io/linkvault/pkg/utils/errors"
	"github.com/kart-io/linkvault/pkg/utils/response"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine
	server *http.Server
	addr   net.Addr
}

// NewServer creates a new HTTP server with the given options.
// Middleware is applied at construction so every later route group inherits it.
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) *Server {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}
	if middlewareOpts == nil {
		middlewareOpts = mwopts.NewOptions()
	}

	gin.SetMode(gin.ReleaseMode)

	// 不使用 gin.Default()，中间件按固定顺序注册
	engine := gin.New()
	engine.Use(
		resilience.RecoveryWithOptions(*middlewareOpts.Recovery, nil),
		middleware.RequestIDWithOptions(*middlewareOpts.RequestID),
		observability.LoggerWithOptions(*middlewareOpts.Logger),
	)
	if serverOpts.MaxBodyBytes > 0 {
		engine.Use(resilience.BodyLimit(serverOpts.MaxBodyBytes))
	}
	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteMissing)
	})

	return &Server{
		opts:   serverOpts,
		engine: engine,
	}
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound listener address once started.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()

	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server exited", "addr", s.addr.String(), "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
