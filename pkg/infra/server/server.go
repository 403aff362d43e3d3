package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/linkvault/pkg/infra/server/transport/http"
	options "github.com/kart-io/linkvault/pkg/options/server"
)

// Options is re-exported from pkg/options/server for convenience.
type Options = options.Options

// Option is re-exported from pkg/options/server for convenience.
type Option = options.Option

// Re-export option functions.
var (
	NewOptions          = options.NewOptions
	WithHTTPOptions     = options.WithHTTPOptions
	WithMiddleware      = options.WithMiddleware
	WithShutdownTimeout = options.WithShutdownTimeout
)

type namedCloser struct {
	name   string
	closer Closer
}

// Manager manages the HTTP server and custom runnables with a unified lifecycle.
type Manager struct {
	opts       *options.Options
	httpServer *http.Server
	servers    []Runnable
	closers    []namedCloser
	mu         sync.Mutex
	started    bool
}

// NewManager creates a new server manager with the given options.
func NewManager(opts ...options.Option) *Manager {
	serverOpts := options.NewOptions()
	for _, opt := range opts {
		opt(serverOpts)
	}

	m := &Manager{opts: serverOpts}
	if serverOpts.HTTP != nil {
		m.httpServer = http.NewServer(serverOpts.HTTP, serverOpts.Middleware)
	}
	return m
}

// HTTPServer returns the HTTP server (may be nil if not configured).
func (m *Manager) HTTPServer() *http.Server {
	return m.httpServer
}

// AddServer adds a custom server to the manager.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// AddCloser registers a dependency closed after all servers stop, in reverse order.
func (m *Manager) AddCloser(name string, c Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, namedCloser{name: name, closer: c})
}

// Start starts all servers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	m.started = true
	m.mu.Unlock()

	if m.httpServer != nil {
		if err := m.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		logger.Infow("HTTP server started", "addr", m.opts.HTTP.Addr)
	}

	for _, server := range m.servers {
		if err := server.Start(ctx); err != nil {
			if m.httpServer != nil {
				_ = m.httpServer.Stop(ctx)
			}
			return fmt.Errorf("failed to start server %s: %w", server.Name(), err)
		}
		logger.Infow("Custom server started", "name", server.Name())
	}

	return nil
}

// Stop stops all servers gracefully, then releases registered closers.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	m.mu.Unlock()

	var errs []error

	for _, server := range m.servers {
		if err := server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", server.Name(), err))
		}
	}

	if m.httpServer != nil {
		if err := m.httpServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop HTTP server: %w", err))
		}
		logger.Info("HTTP server stopped")
	}

	for i := len(m.closers) - 1; i >= 0; i-- {
		c := m.closers[i]
		if err := c.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", c.name, err))
		}
	}

	return utilerrors.NewAggregate(errs)
}

// Run starts all servers and waits for a shutdown signal or ctx cancellation.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.opts.ShutdownTimeout)
	defer cancel()

	return m.Stop(shutdownCtx)
}
