// Package server provides the server manager that drives HTTP servers and
// auxiliary runnables through a unified lifecycle.
package server

import "context"

// Lifecycle defines the lifecycle interface for servers.
type Lifecycle interface {
	// Start starts the server.
	Start(ctx context.Context) error
	// Stop stops the server gracefully.
	Stop(ctx context.Context) error
}

// Runnable represents a component that can be started and stopped.
type Runnable interface {
	Lifecycle
	// Name returns the server name for identification.
	Name() string
}

// Closer is a dependency released after all servers have stopped.
type Closer interface {
	Close() error
}
