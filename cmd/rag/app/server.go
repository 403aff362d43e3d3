// Package app provides the linkvault server application.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kart-io/linkvault/cmd/rag/app/options"
	"github.com/kart-io/linkvault/pkg/infra/app"
)

const (
	// Name is the name of the application.
	Name = "linkvault"

	// envPrefix 环境变量前缀，例如 LINKVAULT_RAG_CHUNK_SIZE。
	envPrefix = "LINKVAULT"

	// commandDesc is the description of the command.
	commandDesc = `LinkVault

Save links into named collections and query them later.

This server provides:
  - Link ingestion: content extraction, chunking and vector embedding
  - Semantic similarity search over a collection
  - Short answers grounded in the best matching chunk`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("LinkVault link-saving and question answering service"),
		app.WithDescription(commandDesc),
		app.WithEnvPrefix(envPrefix),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}
