// Package options contains flags and options for initializing the linkvault server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	ragsvc "github.com/kart-io/linkvault/internal/rag"
	"github.com/kart-io/linkvault/pkg/infra/app"
	cacheopts "github.com/kart-io/linkvault/pkg/options/cache"
	llmopts "github.com/kart-io/linkvault/pkg/options/llm"
	logopts "github.com/kart-io/linkvault/pkg/options/logger"
	milvusopts "github.com/kart-io/linkvault/pkg/options/milvus"
	qdrantopts "github.com/kart-io/linkvault/pkg/options/qdrant"
	ragopts "github.com/kart-io/linkvault/pkg/options/rag"
	serveropts "github.com/kart-io/linkvault/pkg/options/server"
)

var _ app.CliOptions = (*ServerOptions)(nil)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// ServerOptions contains HTTP server, middleware and shutdown configuration.
	ServerOptions *serveropts.Options `json:"server" mapstructure:"server"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// RAGOptions contains chunking, retrieval and answer configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// QdrantOptions contains the Qdrant endpoint, used when rag.vector-backend=qdrant.
	QdrantOptions *qdrantopts.Options `json:"qdrant" mapstructure:"qdrant"`

	// MilvusOptions contains Milvus configuration, used when rag.vector-backend=milvus.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// CacheOptions contains the redis result cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		ServerOptions:    serveropts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		RAGOptions:       ragopts.NewOptions(),
		QdrantOptions:    qdrantopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss app.NamedFlagSets) {
	o.ServerOptions.AddFlags(fss.FlagSet("server"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.QdrantOptions.AddFlags(fss.FlagSet("qdrant"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
// Backend options are only checked for the selected vector backend.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.ServerOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	switch o.RAGOptions.VectorBackend {
	case ragopts.BackendQdrant:
		errs = append(errs, o.QdrantOptions.Validate()...)
	case ragopts.BackendMilvus:
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, o.CacheOptions.Validate()...)
	for _, e := range o.EmbeddingOptions.Validate() {
		errs = append(errs, fmt.Errorf("embedding: %w", e))
	}
	for _, e := range o.ChatOptions.Validate() {
		errs = append(errs, fmt.Errorf("chat: %w", e))
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		ServerOptions:    o.ServerOptions,
		LogOptions:       o.LogOptions,
		RAGOptions:       o.RAGOptions,
		QdrantOptions:    o.QdrantOptions,
		MilvusOptions:    o.MilvusOptions,
		CacheOptions:     o.CacheOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
	}, nil
}
