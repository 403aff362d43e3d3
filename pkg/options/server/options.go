// Package server provides server manager configuration options.
package server

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
	mwopts "github.com/kart-io/linkvault/pkg/options/middleware"
	httpopts "github.com/kart-io/linkvault/pkg/options/server/http"
)

var _ options.IOptions = (*Options)(nil)

// Options contains the server manager configuration.
type Options struct {
	HTTP            *httpopts.Options `json:"http" mapstructure:"http"`
	Middleware      *mwopts.Options   `json:"middleware" mapstructure:"middleware"`
	ShutdownTimeout time.Duration     `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// Option is a function that configures Options.
type Option func(*Options)

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		HTTP:            httpopts.NewOptions(),
		Middleware:      mwopts.NewOptions(),
		ShutdownTimeout: 30 * time.Second,
	}
}

// WithHTTPOptions sets the HTTP server options.
func WithHTTPOptions(opts *httpopts.Options) Option {
	return func(o *Options) { o.HTTP = opts }
}

// WithMiddleware sets the middleware options.
func WithMiddleware(opts *mwopts.Options) Option {
	return func(o *Options) { o.Middleware = opts }
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) { o.ShutdownTimeout = d }
}

// AddFlags adds flags for server options to the specified FlagSet.
// Flags are nested under "server.", e.g. --server.http.addr.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	nested := append(append([]string{}, prefixes...), "server")
	o.HTTP.AddFlags(fs, nested...)
	o.Middleware.AddFlags(fs, nested...)
	fs.DurationVar(&o.ShutdownTimeout, options.Join(nested...)+"shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
}

// Validate validates the server options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	errs := o.HTTP.Validate()
	errs = append(errs, o.Middleware.Validate()...)
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown-timeout must be positive"))
	}
	return errs
}
