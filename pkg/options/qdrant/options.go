// Package qdrantopts provides options for the Qdrant REST client.
package qdrantopts

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Qdrant connection configuration.
type Options struct {
	// URL is the Qdrant REST endpoint, e.g. http://localhost:6333.
	URL string `json:"url" mapstructure:"url"`

	// APIKey is sent as the api-key header when set.
	APIKey string `json:"-" mapstructure:"api-key"`

	// Timeout bounds each REST call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		URL:     "http://localhost:6333",
		Timeout: 15 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, options.Join(prefixes...)+"qdrant.url", o.URL, "Qdrant REST endpoint.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"qdrant.api-key", o.APIKey, "Qdrant API key.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"qdrant.timeout", o.Timeout, "Qdrant request timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if !strings.HasPrefix(o.URL, "http://") && !strings.HasPrefix(o.URL, "https://") {
		errs = append(errs, fmt.Errorf("qdrant url must start with http:// or https://"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("qdrant timeout must be positive"))
	}
	return errs
}
