package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
)

// LoggerOptions configures HTTP access logging.
type LoggerOptions struct {
	// SkipPaths are not logged.
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewLoggerOptions creates default access log options.
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{
		SkipPaths: []string{"/health", "/version"},
	}
}

// AddFlags adds flags for access log options.
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.logger.skip-paths", o.SkipPaths, "Paths to skip logging.")
}

// Validate validates access log options.
func (o *LoggerOptions) Validate() []error {
	return nil
}
