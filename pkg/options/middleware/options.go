// Package middleware holds the serializable options for the HTTP middleware chain.
package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options groups the options of every middleware the HTTP server installs.
// Middlewares run in the order recovery, request-id, logger.
type Options struct {
	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
}

// NewOptions returns options with every middleware enabled.
func NewOptions() *Options {
	return &Options{
		Recovery:  NewRecoveryOptions(),
		RequestID: NewRequestIDOptions(),
		Logger:    NewLoggerOptions(),
	}
}

// AddFlags adds flags for all middlewares.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.Recovery.AddFlags(fs, prefixes...)
	o.RequestID.AddFlags(fs, prefixes...)
	o.Logger.AddFlags(fs, prefixes...)
}

// Validate validates all middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.RequestID.Validate()...)
	errs = append(errs, o.Logger.Validate()...)
	return errs
}
