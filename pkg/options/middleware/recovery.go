package middleware

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
)

// RecoveryOptions configures panic recovery.
type RecoveryOptions struct {
	// EnableStackTrace appends the stack to the client message outside production.
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions creates default recovery options.
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{}
}

// AddFlags adds flags for recovery options.
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"middleware.recovery.enable-stack-trace", o.EnableStackTrace,
		"Return panic stack traces to clients (ignored in production).")
}
