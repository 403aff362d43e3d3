package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
)

// RequestIDOptions configures request id propagation.
type RequestIDOptions struct {
	// Header is the request/response header carrying the id.
	Header string `json:"header" mapstructure:"header"`

	// GeneratorType is "ulid" (default), "uuid" or "hex".
	GeneratorType string `json:"generator-type" mapstructure:"generator-type"`
}

// NewRequestIDOptions creates default request id options.
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{
		Header:        "X-Request-ID",
		GeneratorType: "ulid",
	}
}

// AddFlags adds flags for request id options.
func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Header, options.Join(prefixes...)+"middleware.request-id.header", o.Header, "Request ID header name.")
	fs.StringVar(&o.GeneratorType, options.Join(prefixes...)+"middleware.request-id.generator", o.GeneratorType, "ID generator type: ulid, uuid or hex.")
}

// Validate validates request id options.
func (o *RequestIDOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Header == "" {
		errs = append(errs, errors.New("request ID header name is required"))
	}
	switch o.GeneratorType {
	case "", "ulid", "uuid", "hex":
	default:
		errs = append(errs, errors.New("invalid generator type: must be 'ulid', 'uuid' or 'hex'"))
	}
	return errs
}
