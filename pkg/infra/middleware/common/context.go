// Package common provides shared utilities for middleware packages.
// It holds the request ID context helpers so response writers and middleware
// subpackages can share them without import cycles.
package common

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kart-io/linkvault/pkg/utils/id"
)

// HeaderXRequestID is the header name for request ID.
const HeaderXRequestID = "X-Request-ID"

// RequestIDKey is the context key type for request ID.
type RequestIDKey struct{}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, requestID)
}

// GeneratorFor returns the request ID generator for the configured type.
// Unknown types fall back to ULID.
func GeneratorFor(kind string) func() string {
	switch kind {
	case "hex":
		return GenerateHexRequestID
	case "uuid":
		return id.NewUUID
	default:
		return id.NewULID
	}
}

var requestIDCounter uint64

// GenerateHexRequestID generates a random 16-byte hex request ID.
// If random generation fails, it falls back to a timestamp-counter ID.
func GenerateHexRequestID() string {
	b := make([]byte, 16)
	n, err := rand.Read(b)
	if err != nil || n != 16 {
		return fmt.Sprintf("%x-%x", time.Now().Unix(), atomic.AddUint64(&requestIDCounter, 1))
	}
	return hex.EncodeToString(b)
}
