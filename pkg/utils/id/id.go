// Package id provides unique ID generation utilities.
//
// Strategies:
//   - UUID: random v4, used for opaque identifiers in logs
//   - ULID: lexicographically sortable, used for request IDs
//   - Snowflake: 64-bit time/node/sequence IDs, used for vector point IDs
//
// Usage:
//
//	rid := id.NewULID()
//	gen, _ := id.NewSnowflakeGenerator(id.WithNodeID(3))
//	block := gen.ReserveBlock()
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewUUID returns a random UUID v4 string.
func NewUUID() string {
	return uuid.NewString()
}

// NewULID returns a monotonic ULID string.
func NewULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}

// IsULID reports whether s parses as a ULID.
func IsULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
