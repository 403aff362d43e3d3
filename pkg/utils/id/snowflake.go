package id

import (
	"strconv"
	"sync"
	"time"
)

const (
	// 1 bit sign | 41 bits timestamp | 10 bits node | 12 bits sequence

	snowflakeEpoch     = int64(1704067200000) // 2024-01-01 00:00:00 UTC in milliseconds
	snowflakeNodeBits  = 10
	snowflakeSeqBits   = 12
	snowflakeMaxNode   = (1 << snowflakeNodeBits) - 1
	snowflakeMaxSeq    = (1 << snowflakeSeqBits) - 1
	snowflakeTimeShift = snowflakeNodeBits + snowflakeSeqBits
	snowflakeNodeShift = snowflakeSeqBits

	// BlockSize is the number of IDs in a reserved block.
	BlockSize = snowflakeMaxSeq + 1

	maxClockDriftMs = 5000
)

// SnowflakeGenerator generates Snowflake IDs.
type SnowflakeGenerator struct {
	mu       sync.Mutex
	epoch    int64
	nodeID   int64
	lastTime int64
	sequence int64
	timeFunc func() int64
}

// SnowflakeOption is a functional option for SnowflakeGenerator.
type SnowflakeOption func(*SnowflakeGenerator)

// WithNodeID sets the node ID (0-1023).
func WithNodeID(nodeID int64) SnowflakeOption {
	return func(g *SnowflakeGenerator) {
		g.nodeID = nodeID
	}
}

// WithTimeFunc sets a custom millisecond clock (for testing).
func WithTimeFunc(f func() int64) SnowflakeOption {
	return func(g *SnowflakeGenerator) {
		g.timeFunc = f
	}
}

// NewSnowflakeGenerator creates a new Snowflake ID generator.
func NewSnowflakeGenerator(opts ...SnowflakeOption) (*SnowflakeGenerator, error) {
	g := &SnowflakeGenerator{
		epoch: snowflakeEpoch,
		timeFunc: func() int64 {
			return time.Now().UnixMilli()
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.nodeID < 0 || g.nodeID > snowflakeMaxNode {
		return nil, ErrInvalidNodeID
	}
	return g, nil
}

// waitUntilAfter spins until the clock passes last. Must hold the lock.
func (g *SnowflakeGenerator) waitUntilAfter(last int64) int64 {
	now := g.timeFunc()
	for now <= last {
		time.Sleep(time.Millisecond)
		now = g.timeFunc()
	}
	return now
}

// now returns the current time, absorbing small backward drift. Must hold the lock.
// Panics on drift larger than maxClockDriftMs.
func (g *SnowflakeGenerator) now() int64 {
	now := g.timeFunc()
	if now >= g.lastTime {
		return now
	}
	if g.lastTime-now > maxClockDriftMs {
		panic(ErrClockMovedBackward)
	}
	return g.waitUntilAfter(g.lastTime - 1)
}

func (g *SnowflakeGenerator) compose(ms, seq int64) int64 {
	return ((ms - g.epoch) << snowflakeTimeShift) | (g.nodeID << snowflakeNodeShift) | seq
}

// GenerateInt64 creates a new Snowflake ID.
func (g *SnowflakeGenerator) GenerateInt64() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & snowflakeMaxSeq
		if g.sequence == 0 {
			now = g.waitUntilAfter(g.lastTime)
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now
	return g.compose(now, g.sequence)
}

// Generate creates a new Snowflake ID string.
func (g *SnowflakeGenerator) Generate() string {
	return strconv.FormatInt(g.GenerateInt64(), 10)
}

// ReserveBlock claims a whole millisecond for this node and returns its base ID.
// base|seq for seq in [0, BlockSize) is then owned by the caller; the generator
// never hands out IDs from that millisecond again.
func (g *SnowflakeGenerator) ReserveBlock() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now <= g.lastTime {
		now = g.waitUntilAfter(g.lastTime)
	}
	g.lastTime = now
	g.sequence = snowflakeMaxSeq
	return g.compose(now, 0)
}

// SnowflakeID represents a parsed Snowflake ID.
type SnowflakeID struct {
	ID        int64
	Timestamp int64 // Unix milliseconds
	NodeID    int64
	Sequence  int64
}

// ParseSnowflake extracts components from a Snowflake ID.
func ParseSnowflake(id int64) SnowflakeID {
	return SnowflakeID{
		ID:        id,
		Timestamp: (id >> snowflakeTimeShift) + snowflakeEpoch,
		NodeID:    (id >> snowflakeNodeShift) & snowflakeMaxNode,
		Sequence:  id & snowflakeMaxSeq,
	}
}

// Time returns the time when this ID was generated.
func (s SnowflakeID) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}
