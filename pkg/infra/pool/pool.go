// Package pool wraps ants with a bounded, named worker pool used for
// fan-out work such as batch link ingestion.
package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

var (
	// ErrPoolClosed 池已释放。
	ErrPoolClosed = errors.New("pool: closed")
	// ErrInvalidPoolConfig 容量非法。
	ErrInvalidPoolConfig = errors.New("pool: capacity must be positive")
	// ErrPoolOverload 非阻塞模式下池已满。
	ErrPoolOverload = errors.New("pool: overloaded")
)

// Config 池配置。
type Config struct {
	// Capacity 最大并发 worker 数。
	Capacity int
	// ExpiryDuration 空闲 worker 回收时间。
	ExpiryDuration time.Duration
	// Nonblocking 为 true 时池满直接返回 ErrPoolOverload。
	Nonblocking bool
	// PanicHandler 为空时记录日志。
	PanicHandler func(any)
}

// BatchPoolConfig 返回批量导入池配置：容量即并发上限，池满时阻塞等待。
func BatchPoolConfig(capacity int) *Config {
	return &Config{
		Capacity:       capacity,
		ExpiryDuration: 30 * time.Second,
	}
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Submitted int64
	Completed int64
	Rejected  int64
	Panics    int64
}

// Pool is a named ants pool with task counters.
type Pool struct {
	name string
	pool *ants.Pool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64

	mu     sync.Mutex
	closed atomic.Bool
}

// NewPool creates a pool. A nil config is treated as BatchPoolConfig(1).
func NewPool(name string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = BatchPoolConfig(1)
	}
	if cfg.Capacity <= 0 {
		return nil, ErrInvalidPoolConfig
	}

	p := &Pool{name: name}

	panicHandler := cfg.PanicHandler
	if panicHandler == nil {
		panicHandler = func(r any) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}
	}

	ap, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithPanicHandler(func(r any) {
			p.panics.Add(1)
			panicHandler(r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = ap

	logger.Infow("Worker pool created", "name", name, "capacity", cfg.Capacity)
	return p, nil
}

// Name 返回池名称。
func (p *Pool) Name() string { return p.name }

// Cap 返回池容量。
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running 返回正在执行的 worker 数。
func (p *Pool) Running() int { return p.pool.Running() }

// Submit schedules task. In blocking mode it waits for a free worker.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		task()
		p.completed.Add(1)
	})
	switch {
	case err == nil:
		p.submitted.Add(1)
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// Release 关闭池，已排队任务仍会执行完。重复调用无副作用。
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// Stats 返回计数快照。
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}
