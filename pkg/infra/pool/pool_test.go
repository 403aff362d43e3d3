package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("ingest-batch", BatchPoolConfig(4))
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "ingest-batch", p.Name())
	assert.Equal(t, 4, p.Cap())
}

func TestNewPool_RejectsZeroCapacity(t *testing.T) {
	_, err := NewPool("bad", BatchPoolConfig(0))
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)
}

func TestPool_Submit(t *testing.T) {
	p, err := NewPool("submit", BatchPoolConfig(10))
	require.NoError(t, err)
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, int64(100), p.Stats().Submitted)
	assert.Eventually(t, func() bool { return p.Stats().Completed == 100 }, time.Second, 5*time.Millisecond)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p, err := NewPool("bounded", BatchPoolConfig(2))
	require.NoError(t, err)
	defer p.Release()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_PanicIsRecovered(t *testing.T) {
	recovered := make(chan any, 1)
	cfg := BatchPoolConfig(1)
	cfg.PanicHandler = func(r any) { recovered <- r }

	p, err := NewPool("panics", cfg)
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}
	assert.Equal(t, int64(1), p.Stats().Panics)
	assert.Equal(t, int64(0), p.Stats().Completed)
}

func TestPool_SubmitAfterRelease(t *testing.T) {
	p, err := NewPool("closed", BatchPoolConfig(1))
	require.NoError(t, err)
	p.Release()
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}
