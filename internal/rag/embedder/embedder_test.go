package embedder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/linkvault/pkg/llm"
	"github.com/kart-io/linkvault/pkg/llm/local"
)

type fakeModel struct {
	dim    int
	calls  atomic.Int64
	fail   error
	closed atomic.Bool
}

func (f *fakeModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeModel) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.fail != nil {
		return nil, f.fail
	}
	v := make([]float32, f.dim)
	v[0] = float32(len(text))
	return v, nil
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Close() error {
	f.closed.Store(true)
	return nil
}

func TestEmbed_Deterministic(t *testing.T) {
	e := New(func(context.Context) (llm.EmbeddingProvider, error) {
		p, err := local.NewProvider(map[string]any{"dimension": DefaultDimension})
		return p, err
	})

	a, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDimension)
	assert.Equal(t, a, b)
}

func TestEmbed_ConcurrentFirstCallsLoadOnce(t *testing.T) {
	var loads atomic.Int64
	model := &fakeModel{dim: DefaultDimension}
	e := New(func(context.Context) (llm.EmbeddingProvider, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return model, nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Embed(context.Background(), "q")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), loads.Load())
	assert.Equal(t, int64(1), e.Loads())
	assert.True(t, e.Loaded())
}

func TestEmbed_FailedLoadIsRetried(t *testing.T) {
	var attempts atomic.Int64
	e := New(func(context.Context) (llm.EmbeddingProvider, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("download failed")
		}
		return &fakeModel{dim: DefaultDimension}, nil
	})

	_, err := e.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.Contains(t, err.Error(), "download failed")
	assert.False(t, e.Loaded())

	_, err = e.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int64(2), attempts.Load())
}

func TestEmbed_WrongDimension(t *testing.T) {
	model := &fakeModel{dim: 3}
	e := New(func(context.Context) (llm.EmbeddingProvider, error) { return model, nil })

	_, err := e.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.True(t, model.closed.Load())
	assert.False(t, e.Loaded())
}

func TestEmbed_InvocationFailure(t *testing.T) {
	model := &fakeModel{dim: DefaultDimension}
	e := New(func(context.Context) (llm.EmbeddingProvider, error) { return model, nil })
	_, err := e.Embed(context.Background(), "ok")
	require.NoError(t, err)

	model.fail = errors.New("oom")
	_, err = e.Embed(context.Background(), "boom")
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestEmbed_NilLoader(t *testing.T) {
	_, err := New(nil).Embed(context.Background(), "q")
	assert.True(t, errors.Is(err, ErrModelUnavailable))
}

func TestEmbed_Cache(t *testing.T) {
	model := &fakeModel{dim: DefaultDimension}
	e := New(func(context.Context) (llm.EmbeddingProvider, error) { return model, nil }, WithCache(8))

	_, err := e.Embed(context.Background(), "same")
	require.NoError(t, err)
	before := model.calls.Load()
	v, err := e.Embed(context.Background(), "same")
	require.NoError(t, err)
	assert.Equal(t, before, model.calls.Load())
	assert.Equal(t, float32(4), v[0])
}

func TestClose(t *testing.T) {
	model := &fakeModel{dim: 8}
	e := New(func(context.Context) (llm.EmbeddingProvider, error) { return model, nil }, WithDimension(8))
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "q")
	require.NoError(t, err)
	require.NoError(t, e.Close())
	assert.True(t, model.closed.Load())
	assert.False(t, e.Loaded())
	assert.Equal(t, 8, e.Dimension())
}
