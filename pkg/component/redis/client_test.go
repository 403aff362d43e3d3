package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisopts "github.com/kart-io/linkvault/pkg/options/redis"
)

func optionsFor(t *testing.T, mr *miniredis.Miniredis) *redisopts.Options {
	t.Helper()
	opts := redisopts.NewOptions()
	opts.Host = mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	opts.Port = port
	return opts
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := New(context.Background(), optionsFor(t, mr))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, "redis", c.Name())
	require.NoError(t, c.Client().Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	stats := c.HealthWithStats(context.Background())
	assert.True(t, stats.Healthy)
	assert.Empty(t, stats.Error)
}

func TestNewErrors(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	opts := redisopts.NewOptions()
	opts.Host = ""
	_, err = New(context.Background(), opts)
	assert.ErrorContains(t, err, "invalid redis options")

	mr := miniredis.RunT(t)
	opts = optionsFor(t, mr)
	mr.Close()
	opts.MaxRetries = -1
	_, err = New(context.Background(), opts)
	assert.ErrorContains(t, err, "failed to ping redis")
}
