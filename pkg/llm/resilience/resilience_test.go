package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/linkvault/pkg/llm"
	"github.com/kart-io/linkvault/pkg/utils/httpclient"
)

func TestCircuitBreaker_ClosedState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	assert.Equal(t, "closed", cb.State())

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_OpenOnMaxFailures(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "test",
		MaxFailures:      3,
		Timeout:          time.Second,
		HalfOpenMaxCalls: 1,
		OnStateChange: func(_, from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})

	testErr := errors.New("test error")
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return testErr }), testErr)
	}
	assert.Equal(t, "open", cb.State())
	assert.Equal(t, []string{"closed->open"}, transitions)

	// 熔断器打开后，应拒绝新请求
	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "test",
		MaxFailures:      2,
		Timeout:          100 * time.Millisecond,
		HalfOpenMaxCalls: 1,
	})

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return testErr })
	}
	assert.Equal(t, "open", cb.State())

	time.Sleep(150 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_CancelIsNotFailure(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{Name: "test", MaxFailures: 1, Timeout: time.Second})
	_ = cb.Execute(func() error { return context.Canceled })
	assert.Equal(t, "closed", cb.State())
}

func TestRetryWithBackoff_NoRetryByDefault(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), nil, func() error {
		calls++
		return &httpclient.StatusError{StatusCode: http.StatusBadGateway}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RetriesRetryable(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	cfg := &RetryConfig{MaxRetries: 5, InitialDelay: time.Millisecond}
	calls := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return &httpclient.StatusError{StatusCode: http.StatusBadRequest}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var statusErr *httpclient.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"breaker open", ErrCircuitBreakerOpen, false},
		{"429", &httpclient.StatusError{StatusCode: 429}, true},
		{"500", &httpclient.StatusError{StatusCode: 500}, true},
		{"404", &httpclient.StatusError{StatusCode: 404}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

type flakyChat struct {
	calls int
	fail  int
}

func (f *flakyChat) Chat(_ context.Context, _ []llm.Message, opts llm.GenerateOptions) (string, error) {
	f.calls++
	if f.calls <= f.fail {
		return "", &httpclient.StatusError{StatusCode: http.StatusBadGateway}
	}
	return "ok", nil
}

func (f *flakyChat) Name() string { return "flaky" }

func TestResilientChatProvider(t *testing.T) {
	inner := &flakyChat{fail: 1}
	p := NewResilientChatProvider(inner,
		&RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond},
		DefaultCircuitBreakerConfig(),
	)

	out, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}}, llm.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "flaky", p.Name())

	stats := GetChatProviderStats(p)
	require.NotNil(t, stats)
	assert.Equal(t, "closed", stats.CircuitBreakerState)
}
