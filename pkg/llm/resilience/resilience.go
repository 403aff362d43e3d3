// Package resilience 提供 LLM 调用的韧性模式：重试、熔断器。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kart-io/logger"
	"github.com/sony/gobreaker"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxRetries 首次调用之外的最大重试次数，0 表示不重试。
	MaxRetries int
	// InitialDelay 初始延迟时间。
	InitialDelay time.Duration
	// MaxDelay 最大延迟时间。
	MaxDelay time.Duration
	// Multiplier 延迟倍增因子（指数退避）。
	Multiplier float64
	// RetryableErrors 可重试的错误判断函数。
	RetryableErrors func(error) bool
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      0,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: IsRetryableError,
	}
}

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// Name 熔断器名称，用于日志。
	Name string
	// MaxFailures 连续失败多少次后打开熔断器。
	MaxFailures uint32
	// Timeout 熔断器打开后进入半开状态前的等待时间。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的最大调用次数。
	HalfOpenMaxCalls uint32
	// OnStateChange 状态变化回调，状态取值 closed, half-open, open。
	OnStateChange func(name, from, to string)
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "llm",
		MaxFailures:      5,
		Timeout:          60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// ErrCircuitBreakerOpen 熔断器打开错误。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker 基于 gobreaker 的熔断器。
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreaker 创建熔断器。
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	maxFailures := config.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenMaxCalls,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if config.OnStateChange != nil {
				config.OnStateChange(name, from.String(), to.String())
			}
		},
		// 调用方取消不计为供应商故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute 通过熔断器执行函数。
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitBreakerOpen, c.cb.Name())
	}
	return err
}

// State 返回当前状态（closed, half-open, open）。
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

// Stats 获取熔断器统计信息。
func (c *CircuitBreaker) Stats() map[string]interface{} {
	counts := c.cb.Counts()
	return map[string]interface{}{
		"state":                 c.cb.State().String(),
		"requests":              counts.Requests,
		"total_failures":        counts.TotalFailures,
		"consecutive_failures":  counts.ConsecutiveFailures,
		"consecutive_successes": counts.ConsecutiveSuccesses,
	}
}

// RetryWithBackoff 使用指数退避重试函数。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = IsRetryableError
	}

	eb := backoff.NewExponentialBackOff()
	if config.InitialDelay > 0 {
		eb.InitialInterval = config.InitialDelay
	}
	if config.MaxDelay > 0 {
		eb.MaxInterval = config.MaxDelay
	}
	if config.Multiplier > 0 {
		eb.Multiplier = config.Multiplier
	}
	eb.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		logger.Debugw("retryable llm error", "attempt", attempt, "error", err.Error())
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(max(config.MaxRetries, 0))), ctx)
	return backoff.Retry(op, b)
}

// RetryWithCircuitBreaker 结合重试和熔断器执行函数。
// 熔断器为 nil 时只做重试。
func RetryWithCircuitBreaker(
	ctx context.Context,
	retryConfig *RetryConfig,
	cb *CircuitBreaker,
	fn func() error,
) error {
	if cb == nil {
		return RetryWithBackoff(ctx, retryConfig, fn)
	}
	return RetryWithBackoff(ctx, retryConfig, func() error {
		return cb.Execute(fn)
	})
}
