// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/linkvault/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（local, ollama, huggingface, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数，0 表示不重试。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// CircuitBreaker 是否启用熔断。
	CircuitBreaker bool `json:"circuit-breaker" mapstructure:"circuit-breaker"`

	// FailureThreshold 连续失败多少次后熔断。
	FailureThreshold uint32 `json:"failure-threshold" mapstructure:"failure-threshold"`

	// flagName 是 AddFlags 使用的前缀，例如 "embedding" 或 "chat"。
	flagName string
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:         "local",
		BaseURL:          "http://localhost:11434",
		Timeout:          120 * time.Second,
		MaxRetries:       0,
		CircuitBreaker:   true,
		FailureThreshold: 5,
		flagName:         "llm",
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "all-minilm"
	opts.flagName = "embedding"
	return opts
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "gpt2"
	opts.flagName = "chat"
	return opts
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	name := o.flagName
	if name == "" {
		name = "llm"
	}
	p := options.Join(prefixes...) + name + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (local, ollama, huggingface, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of retries, 0 disables retry.")
	fs.BoolVar(&o.CircuitBreaker, p+"circuit-breaker", o.CircuitBreaker, "Enable the circuit breaker.")
	fs.Uint32Var(&o.FailureThreshold, p+"failure-threshold", o.FailureThreshold, "Consecutive failures before the breaker opens.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Provider != "local" && o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required for provider %q", o.Provider))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must be non-negative"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.CircuitBreaker && o.FailureThreshold == 0 {
		o.FailureThreshold = 5
	}
	return nil
}
