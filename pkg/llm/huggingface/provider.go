// Package huggingface 提供 HuggingFace Inference API 供应商实现。
// 默认模型与本地 transformers 管线一致：all-MiniLM-L6-v2 (384 维) 和 gpt2。
package huggingface

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/linkvault/pkg/llm"
	"github.com/kart-io/linkvault/pkg/utils/httpclient"
	"github.com/kart-io/linkvault/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey HuggingFace API Token。
	APIKey string `json:"-" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型 ID。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel 用于文本生成的模型 ID。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// WaitForModel 如果模型正在加载，是否等待。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		EmbedModel:   "sentence-transformers/all-MiniLM-L6-v2",
		ChatModel:    "gpt2",
		Timeout:      120 * time.Second,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
// 共享的 ProviderOptions 传入的模型名在 HuggingFace 上无效时回退到默认模型。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["chat_model"].(string); ok && v != "" {
		cfg.ChatModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, 0, httpclient.WithHeader("Authorization", "Bearer "+cfg.APIKey)),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

type embeddingRequest struct {
	Inputs  []string          `json:"inputs"`
	Options *inferenceOptions `json:"options,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingRequest{Inputs: texts}
	if p.config.WaitForModel {
		req.Options = &inferenceOptions{WaitForModel: true}
	}

	var raw json.RawMessage
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)
	if err := p.client.SendJSON(ctx, http.MethodPost, url, req, &raw); err != nil {
		return nil, fmt.Errorf("huggingface embed: %w", err)
	}

	embeddings, err := decodeEmbeddings(raw)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("huggingface embed: expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// decodeEmbeddings 解析 [][]float32，或对 token 级别的 [][][]float32 做均值池化。
func decodeEmbeddings(raw []byte) ([][]float32, error) {
	var embeddings [][]float32
	if err := json.Unmarshal(raw, &embeddings); err == nil {
		return embeddings, nil
	}

	var tokenEmbeddings [][][]float32
	if err := json.Unmarshal(raw, &tokenEmbeddings); err != nil {
		return nil, fmt.Errorf("huggingface embed: 解析响应失败: %w", err)
	}

	embeddings = make([][]float32, len(tokenEmbeddings))
	for i, tokens := range tokenEmbeddings {
		if len(tokens) == 0 {
			continue
		}
		pooled := make([]float32, len(tokens[0]))
		for _, token := range tokens {
			for j, v := range token {
				if j < len(pooled) {
					pooled[j] += v
				}
			}
		}
		for j := range pooled {
			pooled[j] /= float32(len(tokens))
		}
		embeddings[i] = pooled
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type generationRequest struct {
	Inputs     string            `json:"inputs"`
	Parameters generationParams  `json:"parameters"`
	Options    *inferenceOptions `json:"options,omitempty"`
}

type generationParams struct {
	MaxLength      int     `json:"max_length,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generationResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Chat 以文本生成管线补全提示词。
// 返回完整文本（包含提示词），由调用方剥离回显。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	req := generationRequest{
		Inputs: llm.PromptText(messages),
		Parameters: generationParams{
			MaxLength:      opts.MaxLength,
			Temperature:    opts.Temperature,
			DoSample:       opts.Temperature > 0,
			ReturnFullText: true,
		},
	}
	if p.config.WaitForModel {
		req.Options = &inferenceOptions{WaitForModel: true}
	}

	var responses []generationResponse
	url := fmt.Sprintf("%s/models/%s", p.config.BaseURL, p.config.ChatModel)
	if err := p.client.SendJSON(ctx, http.MethodPost, url, req, &responses); err != nil {
		return "", fmt.Errorf("huggingface generate: %w", err)
	}
	if len(responses) == 0 {
		return "", fmt.Errorf("huggingface generate: 未返回响应内容")
	}
	return responses[0].GeneratedText, nil
}
