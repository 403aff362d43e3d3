// Package local 提供无需外部服务的本地 LLM 供应商。
// Embedding 使用特征哈希，生成使用抽取式回答，适合开发和测试环境。
package local

import (
	"github.com/kart-io/linkvault/pkg/llm"
)

// ProviderName 是本地供应商的名称标识符。
const ProviderName = "local"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Provider 组合本地 Embedder 和 Generator。
type Provider struct {
	*Embedder
	Generator
}

// NewProvider 从配置 map 创建本地供应商，支持 "dimension"。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	dim := DefaultDimension
	if v, ok := configMap["dimension"].(int); ok && v > 0 {
		dim = v
	}
	return &Provider{Embedder: NewEmbedder(dim)}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}
