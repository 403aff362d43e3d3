package local

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"
)

// DefaultDimension 与 all-MiniLM-L6-v2 的输出维度一致。
const DefaultDimension = 384

// Embedder 以特征哈希生成确定性的向量。
// 词项和相邻词对哈希到固定维度，带符号累加后做 L2 归一化。
type Embedder struct {
	dim int
}

// NewEmbedder 创建本地 Embedder。
func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

// Dimension 返回向量维度。
func (e *Embedder) Dimension() int {
	return e.dim
}

// Embed 为多个文本生成向量嵌入。
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (e *Embedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) vector(text string) []float32 {
	acc := make([]float64, e.dim)
	toks := tokens(text)
	if len(toks) == 0 {
		// 无词项时退化为整串哈希，保证非零向量
		e.add(acc, text, 1)
	}

	tf := make(map[string]int, len(toks))
	for i, tok := range toks {
		tf[tok]++
		if i > 0 {
			tf[toks[i-1]+" "+tok]++
		}
	}
	for term, n := range tf {
		e.add(acc, term, 1+math.Log(float64(n)))
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dim)
	for i, v := range acc {
		if norm > 0 {
			vec[i] = float32(v / norm)
		}
	}
	return vec
}

func (e *Embedder) add(acc []float64, term string, weight float64) {
	h := xxhash.Sum64String(term)
	idx := int(h % uint64(e.dim))
	if h&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}
