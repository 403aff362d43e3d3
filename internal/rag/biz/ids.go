package biz

import (
	"github.com/kart-io/linkvault/pkg/utils/id"
)

// BlockReserver 按毫秒预留整块 ID。
type BlockReserver interface {
	ReserveBlock() int64
}

// PointIDs is a request-scoped point id sequence. The n-th id of a block is
// base|n; a fresh block is reserved every id.BlockSize ids. Not safe for
// concurrent use.
type PointIDs struct {
	source BlockReserver
	base   int64
	next   int64
}

// NewPointIDs 创建点 ID 序列，首次调用 Next 时预留第一个块。
func NewPointIDs(source BlockReserver) *PointIDs {
	return &PointIDs{source: source, next: id.BlockSize}
}

// Next returns the next point id.
func (p *PointIDs) Next() uint64 {
	if p.next >= id.BlockSize {
		p.base = p.source.ReserveBlock()
		p.next = 0
	}
	v := p.base | p.next
	p.next++
	return uint64(v)
}
