// Package biz 提供 linkvault 的业务逻辑层。
//
// 该包将业务逻辑拆分为以下组件：
//   - Retriever: 查询向量化后在集合内做相似度检索
//   - Composer: 基于检索上下文生成答案，超长时改写
//   - PointIDs: 单次入库请求内的点 ID 序列
//   - QueryCache: 搜索与问答结果的 Redis 缓存
//   - Service: 组合以上组件，提供 Ingest / Search / Ask 接口
package biz
