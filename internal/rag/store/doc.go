// Package store 提供 RAG 服务的向量索引层。
//
// VectorIndex 抽象了命名集合上的存在性检查、创建、写入和相似度检索，
// 具体实现有 Qdrant（REST）、Milvus（SDK）和进程内存三种。
package store
