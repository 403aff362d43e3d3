package biz

import (
	"github.com/kart-io/linkvault/internal/rag/store"
)

// IngestRequest 单个链接入库请求。
type IngestRequest struct {
	URL            string
	CollectionName string
	Title          string
	Tags           []string
}

// IngestResult 入库结果。
type IngestResult struct {
	Collection     string   `json:"collection"`
	ChunksIngested int      `json:"chunks"`
	Blocks         []string `json:"blocks"`
}

// BatchIngestRequest 批量入库请求，每个 URL 独立入库。
type BatchIngestRequest struct {
	URLs           []string
	CollectionName string
	Title          string
	Tags           []string
}

// BatchItemResult 批量入库中单个 URL 的结果。
type BatchItemResult struct {
	URL    string `json:"url"`
	Chunks int    `json:"chunks"`
	Code   int    `json:"code"`
	Error  string `json:"error,omitempty"`
}

// BatchIngestResult 批量入库结果，顺序与请求一致。
type BatchIngestResult struct {
	Collection string            `json:"collection"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
}

// SearchRequest 相似度搜索请求。
type SearchRequest struct {
	Query          string
	CollectionName string
	Limit          int
}

// SearchResult 搜索结果。
type SearchResult struct {
	Query string            `json:"query"`
	Hits  []store.SearchHit `json:"hits"`
}

// AskRequest 问答请求。
type AskRequest struct {
	Question       string
	CollectionName string
	K              int
	CharLimit      int
}

// Source 答案引用的最相关分块。
type Source struct {
	ID    uint64  `json:"id"`
	Score float32 `json:"score"`
	Text  string  `json:"text"`
}

// AskResult 问答结果。
type AskResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   Source `json:"source"`
}
