package errors

// RAG 服务错误码 (服务代码 20)
// - 01 请求参数: 400
// - 04 资源不存在: 404
// - 07 上游服务失败: 500

var (
	ErrRAGInvalidRequest        = NewRequestErr(ServiceRAG, 1, "Invalid request parameters", "请求参数无效")
	ErrRAGMissingURL            = NewRequestErr(ServiceRAG, 2, "Missing `url` in request body", "缺少 url 参数")
	ErrRAGMissingCollectionName = NewRequestErr(ServiceRAG, 3, "Missing `collectionName` in request body", "缺少 collectionName 参数")
	ErrRAGMissingQuery          = NewRequestErr(ServiceRAG, 4, "Missing `query` in request body", "缺少 query 参数")
	ErrRAGMissingQuestion       = NewRequestErr(ServiceRAG, 5, "Missing `question` in request body", "缺少 question 参数")
	ErrRAGInvalidCollectionName = NewRequestErr(ServiceRAG, 6, "Invalid `collectionName` for the vector backend", "collectionName 不符合向量库命名规则")

	ErrRAGNoContentExtracted = NewResourceErr(ServiceRAG, 1, "No content extracted from that URL", "未能从该 URL 提取内容")
	ErrRAGNoContextFound     = NewResourceErr(ServiceRAG, 2, "No context found", "未找到相关上下文")

	ErrRAGIngestionFailed  = NewInternalErr(ServiceRAG, 1, "Ingestion failed", "内容导入失败")
	ErrRAGSearchFailed     = NewInternalErr(ServiceRAG, 2, "Search failed", "搜索失败")
	ErrRAGAskFailed        = NewInternalErr(ServiceRAG, 3, "Ask failed", "问答失败")
	ErrRAGGenerationFailed = NewInternalErr(ServiceRAG, 4, "Generation failed", "答案生成失败")
	ErrRAGModelUnavailable = NewInternalErr(ServiceRAG, 5, "Embedding model unavailable", "向量模型不可用")
)
