// Package handler provides HTTP handlers for the linkvault service.
package handler

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/internal/rag/biz"
	"github.com/kart-io/linkvault/pkg/utils/errors"
	"github.com/kart-io/linkvault/pkg/utils/response"
	"github.com/kart-io/linkvault/pkg/utils/validator"
)

// RAGHandler handles ingest, search and ask requests.
type RAGHandler struct {
	service biz.Service
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service) *RAGHandler {
	return &RAGHandler{service: service}
}

// IngestRequest 入库请求。必填字段由业务层校验，以返回各自的错误码。
type IngestRequest struct {
	URL            string   `json:"url" binding:"omitempty,httpurl"`
	CollectionName string   `json:"collectionName" binding:"omitempty,collection"`
	Title          string   `json:"title" binding:"omitempty,max=512"`
	Tags           []string `json:"tags" binding:"omitempty,max=32,dive,trimmed,nowhitespace,max=64"`
}

// IngestResponse 入库响应。
type IngestResponse struct {
	Message string   `json:"message"`
	Chunks  int      `json:"chunks"`
	Blocks  []string `json:"blocks"`
}

// BatchIngestRequest 批量入库请求。
type BatchIngestRequest struct {
	URLs           []string `json:"urls" binding:"omitempty,max=100,dive,httpurl"`
	CollectionName string   `json:"collectionName" binding:"omitempty,collection"`
	Title          string   `json:"title" binding:"omitempty,max=512"`
	Tags           []string `json:"tags" binding:"omitempty,max=32,dive,trimmed,nowhitespace,max=64"`
}

// SearchRequest 搜索请求。
type SearchRequest struct {
	Query          string `json:"query"`
	CollectionName string `json:"collectionName" binding:"omitempty,collection"`
	Limit          int    `json:"limit" binding:"omitempty,min=1,max=100"`
}

// AskRequest 问答请求。
type AskRequest struct {
	Question       string `json:"question"`
	CollectionName string `json:"collectionName" binding:"omitempty,collection"`
	K              int    `json:"k" binding:"omitempty,min=1,max=50"`
	CharLimit      int    `json:"charLimit" binding:"omitempty,min=1,max=10000"`
}

// bind decodes the JSON body and writes InvalidRequest on failure.
// An empty body binds to the zero request so that required-field errnos apply.
func bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil || stderrors.Is(err, io.EOF) {
		return true
	}

	errs := validator.Translate(err, language(c))
	response.Fail(c, errors.ErrRAGInvalidRequest.WithCause(errs))
	return false
}

func language(c *gin.Context) string {
	if strings.HasPrefix(strings.ToLower(c.GetHeader("Accept-Language")), validator.LangZH) {
		return validator.LangZH
	}
	return validator.LangEN
}

// Ingest fetches a link and stores its chunks.
func (h *RAGHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), &biz.IngestRequest{
		URL:            req.URL,
		CollectionName: req.CollectionName,
		Title:          req.Title,
		Tags:           req.Tags,
	})
	if err != nil {
		logger.Warnw("ingest failed", "url", req.URL, "collection", req.CollectionName, "error", err.Error())
		response.FailWithError(c, err)
		return
	}

	response.OK(c, IngestResponse{
		Message: fmt.Sprintf("Ingested %d chunks into %q", result.ChunksIngested, result.Collection),
		Chunks:  result.ChunksIngested,
		Blocks:  result.Blocks,
	})
}

// IngestBatch ingests several links into one collection.
func (h *RAGHandler) IngestBatch(c *gin.Context) {
	var req BatchIngestRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.service.IngestBatch(c.Request.Context(), &biz.BatchIngestRequest{
		URLs:           req.URLs,
		CollectionName: req.CollectionName,
		Title:          req.Title,
		Tags:           req.Tags,
	})
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	response.OK(c, result)
}

// Search returns the chunks most similar to the query.
func (h *RAGHandler) Search(c *gin.Context) {
	var req SearchRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.service.Search(c.Request.Context(), &biz.SearchRequest{
		Query:          req.Query,
		CollectionName: req.CollectionName,
		Limit:          req.Limit,
	})
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	response.OK(c, result)
}

// Ask answers a question from the collection.
func (h *RAGHandler) Ask(c *gin.Context) {
	var req AskRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.service.Ask(c.Request.Context(), &biz.AskRequest{
		Question:       req.Question,
		CollectionName: req.CollectionName,
		K:              req.K,
		CharLimit:      req.CharLimit,
	})
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	response.OK(c, result)
}

// Stats returns service statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	response.OK(c, stats)
}
