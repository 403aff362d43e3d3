// Package metrics 提供 linkvault 服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// 熔断器状态值。
const (
	breakerClosed int32 = iota
	breakerOpen
	breakerHalfOpen
)

// RAGMetrics 入库、检索、问答的业务指标。
type RAGMetrics struct {
	// 入库
	ingestsTotal  atomic.Uint64
	ingestsErrors atomic.Uint64
	noContent     atomic.Uint64
	chunksIndexed atomic.Uint64
	batchesTotal  atomic.Uint64

	// 搜索 / 问答
	searchesTotal  atomic.Uint64
	searchesErrors atomic.Uint64
	asksTotal      atomic.Uint64
	asksErrors     atomic.Uint64
	noContext      atomic.Uint64
	rewrites       atomic.Uint64

	// 结果缓存
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// 检索
	retrievalTotal  atomic.Uint64
	retrievalErrors atomic.Uint64

	// LLM 调用
	llmCallsTotal  atomic.Uint64
	llmCallsErrors atomic.Uint64

	// 熔断器
	circuitBreakerOpens atomic.Uint64
	circuitBreakerState atomic.Int32

	durationMu        sync.Mutex
	retrievalDuration float64
	llmCallsDuration  float64
	startTime         time.Time
}

var (
	globalRAGMetrics *RAGMetrics
	ragMetricsOnce   sync.Once
)

// GetRAGMetrics 获取全局指标实例。
func GetRAGMetrics() *RAGMetrics {
	ragMetricsOnce.Do(func() {
		globalRAGMetrics = NewRAGMetrics()
	})
	return globalRAGMetrics
}

// NewRAGMetrics creates an independent collector. Tests use it to avoid the global.
func NewRAGMetrics() *RAGMetrics {
	return &RAGMetrics{startTime: time.Now()}
}

// RecordIngest 记录一次入库。chunks 为成功写入的分块数。
func (m *RAGMetrics) RecordIngest(chunks int, err error) {
	m.ingestsTotal.Add(1)
	if err != nil {
		m.ingestsErrors.Add(1)
		return
	}
	if chunks > 0 {
		m.chunksIndexed.Add(uint64(chunks))
	}
}

// RecordNoContent 记录抓取结果为空的入库。
func (m *RAGMetrics) RecordNoContent() {
	m.noContent.Add(1)
}

// RecordBatch 记录一次批量入库请求。
func (m *RAGMetrics) RecordBatch() {
	m.batchesTotal.Add(1)
}

// RecordSearch 记录一次搜索。
func (m *RAGMetrics) RecordSearch(err error) {
	m.searchesTotal.Add(1)
	if err != nil {
		m.searchesErrors.Add(1)
	}
}

// RecordAsk 记录一次问答。
func (m *RAGMetrics) RecordAsk(err error) {
	m.asksTotal.Add(1)
	if err != nil {
		m.asksErrors.Add(1)
	}
}

// RecordNoContext 记录检索结果为空的问答。
func (m *RAGMetrics) RecordNoContext() {
	m.noContext.Add(1)
}

// RecordRewrite 记录一次超长答案改写。
func (m *RAGMetrics) RecordRewrite() {
	m.rewrites.Add(1)
}

// RecordCache 记录结果缓存命中情况。
func (m *RAGMetrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
		return
	}
	m.cacheMisses.Add(1)
}

// RecordRetrieval 记录检索操作，失败时也计入耗时。
func (m *RAGMetrics) RecordRetrieval(duration time.Duration, err error) {
	m.retrievalTotal.Add(1)
	if err != nil {
		m.retrievalErrors.Add(1)
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall 记录 LLM 调用。
func (m *RAGMetrics) RecordLLMCall(duration time.Duration, err error) {
	m.llmCallsTotal.Add(1)
	if err != nil {
		m.llmCallsErrors.Add(1)
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordCircuitBreakerOpen 记录熔断器打开。
func (m *RAGMetrics) RecordCircuitBreakerOpen() {
	m.circuitBreakerOpens.Add(1)
	m.circuitBreakerState.Store(breakerOpen)
}

// RecordCircuitBreakerClosed 记录熔断器关闭。
func (m *RAGMetrics) RecordCircuitBreakerClosed() {
	m.circuitBreakerState.Store(breakerClosed)
}

// RecordCircuitBreakerHalfOpen 记录熔断器半开。
func (m *RAGMetrics) RecordCircuitBreakerHalfOpen() {
	m.circuitBreakerState.Store(breakerHalfOpen)
}

// OnBreakerStateChange 适配 resilience.CircuitBreakerConfig.OnStateChange。
func (m *RAGMetrics) OnBreakerStateChange(_, _, to string) {
	switch to {
	case "open":
		m.RecordCircuitBreakerOpen()
	case "half-open":
		m.RecordCircuitBreakerHalfOpen()
	case "closed":
		m.RecordCircuitBreakerClosed()
	}
}

func (m *RAGMetrics) durations() (retrieval, llm float64) {
	m.durationMu.Lock()
	defer m.durationMu.Unlock()
	return m.retrievalDuration, m.llmCallsDuration
}

func (m *RAGMetrics) uptime() float64 {
	m.durationMu.Lock()
	defer m.durationMu.Unlock()
	return time.Since(m.startTime).Seconds()
}

func (m *RAGMetrics) cacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func breakerStateName(state int32) string {
	switch state {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

type sample struct {
	name  string
	help  string
	kind  string
	value string
}

func counter(name, help string, v uint64) sample {
	return sample{name: name, help: help, kind: "counter", value: fmt.Sprintf("%d", v)}
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}
	retrievalDuration, llmDuration := m.durations()

	samples := []sample{
		counter("ingests_total", "Total number of ingest requests.", m.ingestsTotal.Load()),
		counter("ingests_errors_total", "Number of failed ingests.", m.ingestsErrors.Load()),
		counter("ingests_no_content_total", "Number of ingests with no extractable content.", m.noContent.Load()),
		counter("chunks_indexed_total", "Total chunks written to the vector index.", m.chunksIndexed.Load()),
		counter("ingest_batches_total", "Total number of batch ingest requests.", m.batchesTotal.Load()),
		counter("searches_total", "Total number of searches.", m.searchesTotal.Load()),
		counter("searches_errors_total", "Number of failed searches.", m.searchesErrors.Load()),
		counter("asks_total", "Total number of questions.", m.asksTotal.Load()),
		counter("asks_errors_total", "Number of failed questions.", m.asksErrors.Load()),
		counter("asks_no_context_total", "Number of questions with no retrieved context.", m.noContext.Load()),
		counter("answer_rewrites_total", "Number of over-length answer rewrites.", m.rewrites.Load()),
		counter("cache_hits_total", "Number of result cache hits.", m.cacheHits.Load()),
		counter("cache_misses_total", "Number of result cache misses.", m.cacheMisses.Load()),
		{name: "cache_hit_rate", help: "Cache hit rate (0-1).", kind: "gauge", value: fmt.Sprintf("%.4f", m.cacheHitRate())},
		counter("retrieval_total", "Total number of retrievals.", m.retrievalTotal.Load()),
		{name: "retrieval_duration_seconds_total", help: "Total retrieval duration.", kind: "counter", value: fmt.Sprintf("%.6f", retrievalDuration)},
		counter("retrieval_errors_total", "Number of retrieval errors.", m.retrievalErrors.Load()),
		counter("llm_calls_total", "Total number of LLM calls.", m.llmCallsTotal.Load()),
		{name: "llm_calls_duration_seconds_total", help: "Total LLM call duration.", kind: "counter", value: fmt.Sprintf("%.6f", llmDuration)},
		counter("llm_calls_errors_total", "Number of LLM call errors.", m.llmCallsErrors.Load()),
		counter("circuit_breaker_opens_total", "Number of circuit breaker opens.", m.circuitBreakerOpens.Load()),
		{name: "circuit_breaker_state", help: "Circuit breaker state (0=closed, 1=open, 2=half-open).", kind: "gauge", value: fmt.Sprintf("%d", m.circuitBreakerState.Load())},
		{name: "uptime_seconds", help: "Service uptime in seconds.", kind: "gauge", value: fmt.Sprintf("%.2f", m.uptime())},
	}

	var sb strings.Builder
	for _, s := range samples {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", prefix, s.name, s.help)
		fmt.Fprintf(&sb, "# TYPE %s_%s %s\n", prefix, s.name, s.kind)
		fmt.Fprintf(&sb, "%s_%s %s\n\n", prefix, s.name, s.value)
	}
	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *RAGMetrics) Stats() map[string]interface{} {
	retrievalDuration, llmDuration := m.durations()

	retrievalTotal := m.retrievalTotal.Load()
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	llmTotal := m.llmCallsTotal.Load()
	avgLLMDuration := 0.0
	if llmTotal > 0 {
		avgLLMDuration = llmDuration / float64(llmTotal)
	}

	return map[string]interface{}{
		"ingest": map[string]interface{}{
			"total":          m.ingestsTotal.Load(),
			"errors":         m.ingestsErrors.Load(),
			"no_content":     m.noContent.Load(),
			"chunks_indexed": m.chunksIndexed.Load(),
			"batches":        m.batchesTotal.Load(),
		},
		"search": map[string]interface{}{
			"total":  m.searchesTotal.Load(),
			"errors": m.searchesErrors.Load(),
		},
		"ask": map[string]interface{}{
			"total":      m.asksTotal.Load(),
			"errors":     m.asksErrors.Load(),
			"no_context": m.noContext.Load(),
			"rewrites":   m.rewrites.Load(),
		},
		"cache": map[string]interface{}{
			"hits":     m.cacheHits.Load(),
			"misses":   m.cacheMisses.Load(),
			"hit_rate": m.cacheHitRate(),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              m.retrievalErrors.Load(),
		},
		"llm": map[string]interface{}{
			"calls_total":         llmTotal,
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLMDuration,
			"errors":              m.llmCallsErrors.Load(),
		},
		"circuit_breaker": map[string]interface{}{
			"state": breakerStateName(m.circuitBreakerState.Load()),
			"opens": m.circuitBreakerOpens.Load(),
		},
		"uptime_seconds": m.uptime(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *RAGMetrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.ingestsTotal, &m.ingestsErrors, &m.noContent, &m.chunksIndexed, &m.batchesTotal,
		&m.searchesTotal, &m.searchesErrors, &m.asksTotal, &m.asksErrors, &m.noContext, &m.rewrites,
		&m.cacheHits, &m.cacheMisses, &m.retrievalTotal, &m.retrievalErrors,
		&m.llmCallsTotal, &m.llmCallsErrors, &m.circuitBreakerOpens,
	} {
		c.Store(0)
	}
	m.circuitBreakerState.Store(breakerClosed)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
