package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/internal/rag/metrics"
	"github.com/kart-io/linkvault/internal/rag/store"
	"github.com/kart-io/linkvault/pkg/llm"
)

// ErrGenerationFailed 生成调用失败。
var ErrGenerationFailed = errors.New("answer generation failed")

const (
	// DefaultCharLimit 默认答案长度上限（字符）。
	DefaultCharLimit = 500
	// DefaultContextHitCount 默认用于构建上下文的命中数。
	DefaultContextHitCount = 1

	maxGenerationLength = 1024
	generationSlack     = 100
	answerTemperature   = 0.2

	systemInstruction = "You are an expert in both AI and its applications. " +
		"First, refer to the provided context; if it doesn't cover the user's question fully, answer using your broader knowledge. " +
		"Do NOT just repeat the context verbatim. " +
		"If you truly don't know, answer like a normal ai."

	rewriteTemplate = "You are a concise assistant. Here is a detailed answer:\n\n%s\n\n" +
		"Please **rewrite** this answer in your own words, preserving **all factual information**, " +
		"and make it **no longer than %d characters**. Do not add new information or remove key points."
)

// ComposerConfig 答案生成配置。
type ComposerConfig struct {
	// MaxRewriteAttempts 答案超长时的最大改写次数，0 表示不改写。
	MaxRewriteAttempts int
}

// Composer 负责答案生成。
type Composer struct {
	chat    llm.ChatProvider
	config  *ComposerConfig
	metrics *metrics.RAGMetrics
}

// NewComposer 创建生成器实例。
func NewComposer(chat llm.ChatProvider, config *ComposerConfig, m *metrics.RAGMetrics) *Composer {
	if config == nil {
		config = &ComposerConfig{MaxRewriteAttempts: 1}
	}
	if m == nil {
		m = metrics.GetRAGMetrics()
	}
	return &Composer{
		chat:    chat,
		config:  config,
		metrics: m,
	}
}

// BuildContext joins the payload text of the first n hits with a blank line.
func BuildContext(hits []store.SearchHit, n int) string {
	if n <= 0 {
		n = DefaultContextHitCount
	}
	n = min(n, len(hits))

	parts := make([]string, 0, n)
	for _, h := range hits[:n] {
		parts = append(parts, h.Payload.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Answer generates an answer to question grounded on contextText. When the
// answer exceeds charLimit characters it is rewritten, best effort, up to
// MaxRewriteAttempts times.
func (c *Composer) Answer(ctx context.Context, question, contextText string, charLimit int) (string, error) {
	if charLimit <= 0 {
		charLimit = DefaultCharLimit
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemInstruction},
		{Role: llm.RoleSystem, Content: "Context:\n" + contextText},
		{Role: llm.RoleUser, Content: question},
	}
	answer, err := c.generate(ctx, messages)
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= c.config.MaxRewriteAttempts && utf8.RuneCountInString(answer) > charLimit; attempt++ {
		logger.Infow("answer exceeds char limit, rewriting",
			"attempt", attempt, "length", utf8.RuneCountInString(answer), "char_limit", charLimit)
		c.metrics.RecordRewrite()

		rewrite := []llm.Message{
			{Role: llm.RoleSystem, Content: fmt.Sprintf(rewriteTemplate, answer, charLimit)},
		}
		if answer, err = c.generate(ctx, rewrite); err != nil {
			return "", err
		}
	}

	return answer, nil
}

func (c *Composer) generate(ctx context.Context, messages []llm.Message) (string, error) {
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
	}

	prompt := llm.PromptText(messages)
	opts := llm.GenerateOptions{
		MaxLength:   min(utf8.RuneCountInString(prompt)+generationSlack, maxGenerationLength),
		Temperature: answerTemperature,
	}

	start := time.Now()
	raw, err := c.chat.Chat(ctx, messages, opts)
	c.metrics.RecordLLMCall(time.Since(start), err)
	if err != nil {
		logger.Errorw("generation failed", "provider", c.chat.Name(), "error", err.Error())
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	answer := postprocess(raw, prompt)
	logger.Debugw("generated answer", "provider", c.chat.Name(), "length", utf8.RuneCountInString(answer))
	return answer, nil
}

// postprocess strips an echoed prompt and keeps the first paragraph.
func postprocess(raw, prompt string) string {
	answer := strings.TrimPrefix(raw, prompt)
	answer = strings.TrimSpace(answer)
	if i := strings.Index(answer, "\n\n"); i >= 0 {
		answer = strings.TrimSpace(answer[:i])
	}
	if prompt != "" {
		answer = strings.Replace(answer, prompt, "", 1)
	}
	return strings.TrimSpace(answer)
}
