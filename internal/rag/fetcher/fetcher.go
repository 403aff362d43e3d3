// Package fetcher 通过 Microlink API 抓取网页正文。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/linkvault/pkg/utils/httpclient"
)

// ErrNoContent is returned when a page yields no usable text.
var ErrNoContent = errors.New("no content returned")

// Config 抓取配置。
type Config struct {
	// BaseURL Microlink API 地址。
	BaseURL string
	// APIKey 以 x-api-key 头发送，为空则走免费额度。
	APIKey string
	// Timeout 单次请求超时。
	Timeout time.Duration
	// MinLineLength 只保留去除首尾空白后长度大于该值的行。
	MinLineLength int
}

// DefaultConfig returns the Microlink defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "https://api.microlink.io",
		Timeout:       30 * time.Second,
		MinLineLength: 30,
	}
}

// ContentFetcher returns ordered text blocks for a URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]string, error)
}

// Microlink implements ContentFetcher over the Microlink REST API.
type Microlink struct {
	client *httpclient.Client
	config *Config
}

// NewMicrolink creates a Microlink fetcher. A nil config uses DefaultConfig.
func NewMicrolink(config *Config, opts ...httpclient.Option) *Microlink {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	opts = append([]httpclient.Option{httpclient.WithHeader("x-api-key", config.APIKey)}, opts...)
	return &Microlink{
		client: httpclient.NewClient(config.Timeout, 0, opts...),
		config: config,
	}
}

type microlinkResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     *struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// Fetch calls Microlink and extracts text blocks.
// 优先使用 content.text 的长行，其次是 description，最后是 title。
func (m *Microlink) Fetch(ctx context.Context, pageURL string) ([]string, error) {
	endpoint := strings.TrimRight(m.config.BaseURL, "/") + "/?url=" + url.QueryEscape(pageURL)

	var resp microlinkResponse
	err := m.client.SendJSON(ctx, http.MethodGet, endpoint, nil, &resp)
	if err != nil {
		var se *httpclient.StatusError
		if !errors.As(err, &se) {
			return nil, fmt.Errorf("microlink request failed: %w", err)
		}
		// Microlink 在失败时也返回 JSON 信封
		logger.Warnw("microlink returned error status", "url", pageURL, "status", se.StatusCode)
		return nil, fmt.Errorf("microlink returned status %d: %s", se.StatusCode, se.Body)
	}

	if resp.Status != "success" || resp.Data == nil {
		msg := resp.Message
		if msg == "" {
			msg = "Microlink returned no data"
		}
		return nil, errors.New(msg)
	}

	var blocks []string
	if resp.Data.Content != nil && resp.Data.Content.Text != "" {
		blocks = ExtractLines(resp.Data.Content.Text, m.config.MinLineLength)
	}
	if len(blocks) == 0 && strings.TrimSpace(resp.Data.Description) != "" {
		blocks = []string{strings.TrimSpace(resp.Data.Description)}
	}
	if len(blocks) == 0 && strings.TrimSpace(resp.Data.Title) != "" {
		blocks = []string{strings.TrimSpace(resp.Data.Title)}
	}
	if len(blocks) == 0 {
		return nil, ErrNoContent
	}

	logger.Debugw("fetched content", "url", pageURL, "blocks", len(blocks))
	return blocks, nil
}

// ExtractLines splits text on newlines and keeps trimmed lines longer than minLen.
func ExtractLines(text string, minLen int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) > minLen {
			lines = append(lines, line)
		}
	}
	return lines
}

var _ ContentFetcher = (*Microlink)(nil)
