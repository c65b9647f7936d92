package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"chat-dispatch/internal/domain"
)

const (
	// DefaultBaseURL points at Deepseek, which speaks the Chat Completions protocol.
	DefaultBaseURL = "https://api.deepseek.com/v1"

	defaultTemperature = 0.7
	defaultTimeout     = 30 * time.Second

	// unreadableBody replaces an error body that could not be read.
	unreadableBody = "Failed to read error response body"

	contentPath = "choices.0.message.content"
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// UpstreamBody returns the raw upstream error text.
func (e *HTTPStatusError) UpstreamBody() string {
	return e.Body
}

// Client is a focused OpenAI-compatible client for chat completions.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	apiKey      string
	temperature float64
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client that authenticates with a bearer token.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		apiKey:      apiKey,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolvedHTTPClient returns the configured HTTP client, or a default with a 30s timeout
// if none was set (e.g. in tests that nil out the field).
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// chatURL accepts either an API base ("https://api.deepseek.com/v1") or the full
// completions endpoint.
func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Chat sends messages to the completions endpoint and returns the first choice's
// content. A success body without that field yields "" and no error.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("openai: model must not be empty")
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	if !gjson.ValidBytes(raw) {
		return "", errors.New("openai: decode response: body is not valid JSON")
	}
	return extractContent(raw), nil
}

// extractContent returns the first choice's content, or "" when the path is
// missing or not a string.
func extractContent(raw []byte) string {
	v := gjson.GetBytes(raw, contentPath)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		text := unreadableBody
		if buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20)); err == nil {
			text = string(buf)
		}
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       text,
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
