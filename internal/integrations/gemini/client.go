// Package gemini calls the Gemini generateContent endpoint with a single
// text prompt.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

	defaultTimeout = 30 * time.Second
	unreadableBody = "Failed to read error response body"
	textPath       = "candidates.0.content.parts.0.text"
)

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// HTTPStatusError captures non-2xx upstream responses. URL never includes the
// API key.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) UpstreamBody() string {
	return e.Body
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	apiKey     string
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSpace(endpoint)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client that passes apiKey as the "key" query parameter.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	c := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(c.endpoint); err != nil {
		return nil, fmt.Errorf("gemini: parse endpoint: %w", err)
	}
	return c, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("gemini: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// GenerateContent sends prompt as a single user turn and returns the first
// candidate's first text part. A success body without that field yields "".
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	target, err := c.requestURL()
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", redactURLError(err))
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		text := unreadableBody
		if buf, readErr := io.ReadAll(io.LimitReader(res.Body, 1<<20)); readErr == nil {
			text = string(buf)
		}
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: c.endpoint, Body: text}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gemini: read response body: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return "", errors.New("gemini: decode response: body is not valid JSON")
	}
	v := gjson.GetBytes(raw, textPath)
	if v.Type != gjson.String {
		return "", nil
	}
	return v.Str, nil
}

// redactURLError strips the query string (which carries the key) from
// transport errors before they reach logs or responses.
func redactURLError(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
		u.RawQuery = ""
		urlErr.URL = u.String()
	}
	return err
}
