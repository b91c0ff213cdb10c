// Package summarizer asks a language model to turn a batch of entries into
// a digest
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fluxrelay/models"

	log "github.com/sirupsen/logrus"
)

// API dialects
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
)

// APIError is returned for every non-2xx response from the model endpoint
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("summarizer API error: status %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	URL         string
	APIKey      string
	Model       string
	Version     string
	Description string
	Prompt      string
	MaxTokens   int
	// API is the request dialect, Anthropic when empty
	API string
}

type Client struct {
	cfg  Config
	http *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.API == "" {
		cfg.API = Anthropic
	}
	if cfg.API != Anthropic && cfg.API != OpenAI {
		return nil, fmt.Errorf("unknown model api %q", cfg.API)
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SystemPrompt is the description and the prompt separated by a blank line
func (c *Client) SystemPrompt() string {
	if c.cfg.Description == "" {
		return c.cfg.Prompt
	}
	return c.cfg.Description + "\n\n" + c.cfg.Prompt
}

// Summarize sends the batch as JSON and returns the raw text of the answer
func (c *Client) Summarize(ctx context.Context, batch []models.SummaryInput) (string, error) {
	news, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("marshal summary batch: %w", err)
	}

	var (
		payload interface{}
		decode  func([]byte) (string, error)
	)
	switch c.cfg.API {
	case OpenAI:
		payload = openAIRequest{
			Model:     c.cfg.Model,
			MaxTokens: c.cfg.MaxTokens,
			Messages: []message{
				{Role: "system", Content: c.SystemPrompt()},
				{Role: "user", Content: string(news)},
			},
		}
		decode = decodeOpenAI
	default:
		payload = anthropicRequest{
			Model:     c.cfg.Model,
			MaxTokens: c.cfg.MaxTokens,
			System:    c.SystemPrompt(),
			Messages:  []message{{Role: "user", Content: string(news)}},
		}
		decode = decodeAnthropic
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal summarizer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build summarizer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch c.cfg.API {
	case OpenAI:
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	default:
		req.Header.Set("x-api-key", c.cfg.APIKey)
		req.Header.Set("anthropic-version", c.cfg.Version)
	}

	log.WithFields(log.Fields{
		"api":     c.cfg.API,
		"model":   c.cfg.Model,
		"entries": len(batch),
	}).Debug("Requesting digest")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarizer request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read summarizer response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	text, err := decode(raw)
	if err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"length": len(text),
	}).Debug("Digest received")

	return text, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type openAIRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Messages  []message `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func decodeAnthropic(raw []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode summarizer response: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("summarizer response has no text content")
	}
	return sb.String(), nil
}

func decodeOpenAI(raw []byte) (string, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode summarizer response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summarizer response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
