package ai

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

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"beacon/internal/config"
	"beacon/pkg/logger"
)

// ErrUpstream is returned when the model provider fails or answers with
// something unusable.
var ErrUpstream = errors.New("llm upstream error")

// Completer produces a single completion for a system and user prompt
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// LLMClient provides access to chat completion APIs
type LLMClient struct {
	httpClient *http.Client
	anthropic  *anthropic.Client
	logger     *logger.Logger
	config     LLMConfig
}

// LLMConfig holds LLM client configuration
type LLMConfig struct {
	Provider       string // openai, claude
	BaseURL        string // OpenAI-compatible endpoint root, e.g. https://router.huggingface.co/v1
	APIKey         string
	Model          string
	AnthropicKey   string
	AnthropicURL   string // override for tests
	AnthropicModel string
	Temperature    float64
	Timeout        time.Duration
}

// ConfigFrom maps the llm config section onto client settings
func ConfigFrom(cfg config.LLMConfig) LLMConfig {
	return LLMConfig{
		Provider:       cfg.Provider,
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		AnthropicKey:   cfg.AnthropicKey,
		AnthropicModel: cfg.AnthropicModel,
		Temperature:    cfg.Temperature,
		Timeout:        cfg.Timeout,
	}
}

// NewLLMClient creates a new LLM client
func NewLLMClient(cfg LLMConfig, log *logger.Logger) *LLMClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.huggingface.co/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/Meta-Llama-3-8B-Instruct"
	}
	if cfg.AnthropicModel == "" {
		cfg.AnthropicModel = "claude-3-5-haiku-latest"
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	c := &LLMClient{
		httpClient: httpClient,
		logger:     log.WithComponent("llm-client"),
		config:     cfg,
	}

	if cfg.Provider == "claude" {
		opts := []option.RequestOption{
			option.WithAPIKey(cfg.AnthropicKey),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		}
		if cfg.AnthropicURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.AnthropicURL))
		}
		client := anthropic.NewClient(opts...)
		c.anthropic = &client
	}

	return c
}

// Provider returns the configured provider name
func (c *LLMClient) Provider() string {
	return c.config.Provider
}

// Complete sends one system + user exchange and returns the reply text.
// Exactly one request is made.
func (c *LLMClient) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	start := time.Now()

	var (
		reply string
		err   error
	)
	switch c.config.Provider {
	case "claude":
		reply, err = c.callClaude(ctx, system, user, maxTokens)
	case "openai":
		reply, err = c.callOpenAI(ctx, system, user, maxTokens)
	default:
		return "", fmt.Errorf("unsupported provider: %s", c.config.Provider)
	}

	if err != nil {
		c.logger.Warn().Err(err).
			Str("provider", c.config.Provider).
			Dur("duration", time.Since(start)).
			Msg("completion failed")
		return "", err
	}

	c.logger.Debug().
		Str("provider", c.config.Provider).
		Int("reply_length", len(reply)).
		Dur("duration", time.Since(start)).
		Msg("completion finished")

	return reply, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// callOpenAI talks to any OpenAI-compatible chat completions endpoint
func (c *LLMClient) callOpenAI(ctx context.Context, system, user string, maxTokens int) (string, error) {
	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"

	reqBody := chatCompletionRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: c.config.Temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrUpstream)
	}

	return parsed.Choices[0].Message.Content, nil
}

// callClaude uses the Anthropic messages API
func (c *LLMClient) callClaude(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c.anthropic == nil {
		return "", fmt.Errorf("%w: anthropic client not configured", ErrUpstream)
	}

	message, err := c.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.AnthropicModel),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no text content", ErrUpstream)
	}

	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
