package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/archrt/architect/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Client implements llm.Backend using the OpenAI-compatible chat completions
// protocol. Works with any endpoint that speaks it (litellm, Ollama, Azure,
// vLLM, etc.).
type Client struct {
	client *openailib.Client
	config *Config
}

// GetConfig returns the client's configuration.
func (c *Client) GetConfig() *Config {
	return c.config
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientConfig := openailib.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	// Prevent indefinite hangs when the API is unresponsive. Configurable via
	// LLM_HTTP_TIMEOUT (seconds); default 300s to accommodate slow reasoning
	// models.
	httpTimeout := time.Duration(config.HTTPTimeout) * time.Second
	clientConfig.HTTPClient = &http.Client{Timeout: httpTimeout}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// NewClientFromEnv creates a client using environment variables.
func NewClientFromEnv() (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return NewClient(config)
}

// Complete sends messages (and, when non-empty, a tool list for function
// calling) and returns one normalized Reply. Transient errors (5xx,
// connection resets, rate limiting) are retried with linear backoff up to
// config.MaxRetries; permanent errors (4xx other than 429) propagate
// immediately.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (llm.Reply, error) {
	if len(messages) == 0 {
		return llm.Reply{}, fmt.Errorf("no messages to send")
	}

	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toOpenAIMessages(messages),
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if c.config.ResolveThinkingMode() == "native" {
		req.ReasoningEffort = c.config.ReasoningEffort
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	var resp openailib.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		resp, lastErr = c.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if !isRetryable(lastErr) || attempt == c.config.MaxRetries {
			break
		}
		wait := time.Duration(attempt+1) * time.Second
		log.Printf("[LLM] retry %d/%d after %v, error: %v", attempt+1, c.config.MaxRetries, wait, lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return llm.Reply{}, ctx.Err()
		}
	}
	if lastErr != nil {
		return llm.Reply{}, fmt.Errorf("LLM call failed: %w", lastErr)
	}
	if len(resp.Choices) == 0 {
		return llm.Reply{}, fmt.Errorf("no choices returned from LLM")
	}

	choice := resp.Choices[0]
	reply := llm.Reply{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage:        normalizeUsage(resp.Usage),
	}
	if len(choice.Message.ToolCalls) > 0 {
		reply.ToolCalls = make([]llm.ToolCall, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			reply.ToolCalls[i] = llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			}
		}
	}
	return reply, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return fmt.Sprintf("openai-compatible (%s)", c.config.Model)
}

func toOpenAIMessages(messages []llm.Message) []openailib.ChatCompletionMessage {
	out := make([]openailib.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		m := openailib.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == llm.RoleTool {
			m.ToolCallID = msg.ToolCallID
			m.Name = msg.Name
		}
		if msg.Role == llm.RoleAssistant && len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openailib.ToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				m.ToolCalls[j] = openailib.ToolCall{
					ID:   tc.ID,
					Type: openailib.ToolTypeFunction,
					Function: openailib.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
		}
		out[i] = m
	}
	return out
}

func toOpenAITools(tools []llm.ToolDefinition) []openailib.Tool {
	out := make([]openailib.Tool, len(tools))
	for i, t := range tools {
		out[i] = openailib.Tool{
			Type: openailib.ToolTypeFunction,
			Function: &openailib.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

func normalizeUsage(u openailib.Usage) llm.Usage {
	cached := 0
	if u.PromptTokensDetails != nil {
		cached = u.PromptTokensDetails.CachedTokens
	}
	// OpenAI's prompt_tokens includes the cached tokens; report them only
	// once, under CachedInputTokens.
	return llm.Usage{
		PromptTokens:      u.PromptTokens - cached,
		CompletionTokens:  u.CompletionTokens,
		CachedInputTokens: cached,
	}
}

// isRetryable reports whether err is a transient failure worth retrying:
// 5xx responses, 429 throttling, or a transport-level error with no status
// code at all (connection reset, timeout before a response was read).
func isRetryable(err error) bool {
	var apiErr *openailib.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openailib.RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	return false
}
