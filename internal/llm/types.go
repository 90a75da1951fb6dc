package llm

import (
	"context"
	"encoding/json"
)

// Message represents one turn in a chat-completions-style conversation.
//
// Invariant: an assistant message with len(ToolCalls) > 0 MUST be followed,
// in order, by one Role=tool message per call id (matched via ToolCallID)
// before the next assistant message. ContextBuilder and the agent loop are
// responsible for preserving that ordering; this type itself does not
// enforce it.
type Message struct {
	Role             string     `json:"role"` // "system", "user", "assistant", "tool"
	Content          string     `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"` // native thinking output (e.g. DeepSeek-R1)
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`        // assistant only
	ToolCallID       string     `json:"tool_call_id,omitempty"`      // tool only, correlates to a ToolCall.ID
	Name             string     `json:"name,omitempty"`              // tool only, the tool name that was called
}

// ToolCall is a single function-call request produced by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition describes one callable tool presented to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Usage is the provider-normalized token accounting for one Complete call.
type Usage struct {
	PromptTokens      int
	CompletionTokens  int
	CachedInputTokens int // 0 when the provider does not report prompt caching
}

// Reply is the normalized result of one model turn.
type Reply struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Backend is a single chat-completions-style operation: send messages and
// an optional tool list, get back one Reply. Any OpenAI-compatible endpoint
// (litellm, Ollama, Azure, vLLM, etc.) can implement this by wrapping its
// own SDK client.
type Backend interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (Reply, error)
	Name() string
}

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)
