// In file: internal/llm/client.go

// Package llm contains the AI backend clients the gateway talks to. Each client
// turns the gateway's message history and tool catalogue into one provider
// request and reports back the reply text and any tool calls it asked for.
package llm

import (
	"context"

	"github.com/dileep-u-k/tool-gateway/internal/api"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in a conversation history. ToolName is
// set on tool messages; some providers key results by name rather than id.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolName   string            `json:"name,omitempty"`
	ToolCalls  []*tools.ToolCall `json:"tool_calls,omitempty"`
}

// GenerationConfig holds the parameters that control one generation.
type GenerationConfig struct {
	// The specific model to use for the generation (e.g., "gpt-4o-mini", "gemini-1.5-flash").
	Model string
	// Controls randomness. A pointer distinguishes 0.0 from unset.
	Temperature *float32
	// The maximum number of tokens to generate in the response.
	MaxTokens int
	TopP      *float32
}

// GenerationResult holds the complete output from an LLM call.
type GenerationResult struct {
	// The generated text content from the model.
	Content string
	// Tool calls requested by the model, in the order it emitted them.
	ToolCalls []*tools.ToolCall
	// Token usage statistics for the generation request.
	Usage api.Usage
}

// =================================================================================
// LLM Client Interface
// =================================================================================

// LLMClient is the chat-completion collaborator of the gateway.
type LLMClient interface {
	// Generate performs a blocking request with the full conversation history and
	// the tools the model may call.
	Generate(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (*GenerationResult, error)
}
