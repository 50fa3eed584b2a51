// In file: internal/api/types.go

// Package api holds the wire types of the gateway's HTTP endpoints. They are
// the contract the chat frontend and the interactive tool mode render from.
package api

import "github.com/dileep-u-k/tool-gateway/internal/tools"

// Role identifies who produced a message in the canonical sequence.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is one entry of the canonical conversation sequence.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// CreatedAt is Unix milliseconds, non-decreasing within one emitted sequence.
	CreatedAt int64 `json:"createdAt"`
	// ToolCalls is set only on assistant messages that triggered tools.
	ToolCalls []tools.ToolCallRequest `json:"toolCalls,omitempty"`
	// ToolCallID and ToolName are set only on tool messages.
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	// Error marks an assistant message that reports a failed turn.
	Error bool `json:"error,omitempty"`
}

// ErrorMessage builds the assistant-shaped error reply used for failed turns.
func ErrorMessage(content string, createdAt int64) Message {
	return Message{Role: RoleAssistant, Content: content, CreatedAt: createdAt, Error: true}
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message   string    `json:"message"`
	SessionID string    `json:"sessionId,omitempty"`
	History   []Message `json:"history,omitempty"`
}

// ToolInfo is one entry of the tool listing.
type ToolInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  tools.JSONSchema `json:"parameters"`
	Source      tools.Source     `json:"source"`
}

// ToolInvocationRequest is the body of POST /api/v1/tools/invoke.
type ToolInvocationRequest struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// ToolInvocationResponse reports a direct tool call.
type ToolInvocationResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Tool    string `json:"tool"`
}

// Usage tracks token consumption reported by the AI backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
