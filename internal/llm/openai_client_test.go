package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

func newTestOpenAIClient(t *testing.T, h http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewOpenAIClient("test-key", srv.URL+"/v1/", nil)
	require.NoError(t, err)
	c.retryDelay = time.Millisecond
	return c
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", "", nil)
	assert.Error(t, err)
}

func TestOpenAIClient_GenerateSendsToolsAndParsesToolCalls(t *testing.T) {
	var got openAIRequest
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "brave-search", "arguments": "{\"query\":\"cats\"}"}}
			]}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	search := tools.NewFunctionTool("brave_search", "web search", tools.JSONSchema{Type: "object"})
	res, err := c.Generate(context.Background(),
		[]Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "search for cats"},
		},
		&GenerationConfig{Model: "gpt-4o-mini", MaxTokens: 256},
		[]tools.Tool{search},
	)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, "auto", got.ToolChoice)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "brave_search", got.Tools[0].Function.Name)
	require.Len(t, got.Messages, 2)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "call_1", res.ToolCalls[0].ID)
	assert.Equal(t, "brave-search", res.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"cats"}`, res.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 15, res.Usage.TotalTokens)
}

func TestOpenAIClient_ReplaysToolExchange(t *testing.T) {
	var got openAIRequest
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "Found a cat."}}]}`))
	})

	call := &tools.ToolCall{ID: "call_1", Type: "function", Function: tools.ToolCallFunction{Name: "brave_search", Arguments: `{"query":"cats"}`}}
	res, err := c.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "search for cats"},
		{Role: RoleAssistant, ToolCalls: []*tools.ToolCall{call}},
		{Role: RoleTool, ToolCallID: "call_1", ToolName: "brave_search", Content: `{"results":[]}`},
	}, &GenerationConfig{Model: "m"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Found a cat.", res.Content)
	assert.Empty(t, got.ToolChoice)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "call_1", got.Messages[1].ToolCalls[0].ID)
	assert.Equal(t, "call_1", got.Messages[2].ToolCallID)
}

func TestOpenAIClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	})

	res, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, &GenerationConfig{Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)
	assert.Equal(t, int32(3), hits.Load())
}

func TestOpenAIClient_ClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	})

	_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, &GenerationConfig{Model: "m"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), hits.Load())
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	})

	_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, nil)
	assert.Error(t, err)
}
