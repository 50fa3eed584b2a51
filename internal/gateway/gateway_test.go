package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-gateway/internal/api"
	"github.com/dileep-u-k/tool-gateway/internal/dispatch"
	"github.com/dileep-u-k/tool-gateway/internal/llm"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
	"github.com/dileep-u-k/tool-gateway/internal/transport"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

// scriptedClient replays one reply per Generate call and records what it saw.
type scriptedClient struct {
	mu      sync.Mutex
	replies []func() (*llm.GenerationResult, error)
	seen    [][]llm.Message
	tools   [][]tools.Tool
}

func (s *scriptedClient) reply(res *llm.GenerationResult, err error) *scriptedClient {
	s.replies = append(s.replies, func() (*llm.GenerationResult, error) { return res, err })
	return s
}

func (s *scriptedClient) Generate(_ context.Context, messages []llm.Message, _ *llm.GenerationConfig, available []tools.Tool) (*llm.GenerationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, append([]llm.Message(nil), messages...))
	s.tools = append(s.tools, available)
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next()
}

func call(id, name, args string) *tools.ToolCall {
	return &tools.ToolCall{ID: id, Type: tools.ToolTypeFunction, Function: tools.ToolCallFunction{Name: name, Arguments: args}}
}

var catResults = map[string]any{"results": []any{map[string]any{"title": "Cat", "url": "https://example.com/cat"}}}

func newTestGateway(t *testing.T, client llm.LLMClient, cfg Config) *Gateway {
	t.Helper()
	reg := tools.NewRegistry(nil)
	local := transport.NewLocal(nil, nil)

	search := tools.HandlerFunc(tools.SearchDescriptor(), func(_ context.Context, args map[string]any) (any, error) {
		return catResults, nil
	})
	slow := tools.HandlerFunc(tools.ToolDescriptor{
		Name:       "slow_echo",
		Parameters: tools.JSONSchema{Type: "object"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		time.Sleep(30 * time.Millisecond)
		return "slow", nil
	})
	for _, exec := range []tools.ToolExecutor{search, slow} {
		local.Register(exec)
		require.NoError(t, reg.Register(exec.Descriptor()))
	}

	d := dispatch.New(reg, []transport.Adapter{local}, dispatch.Options{CallTimeout: time.Second})
	gw := New(client, reg, d, []transport.Adapter{local}, cfg, nil)
	gw.now = func() time.Time { return fixedNow }
	n := 0
	gw.newID = func() string {
		n++
		return fmt.Sprintf("call_gen%d", n)
	}
	return gw
}

func TestHandleChat_SearchForCats(t *testing.T) {
	client := (&scriptedClient{}).reply(&llm.GenerationResult{
		ToolCalls: []*tools.ToolCall{call("call_1", "brave-search", `{"query":"cats"}`)},
	}, nil)
	gw := newTestGateway(t, client, Config{SystemPrompt: "be brief"})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "search for cats"})

	require.Len(t, msgs, 2)
	assert.Equal(t, api.RoleAssistant, msgs[0].Role)
	assert.Empty(t, msgs[0].Content)
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[0].ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"query": "cats"}, msgs[0].ToolCalls[0].Arguments)

	assert.Equal(t, api.RoleTool, msgs[1].Role)
	assert.Equal(t, "call_1", msgs[1].ToolCallID)
	assert.Equal(t, msgs[0].CreatedAt+1, msgs[1].CreatedAt)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[1].Content), &payload))
	assert.Equal(t, catResults, payload)

	require.Len(t, client.seen, 1)
	assert.Equal(t, llm.RoleSystem, client.seen[0][0].Role)
	assert.Equal(t, "search for cats", client.seen[0][len(client.seen[0])-1].Content)
	assert.NotEmpty(t, client.tools[0], "the catalogue is offered to the backend")
}

func TestHandleChat_TextOnly(t *testing.T) {
	client := (&scriptedClient{}).reply(&llm.GenerationResult{Content: "Hello!"}, nil)
	gw := newTestGateway(t, client, Config{})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "hi"})

	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello!", msgs[0].Content)
	assert.False(t, msgs[0].Error)
	assert.Equal(t, fixedNow.UnixMilli(), msgs[0].CreatedAt)
}

func TestHandleChat_UpstreamFailureIsOneErrorMessage(t *testing.T) {
	client := (&scriptedClient{}).reply(nil, errors.New("503 from provider"))
	gw := newTestGateway(t, client, Config{})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "hi"})

	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Error)
	assert.Equal(t, api.RoleAssistant, msgs[0].Role)
	assert.Equal(t, upstreamFailureText, msgs[0].Content)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	client := &scriptedClient{}
	gw := newTestGateway(t, client, Config{})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "   "})

	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Error)
	assert.Empty(t, client.seen, "the backend is not called for an empty message")
}

func TestHandleChat_FailuresStayInRequestOrder(t *testing.T) {
	client := (&scriptedClient{}).reply(&llm.GenerationResult{
		Content: "Let me check.",
		ToolCalls: []*tools.ToolCall{
			call("a", "slow_echo", `{}`),
			call("b", "no_such_tool", `{}`),
			call("c", "brave_search", `{"query": `),
			call("d", "brave_search", `{"query":"dogs"}`),
		},
	}, nil)
	gw := newTestGateway(t, client, Config{})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "do things"})

	require.Len(t, msgs, 5)
	assert.Equal(t, "Let me check.", msgs[0].Content)
	ids := []string{msgs[1].ToolCallID, msgs[2].ToolCallID, msgs[3].ToolCallID, msgs[4].ToolCallID}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)

	assert.Equal(t, "slow", msgs[1].Content)
	assert.Contains(t, msgs[2].Content, `"error"`)
	assert.Contains(t, msgs[2].Content, "unknown tool")
	assert.Contains(t, msgs[3].Content, "invalid arguments")
	assert.Contains(t, msgs[4].Content, "Cat")

	for i := 1; i < len(msgs); i++ {
		assert.Equal(t, msgs[i-1].CreatedAt+1, msgs[i].CreatedAt)
	}
}

func TestHandleChat_ReplacesMissingAndDuplicateIDs(t *testing.T) {
	client := (&scriptedClient{}).reply(&llm.GenerationResult{
		ToolCalls: []*tools.ToolCall{
			call("dup", "brave_search", `{"query":"a"}`),
			call("dup", "brave_search", `{"query":"b"}`),
			call("", "brave_search", `{"query":"c"}`),
		},
	}, nil)
	gw := newTestGateway(t, client, Config{})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "search"})

	require.Len(t, msgs, 4)
	seen := map[string]bool{}
	for i, tc := range msgs[0].ToolCalls {
		assert.False(t, seen[tc.ID], "id %q repeated", tc.ID)
		seen[tc.ID] = true
		assert.Equal(t, tc.ID, msgs[i+1].ToolCallID)
	}
	assert.Equal(t, "dup", msgs[0].ToolCalls[0].ID)
}

func TestHandleChat_FollowUpSummary(t *testing.T) {
	client := (&scriptedClient{}).
		reply(&llm.GenerationResult{ToolCalls: []*tools.ToolCall{call("call_1", "brave_search", `{"query":"cats"}`)}}, nil).
		reply(&llm.GenerationResult{Content: "Cats are popular."}, nil)
	gw := newTestGateway(t, client, Config{SummarizeToolResults: true})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "search for cats"})

	require.Len(t, msgs, 3)
	last := msgs[2]
	assert.Equal(t, api.RoleAssistant, last.Role)
	assert.Equal(t, "Cats are popular.", last.Content)
	assert.Greater(t, last.CreatedAt, msgs[1].CreatedAt)

	require.Len(t, client.seen, 2)
	assert.Nil(t, client.tools[1], "the summary round offers no tools")
	replay := client.seen[1]
	assert.Equal(t, llm.RoleTool, replay[len(replay)-1].Role)
	assert.Equal(t, "call_1", replay[len(replay)-1].ToolCallID)
	require.Len(t, replay[len(replay)-2].ToolCalls, 1)
	assert.JSONEq(t, `{"query":"cats"}`, replay[len(replay)-2].ToolCalls[0].Function.Arguments)
}

func TestHandleChat_FollowUpFailureKeepsToolResults(t *testing.T) {
	client := (&scriptedClient{}).
		reply(&llm.GenerationResult{ToolCalls: []*tools.ToolCall{call("call_1", "brave_search", `{"query":"cats"}`)}}, nil).
		reply(nil, errors.New("timeout"))
	gw := newTestGateway(t, client, Config{SummarizeToolResults: true})

	msgs := gw.HandleChat(context.Background(), api.ChatRequest{Message: "search for cats"})

	require.Len(t, msgs, 2)
	assert.Equal(t, api.RoleTool, msgs[1].Role)
}

func TestHandleChat_ReplaysHistoryWithoutErrorNotices(t *testing.T) {
	client := (&scriptedClient{}).reply(&llm.GenerationResult{Content: "ok"}, nil)
	gw := newTestGateway(t, client, Config{})

	history := []api.Message{
		{Role: api.RoleUser, Content: "search for cats"},
		{Role: api.RoleAssistant, ToolCalls: []tools.ToolCallRequest{{ID: "call_1", ToolName: "brave_search", Arguments: map[string]any{"query": "cats"}}}},
		{Role: api.RoleTool, Content: `{"results":[]}`, ToolCallID: "call_1", ToolName: "brave_search"},
		api.ErrorMessage("Sorry", 1),
	}
	gw.HandleChat(context.Background(), api.ChatRequest{Message: "thanks", History: history})

	require.Len(t, client.seen, 1)
	sent := client.seen[0]
	require.Len(t, sent, 4)
	assert.Equal(t, llm.RoleUser, sent[0].Role)
	assert.Equal(t, "call_1", sent[1].ToolCalls[0].ID)
	assert.Equal(t, "brave_search", sent[2].ToolName)
	assert.Equal(t, "thanks", sent[3].Content)
}

func TestInvokeTool(t *testing.T) {
	gw := newTestGateway(t, &scriptedClient{}, Config{})

	ok := gw.InvokeTool(context.Background(), api.ToolInvocationRequest{Name: "Brave-Search", Params: map[string]any{"query": "cats"}})
	assert.True(t, ok.Success)
	assert.Equal(t, "brave_search", ok.Tool)
	assert.Equal(t, catResults, ok.Result)

	missing := gw.InvokeTool(context.Background(), api.ToolInvocationRequest{Name: "nope"})
	assert.False(t, missing.Success)
	assert.Contains(t, missing.Error, "unknown tool")
}

func TestListToolsAndHealth(t *testing.T) {
	gw := newTestGateway(t, &scriptedClient{}, Config{})

	infos := gw.ListTools()
	require.Len(t, infos, 2)
	assert.Equal(t, "brave_search", infos[0].Name)
	assert.Equal(t, tools.SourceLocal, infos[0].Source)

	health := gw.Health()
	require.Len(t, health, 1)
	assert.Equal(t, AdapterStatus{Name: "local", Source: tools.SourceLocal, Available: true}, health[0])
}
