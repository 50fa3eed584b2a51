// In file: internal/gateway/gateway.go

// Package gateway orchestrates one chat turn: it asks the AI backend for a reply,
// dispatches any tool calls the reply carries, and returns the normalized
// message sequence. It also serves the tool listing and direct invocation, and
// exposes all of it over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dileep-u-k/tool-gateway/internal/api"
	"github.com/dileep-u-k/tool-gateway/internal/dispatch"
	"github.com/dileep-u-k/tool-gateway/internal/llm"
	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/normalize"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
	"github.com/dileep-u-k/tool-gateway/internal/transport"
)

const (
	upstreamFailureText = "Sorry, the AI backend could not answer right now. Please try again."
	emptyMessageText    = "Please send a non-empty message."
)

// Config tunes the turn loop.
type Config struct {
	SystemPrompt string
	// SummarizeToolResults asks the backend for one more text-only reply after
	// tool results are in and appends it to the sequence.
	SummarizeToolResults bool
	Generation           llm.GenerationConfig
}

// Gateway is the turn orchestrator.
type Gateway struct {
	client     llm.LLMClient
	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher
	adapters   []transport.Adapter
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// New wires a gateway. adapters are only reported by Health; dispatching goes
// through dispatcher.
func New(client llm.LLMClient, registry *tools.Registry, dispatcher *dispatch.Dispatcher, adapters []transport.Adapter, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gateway{
		client:     client,
		registry:   registry,
		dispatcher: dispatcher,
		adapters:   adapters,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return "call_" + uuid.NewString() },
	}
}

// HandleChat runs one turn. It always returns at least one message; a failed
// backend call yields a single assistant error message.
func (g *Gateway) HandleChat(ctx context.Context, req api.ChatRequest) []api.Message {
	if strings.TrimSpace(req.Message) == "" {
		return []api.Message{api.ErrorMessage(emptyMessageText, g.now().UnixMilli())}
	}

	messages := g.buildConversation(req)
	result, err := g.client.Generate(ctx, messages, &g.cfg.Generation, g.registry.Definitions())
	if err != nil {
		err = fmt.Errorf("%w: %w", tools.ErrUpstreamAI, err)
		g.logger.Error("AI backend call failed", "session", req.SessionID, "kind", tools.KindOf(err), "error", err)
		return []api.Message{api.ErrorMessage(upstreamFailureText, g.now().UnixMilli())}
	}

	requests, rejected := g.toRequests(result.ToolCalls)
	turn := normalize.Turn{Content: result.Content, ToolCalls: requests}
	if len(requests) == 0 {
		return normalize.Normalize(turn, nil, g.now())
	}

	g.logger.Info("dispatching tool calls", "session", req.SessionID, "count", len(requests))
	pending := make([]tools.ToolCallRequest, 0, len(requests))
	for _, r := range requests {
		if _, bad := rejected[r.ID]; !bad {
			pending = append(pending, r)
		}
	}
	results := g.dispatcher.ExecuteAll(ctx, pending)
	for _, r := range rejected {
		results = append(results, r)
	}

	sequence := normalize.Normalize(turn, results, g.now())
	if g.cfg.SummarizeToolResults {
		sequence = g.followUp(ctx, req.SessionID, messages, sequence)
	}
	return sequence
}

// followUp sends the finished tool exchange back to the backend for a final
// text reply. Failures keep the sequence as it is.
func (g *Gateway) followUp(ctx context.Context, sessionID string, conversation []llm.Message, sequence []api.Message) []api.Message {
	messages := append(append([]llm.Message(nil), conversation...), convertAPIMessagesToLLMMessages(sequence)...)
	result, err := g.client.Generate(ctx, messages, &g.cfg.Generation, nil)
	if err != nil {
		g.logger.Warn("follow-up round failed; returning tool results without summary", "session", sessionID, "error", err)
		return sequence
	}
	if strings.TrimSpace(result.Content) == "" {
		return sequence
	}
	createdAt := sequence[len(sequence)-1].CreatedAt + 1
	if now := g.now().UnixMilli(); now > createdAt {
		createdAt = now
	}
	return append(sequence, api.Message{Role: api.RoleAssistant, Content: result.Content, CreatedAt: createdAt})
}

// buildConversation prepends the system prompt and replays the history.
func (g *Gateway) buildConversation(req api.ChatRequest) []llm.Message {
	messages := make([]llm.Message, 0, len(req.History)+2)
	if g.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: g.cfg.SystemPrompt})
	}
	messages = append(messages, convertAPIMessagesToLLMMessages(req.History)...)
	return append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})
}

// toRequests converts backend tool calls into dispatchable requests. Missing or
// repeated ids are replaced so ids are unique within the turn. Calls whose
// argument text is not a JSON object are settled immediately as invalid.
func (g *Gateway) toRequests(calls []*tools.ToolCall) ([]tools.ToolCallRequest, map[string]tools.ToolCallResult) {
	if len(calls) == 0 {
		return nil, nil
	}
	requests := make([]tools.ToolCallRequest, 0, len(calls))
	rejected := map[string]tools.ToolCallResult{}
	seen := make(map[string]bool, len(calls))

	for _, tc := range calls {
		if tc == nil {
			continue
		}
		id := tc.ID
		if id == "" || seen[id] {
			id = g.newID()
		}
		seen[id] = true

		req := tools.ToolCallRequest{ID: id, ToolName: tc.Function.Name}
		args, err := parseArguments(tc.Function.Arguments)
		if err != nil {
			rejected[id] = tools.ToolCallResult{
				ID:       id,
				ToolName: tc.Function.Name,
				Outcome:  tools.Failed(fmt.Errorf("%w: arguments are not a JSON object: %v", tools.ErrInvalidArguments, err)),
			}
			args = map[string]any{}
		}
		req.Arguments = args
		requests = append(requests, req)
	}
	return requests, rejected
}

func parseArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// convertAPIMessagesToLLMMessages handles the type conversion between the public
// API and the backend clients. Error notices are gateway output, not model
// output, so they are not replayed.
func convertAPIMessagesToLLMMessages(apiMessages []api.Message) []llm.Message {
	llmMessages := make([]llm.Message, 0, len(apiMessages))
	for _, msg := range apiMessages {
		if msg.Error {
			continue
		}
		m := llm.Message{Role: llm.Role(msg.Role), Content: msg.Content}
		switch msg.Role {
		case api.RoleAssistant:
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil || tc.Arguments == nil {
					args = []byte("{}")
				}
				m.ToolCalls = append(m.ToolCalls, &tools.ToolCall{
					ID:   tc.ID,
					Type: tools.ToolTypeFunction,
					Function: tools.ToolCallFunction{
						Name:      tc.ToolName,
						Arguments: string(args),
					},
				})
			}
		case api.RoleTool:
			m.ToolCallID = msg.ToolCallID
			m.ToolName = msg.ToolName
		}
		llmMessages = append(llmMessages, m)
	}
	return llmMessages
}

// ListTools returns the catalogue in listing order.
func (g *Gateway) ListTools() []api.ToolInfo {
	descs := g.registry.List()
	out := make([]api.ToolInfo, len(descs))
	for i, d := range descs {
		out[i] = api.ToolInfo{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
			Source:      d.Source,
		}
	}
	return out
}

// Descriptors exposes the raw listing, e.g. for fingerprinting.
func (g *Gateway) Descriptors() []tools.ToolDescriptor {
	return g.registry.List()
}

// InvokeTool calls one tool directly, bypassing the AI backend.
func (g *Gateway) InvokeTool(ctx context.Context, req api.ToolInvocationRequest) api.ToolInvocationResponse {
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	res := g.dispatcher.Execute(ctx, tools.ToolCallRequest{ID: g.newID(), ToolName: req.Name, Arguments: params})
	resp := api.ToolInvocationResponse{Success: res.Outcome.Success, Tool: res.ToolName}
	if res.Outcome.Success {
		resp.Result = res.Outcome.Payload
	} else {
		resp.Error = res.Outcome.Message
	}
	return resp
}

// AdapterStatus is one entry of the health report. State is only reported for
// adapters that track a connection.
type AdapterStatus struct {
	Name      string       `json:"name"`
	Source    tools.Source `json:"source"`
	Available bool         `json:"available"`
	State     string       `json:"state,omitempty"`
}

type stateful interface {
	State() transport.ConnectionState
}

// Health reports the last known availability of every adapter without probing.
func (g *Gateway) Health() []AdapterStatus {
	out := make([]AdapterStatus, 0, len(g.adapters))
	for _, a := range g.adapters {
		status := AdapterStatus{Name: a.Name(), Source: a.Source(), Available: a.IsAvailable()}
		if s, ok := a.(stateful); ok {
			status.State = s.State().String()
		}
		out = append(out, status)
	}
	return out
}
