// In file: internal/normalize/normalize.go

// Package normalize turns one AI backend turn plus its settled tool results into
// the canonical ordered message sequence served to the chat frontend.
package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dileep-u-k/tool-gateway/internal/api"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

// Turn is the AI backend's reply for one exchange: text, tool calls, or both.
type Turn struct {
	Content   string
	ToolCalls []tools.ToolCallRequest
}

// missingResult is the failure reported for a request that has no result.
const missingResult = "tool call produced no result"

// Normalize emits the canonical sequence for a turn. Without tool calls it is a
// single assistant message. With N calls it is one assistant message listing
// them, then N tool messages in request order whatever order results is in.
// The assistant message is stamped with now and each tool message 1ms after the
// previous one. The function has no side effects.
func Normalize(turn Turn, results []tools.ToolCallResult, now time.Time) []api.Message {
	base := now.UnixMilli()
	assistant := api.Message{
		Role:      api.RoleAssistant,
		Content:   turn.Content,
		CreatedAt: base,
	}
	if len(turn.ToolCalls) == 0 {
		return []api.Message{assistant}
	}

	assistant.ToolCalls = make([]tools.ToolCallRequest, len(turn.ToolCalls))
	copy(assistant.ToolCalls, turn.ToolCalls)

	// Results are matched by id; repeated ids are consumed in order.
	byID := make(map[string][]tools.ToolCallResult, len(results))
	for _, r := range results {
		byID[r.ID] = append(byID[r.ID], r)
	}

	out := make([]api.Message, 0, 1+len(turn.ToolCalls))
	out = append(out, assistant)
	for i, req := range turn.ToolCalls {
		res, ok := take(byID, req.ID)
		if !ok {
			res = tools.ToolCallResult{
				ID:        req.ID,
				ToolName:  req.ToolName,
				Arguments: req.Arguments,
				Outcome:   tools.Outcome{Kind: tools.KindAdapterCallFailed, Message: missingResult},
			}
		}
		out = append(out, api.Message{
			Role:       api.RoleTool,
			Content:    Content(res.Outcome),
			CreatedAt:  base + int64(i+1),
			ToolCallID: req.ID,
			ToolName:   req.ToolName,
		})
	}
	return out
}

func take(byID map[string][]tools.ToolCallResult, id string) (tools.ToolCallResult, bool) {
	queue := byID[id]
	if len(queue) == 0 {
		return tools.ToolCallResult{}, false
	}
	byID[id] = queue[1:]
	return queue[0], true
}

// Content renders an outcome as tool message text. String payloads pass through,
// other payloads become indented JSON, failures become {"error": message}.
func Content(o tools.Outcome) string {
	if !o.Success {
		return indent(map[string]string{"error": o.Message})
	}
	if s, ok := o.Payload.(string); ok {
		return s
	}
	return indent(o.Payload)
}

func indent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
