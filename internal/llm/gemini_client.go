// In file: internal/llm/gemini_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

// GeminiClient is the client for Google's Gemini models.
//
// The SDK's GenerativeModel carries per-request settings (tools, temperature),
// so a fresh model is derived from the shared client on every Generate call and
// concurrent turns never see each other's configuration.
type GeminiClient struct {
	client *genai.Client
	logger *slog.Logger
}

var _ LLMClient = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &GeminiClient{client: client, logger: logger}, nil
}

// Close releases the underlying SDK client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Generate performs a blocking request to the Gemini API.
func (c *GeminiClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	if config == nil || config.Model == "" {
		return nil, errors.New("gemini generation requires a model")
	}
	system, contents, err := toGeminiContents(messages)
	if err != nil {
		return nil, err
	}

	model := c.client.GenerativeModel(config.Model)
	configureModel(model, config, availableTools)
	model.SystemInstruction = system

	chat := model.StartChat()
	last := contents[len(contents)-1]
	chat.History = contents[:len(contents)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return c.parseGeminiResponse(ctx, model, resp)
}

// configureModel applies per-request settings using the SDK's setters.
func configureModel(model *genai.GenerativeModel, config *GenerationConfig, availableTools []tools.Tool) {
	if config.Temperature != nil {
		model.SetTemperature(*config.Temperature)
	}
	if config.TopP != nil {
		model.SetTopP(*config.TopP)
	}
	if config.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(config.MaxTokens))
	} else {
		model.SetMaxOutputTokens(defaultMaxTokens)
	}
	if len(availableTools) > 0 {
		model.Tools = toGeminiTools(availableTools)
	}
}

// toGeminiTools groups every declaration under a single genai.Tool.
func toGeminiTools(toolsToConvert []tools.Tool) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(toolsToConvert))
	for _, t := range toolsToConvert {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema converts our JSONSchema to the Gemini SDK's schema type. Gemini
// only accepts enums on strings, so other enums are dropped.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	genaiSchema := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	}
	if s.Type == "string" && len(s.Enum) > 0 {
		genaiSchema.Enum = make([]string, 0, len(s.Enum))
		for _, e := range s.Enum {
			genaiSchema.Enum = append(genaiSchema.Enum, fmt.Sprint(e))
		}
	}
	if s.Items != nil {
		genaiSchema.Items = convertSchema(*s.Items)
	}
	if s.Properties != nil {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			if v != nil {
				genaiSchema.Properties[k] = convertSchema(*v)
			}
		}
	}
	return genaiSchema
}

// toGeminiContents converts the history. System messages become the system
// instruction, assistant tool calls become FunctionCall parts, and consecutive
// tool messages are folded into one user content of FunctionResponse parts.
func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content, error) {
	var (
		systemParts []string
		contents    []*genai.Content
	)
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case RoleAssistant:
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := map[string]any{}
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
						return nil, nil, fmt.Errorf("tool call %s has malformed arguments: %w", tc.ID, err)
					}
				}
				content.Parts = append(content.Parts, genai.FunctionCall{Name: tc.Function.Name, Args: args})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case RoleTool:
			part := genai.FunctionResponse{Name: msg.ToolName, Response: functionResponse(msg.Content)}
			if n := len(contents); n > 0 && isFunctionResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
			} else {
				contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{part}})
			}
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}

	if len(contents) == 0 {
		return nil, nil, errors.New("gemini generation requires at least one non-system message")
	}
	if contents[len(contents)-1].Role == "model" {
		return nil, nil, errors.New("conversation must not end with an assistant message")
	}

	var system *genai.Content
	if len(systemParts) > 0 {
		system = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(systemParts, "\n\n"))}}
	}
	return system, contents, nil
}

func isFunctionResponses(c *genai.Content) bool {
	if c.Role != "user" || len(c.Parts) == 0 {
		return false
	}
	_, ok := c.Parts[0].(genai.FunctionResponse)
	return ok
}

// functionResponse wraps tool message text in the object Gemini expects. JSON
// objects pass through; anything else is carried under "content".
func functionResponse(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"content": content}
}

// parseGeminiResponse converts a Gemini API response into our GenerationResult.
// Gemini does not issue call ids, so calls are numbered by position.
func (c *GeminiClient) parseGeminiResponse(
	ctx context.Context,
	model *genai.GenerativeModel,
	resp *genai.GenerateContentResponse,
) (*GenerationResult, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}

	var contentBuilder strings.Builder
	var toolCalls []*tools.ToolCall
	addCall := func(fc genai.FunctionCall) {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			c.logger.Warn("could not marshal gemini tool call args", "tool", fc.Name, "error", err)
			args = []byte("{}")
		}
		toolCalls = append(toolCalls, &tools.ToolCall{
			ID:   fmt.Sprintf("gemini-call-%d", len(toolCalls)),
			Type: tools.ToolTypeFunction,
			Function: tools.ToolCallFunction{
				Name:      fc.Name,
				Arguments: string(args),
			},
		})
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			contentBuilder.WriteString(string(v))
		case genai.FunctionCall:
			addCall(v)
		case *genai.FunctionCall:
			addCall(*v)
		}
	}

	result := &GenerationResult{
		Content:   strings.TrimSpace(contentBuilder.String()),
		ToolCalls: toolCalls,
	}

	if resp.UsageMetadata != nil {
		result.Usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.Usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.Usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	// Some responses omit completion tokens; count them when there is text.
	if result.Usage.CompletionTokens == 0 && result.Content != "" {
		countResp, err := model.CountTokens(ctx, genai.Text(result.Content))
		if err != nil {
			c.logger.Debug("counting gemini completion tokens failed", "error", err)
		} else {
			result.Usage.CompletionTokens = int(countResp.TotalTokens)
			result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
		}
	}
	return result, nil
}
