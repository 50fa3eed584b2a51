// In file: internal/tools/types.go

// Package tools defines the provider-agnostic tool model of the gateway: the
// descriptors held by the registry, the call requests the AI backend emits, the
// results the dispatcher produces, and the local handlers that serve tools
// in-process. Everything upstream (LLM clients) and downstream (transport
// adapters, message normalizer) speaks these types.
package tools

import "strings"

// ToolTypeFunction is the standard type for function-based tools.
const ToolTypeFunction = "function"

// Source tags the resolution strategy of a descriptor, i.e. which transport
// adapter is expected to serve it.
type Source string

const (
	SourceLocal           Source = "local"
	SourceHostedPrimary   Source = "hosted-primary"
	SourceHostedSecondary Source = "hosted-secondary"
)

// rank orders sources by the default preference hosted-primary, hosted-secondary, local.
func (s Source) rank() int {
	switch s {
	case SourceHostedPrimary:
		return 0
	case SourceHostedSecondary:
		return 1
	case SourceLocal:
		return 2
	}
	return 3
}

// IsHosted reports whether the source is served over a remote session.
func (s Source) IsHosted() bool {
	return s == SourceHostedPrimary || s == SourceHostedSecondary
}

// Valid reports whether s is one of the known source tags.
func (s Source) Valid() bool {
	return s.rank() < 3
}

// ParseSource converts a configuration string into a Source.
func ParseSource(s string) (Source, bool) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	return src, src.Valid()
}

// JSONSchema is the structural description of a tool's arguments. It covers the
// subset of JSON Schema the gateway validates (types, required fields, enums and
// defaults) and is forwarded verbatim to the AI backend.
type JSONSchema struct {
	// Type is the data type of this node ("object", "string", "number", "integer",
	// "boolean", "array"). The top-level parameters node is always "object".
	Type        string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string               `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum        []any                  `json:"enum,omitempty" yaml:"enum,omitempty"`
	// Default is applied by the dispatcher when an optional argument is missing.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
}

// ToolDescriptor identifies one invocable capability.
//
// Descriptors are registered at process start from static definitions plus the
// tools each connected hosted backend reports. They are treated as immutable
// once registered; the registry stores and hands out copies.
type ToolDescriptor struct {
	// Name is the canonical identifier. Lookups normalize hyphens and underscores,
	// so "brave-search" and "brave_search" name the same descriptor.
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
	// Source is the preferred adapter for this tool.
	Source Source `json:"source"`
	// Fallback lists the adapters tried, in order, after Source fails or is
	// unavailable. An empty list means no automatic fallback.
	Fallback []Source `json:"-"`
	// RemoteNames holds the spelling each hosted backend reported, keyed by source.
	// Adapters without an entry are called with Name.
	RemoteNames map[Source]string `json:"-"`
	// Aliases are extra spellings that resolve to this descriptor.
	Aliases []string `json:"-"`
}

// Chain returns the full ordered list of adapters to attempt for this tool.
func (d ToolDescriptor) Chain() []Source {
	chain := make([]Source, 0, 1+len(d.Fallback))
	seen := make(map[Source]bool, 1+len(d.Fallback))
	for _, s := range append([]Source{d.Source}, d.Fallback...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		chain = append(chain, s)
	}
	return chain
}

// NameFor returns the tool name to send to the adapter behind src.
func (d ToolDescriptor) NameFor(src Source) string {
	if n, ok := d.RemoteNames[src]; ok && n != "" {
		return n
	}
	return d.Name
}

// Definition renders the descriptor in the function-calling shape sent to the LLM.
func (d ToolDescriptor) Definition() Tool {
	return NewFunctionTool(d.Name, d.Description, d.Parameters)
}

func (d ToolDescriptor) clone() ToolDescriptor {
	c := d
	c.Fallback = append([]Source(nil), d.Fallback...)
	c.Aliases = append([]string(nil), d.Aliases...)
	if d.RemoteNames != nil {
		c.RemoteNames = make(map[Source]string, len(d.RemoteNames))
		for k, v := range d.RemoteNames {
			c.RemoteNames[k] = v
		}
	}
	return c
}

// Tool defines the schema for a function that can be described to an LLM.
// This is the information sent *to* the model to make it aware of a tool's existence.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function defines the name, description, and parameters of a callable tool.
type Function struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// ToolCall is the function-calling request shape used on the wire with the LLM.
// The gateway converts it to a ToolCallRequest before dispatch.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and JSON-encoded arguments of a call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewFunctionTool builds a Tool with the "function" type.
func NewFunctionTool(name, description string, parameters JSONSchema) Tool {
	return Tool{
		Type: ToolTypeFunction,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// ToolCallRequest is one invocation the AI backend wants performed.
type ToolCallRequest struct {
	// ID correlates the request with its result; unique within a turn.
	ID        string         `json:"id"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
}

// ToolCallResult is the settled outcome of one invocation. It is created by the
// dispatcher once the call succeeds or fails and is not modified afterwards.
type ToolCallResult struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
	Outcome   Outcome        `json:"outcome"`
	// ElapsedMs is the wall-clock duration of the call; 0 when nothing was attempted.
	ElapsedMs int64 `json:"elapsedMs"`
	// Source is the adapter that actually served (or last attempted) the call.
	Source Source `json:"source,omitempty"`
}

// Outcome is a tagged union: Success with a payload, or Failure with a message.
type Outcome struct {
	Success bool      `json:"success"`
	Payload any       `json:"payload,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Succeeded builds a Success outcome.
func Succeeded(payload any) Outcome {
	return Outcome{Success: true, Payload: payload}
}

// Failed builds a Failure outcome from an error, classifying it by kind.
func Failed(err error) Outcome {
	return Outcome{Kind: KindOf(err), Message: err.Error()}
}
