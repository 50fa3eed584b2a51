// In file: internal/transport/adapter.go

// Package transport contains the adapters that actually reach a tool: the local
// adapter calls in-process handlers, the hosted adapter talks to a remote tool
// execution service over the Model Context Protocol. Both satisfy Adapter so
// the dispatcher can treat them interchangeably.
package transport

import (
	"context"

	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

// Adapter is the call contract shared by every transport.
type Adapter interface {
	// Name identifies the adapter in logs and metrics (e.g. "local", "smithery").
	Name() string
	// Source is the tag descriptors use to select this adapter.
	Source() tools.Source
	// Initialize probes connectivity and reports whether the adapter is usable.
	Initialize(ctx context.Context) bool
	// ListTools reports the tools this adapter can serve, in its own order.
	ListTools(ctx context.Context) ([]tools.ToolDescriptor, error)
	// CallTool invokes one tool. Implementations must return when ctx is done.
	CallTool(ctx context.Context, name string, args map[string]any) (RawResult, error)
	// IsAvailable reports the last known availability without doing I/O.
	IsAvailable() bool
}

// RawResult is what an adapter hands back to the dispatcher: a payload that is
// either structured data or an opaque wrapper around unparseable text.
type RawResult struct {
	Payload any
	// Structured is false when the payload is the {raw: text} fallback.
	Structured bool
}
