// In file: internal/tools/executor.go
package tools

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Handler is the in-process implementation of one local tool. It receives the
// validated arguments and returns a payload that is either structured data or
// text. Handlers must honor ctx cancellation where they block.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ToolExecutor is implemented by every built-in local tool. The local transport
// adapter registers executors and calls them through their Handler.
type ToolExecutor interface {
	// Descriptor returns the tool's name, description and argument schema.
	Descriptor() ToolDescriptor
	// Execute runs the tool's logic.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc adapts a plain Handler and descriptor into a ToolExecutor, which is
// how the external business-logic layer injects tools without a named type.
func HandlerFunc(desc ToolDescriptor, h Handler) ToolExecutor {
	return handlerTool{desc: desc, h: h}
}

type handlerTool struct {
	desc ToolDescriptor
	h    Handler
}

func (t handlerTool) Descriptor() ToolDescriptor { return t.desc }

func (t handlerTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return t.h(ctx, args)
}

// decodeArgs maps loosely typed LLM arguments onto a typed struct using its json tags.
func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
