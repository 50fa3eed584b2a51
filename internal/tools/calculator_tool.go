// In file: internal/tools/calculator_tool.go
package tools

import (
	"context"
	"fmt"
)

// --- Calculator Tool Implementation ---

// CalculatorTool performs basic arithmetic in-process.
type CalculatorTool struct{}

// Statically verify that CalculatorTool implements the ToolExecutor interface.
var _ ToolExecutor = (*CalculatorTool)(nil)

// NewCalculatorTool creates a new instance of the CalculatorTool.
func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

// Descriptor asks for structured operands rather than a free-form expression so
// no string parsing is needed on our side.
func (ct *CalculatorTool) Descriptor() ToolDescriptor {
	return ToolDescriptor{
		Name:        "calculate",
		Description: "Performs a basic arithmetic calculation (add, subtract, multiply, divide).",
		Source:      SourceLocal,
		Parameters: JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"operand1": {Type: "number", Description: "The first number in the calculation."},
				"operator": {
					Type:        "string",
					Description: "The operator to use.",
					Enum:        []any{"+", "-", "*", "/"},
				},
				"operand2": {Type: "number", Description: "The second number in the calculation."},
			},
			Required: []string{"operand1", "operator", "operand2"},
		},
	}
}

// Execute returns {"expression": ..., "result": ...}.
func (ct *CalculatorTool) Execute(_ context.Context, arguments map[string]any) (any, error) {
	var args struct {
		Operand1 float64 `json:"operand1"`
		Operand2 float64 `json:"operand2"`
		Operator string  `json:"operator"`
	}
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments for calculator: %w", err)
	}

	var result float64
	switch args.Operator {
	case "+":
		result = args.Operand1 + args.Operand2
	case "-":
		result = args.Operand1 - args.Operand2
	case "*":
		result = args.Operand1 * args.Operand2
	case "/":
		if args.Operand2 == 0 {
			return nil, fmt.Errorf("division by zero is not allowed")
		}
		result = args.Operand1 / args.Operand2
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidArguments, args.Operator)
	}

	return map[string]any{
		"expression": fmt.Sprintf("%g %s %g", args.Operand1, args.Operator, args.Operand2),
		"result":     result,
	}, nil
}
