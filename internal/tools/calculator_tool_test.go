package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatorTool_Execute(t *testing.T) {
	calc := NewCalculatorTool()

	tests := []struct {
		name    string
		args    map[string]any
		want    float64
		wantErr error
	}{
		{name: "add", args: map[string]any{"operand1": 2, "operator": "+", "operand2": 3}, want: 5},
		{name: "subtract floats", args: map[string]any{"operand1": 2.5, "operator": "-", "operand2": 1.0}, want: 1.5},
		{name: "multiply numeric strings", args: map[string]any{"operand1": "4", "operator": "*", "operand2": "2.5"}, want: 10},
		{name: "divide", args: map[string]any{"operand1": 9, "operator": "/", "operand2": 3}, want: 3},
		{name: "unsupported operator", args: map[string]any{"operand1": 9, "operator": "%", "operand2": 3}, wantErr: ErrInvalidArguments},
		{name: "undecodable operand", args: map[string]any{"operand1": map[string]any{"x": 1}, "operator": "+", "operand2": 3}, wantErr: ErrInvalidArguments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := calc.Execute(context.Background(), tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			payload, ok := out.(map[string]any)
			require.True(t, ok)
			assert.InDelta(t, tt.want, payload["result"], 1e-9)
		})
	}
}

func TestCalculatorTool_DivisionByZero(t *testing.T) {
	_, err := NewCalculatorTool().Execute(context.Background(), map[string]any{"operand1": 1, "operator": "/", "operand2": 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
	assert.Equal(t, KindAdapterCallFailed, KindOf(err))
}

func TestCalculatorTool_Expression(t *testing.T) {
	out, err := NewCalculatorTool().Execute(context.Background(), map[string]any{"operand1": 6, "operator": "*", "operand2": 7})
	require.NoError(t, err)
	assert.Equal(t, "6 * 7", out.(map[string]any)["expression"])
}
