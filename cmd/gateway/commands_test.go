package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-gateway/internal/api"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GIN_MODE", "release")
	t.Setenv("GATEWAY_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("BRAVE_API_KEY", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestToolsList(t *testing.T) {
	out, err := runCLI(t, "tools", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "calculate")
	assert.Contains(t, out, "get_current_weather")
	assert.NotContains(t, out, "brave_search", "no search without a credential or hosted backend")
}

func TestToolsCall(t *testing.T) {
	out, err := runCLI(t, "tools", "call", "calculator", "--params", `{"operand1": 2, "operator": "+", "operand2": 3}`)
	require.NoError(t, err)

	var resp api.ToolInvocationResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "calculate", resp.Tool)
	assert.Equal(t, map[string]any{"expression": "2 + 3", "result": float64(5)}, resp.Result)
}

func TestToolsCall_Failure(t *testing.T) {
	out, err := runCLI(t, "tools", "call", "calculate", "--params", `{"operand1": 2}`)
	require.Error(t, err)
	assert.Contains(t, out, `"success": false`)
	assert.Contains(t, out, "invalid arguments")
}

func TestToolsCall_BadParams(t *testing.T) {
	_, err := runCLI(t, "tools", "call", "calculate", "--params", `[1,2]`)
	assert.ErrorContains(t, err, "--params must be a JSON object")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tool-gateway dev")
	assert.Contains(t, out, "tools v1.0")
}
