package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-gateway/internal/api"
	"github.com/dileep-u-k/tool-gateway/internal/dispatch"
	"github.com/dileep-u-k/tool-gateway/internal/llm"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, router http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_ChatTextOnlyIsSingleObject(t *testing.T) {
	client := (&scriptedClient{}).reply(&llm.GenerationResult{Content: "Hello!"}, nil)
	router := NewHandler(newTestGateway(t, client, Config{}), nil, nil, nil).Router()

	w := do(t, router, http.MethodPost, "/api/v1/chat", api.ChatRequest{Message: "hi"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var msg api.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, api.RoleAssistant, msg.Role)
	assert.Equal(t, "Hello!", msg.Content)
}

func TestHandler_ChatWithToolsIsArray(t *testing.T) {
	client := (&scriptedClient{}).reply(&llm.GenerationResult{
		ToolCalls: []*tools.ToolCall{call("call_1", "brave_search", `{"query":"cats"}`)},
	}, nil)
	router := NewHandler(newTestGateway(t, client, Config{}), nil, nil, nil).Router()

	w := do(t, router, http.MethodPost, "/api/v1/chat", api.ChatRequest{Message: "search for cats"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var msgs []api.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "call_1", msgs[0].ToolCalls[0].ID)
	assert.Equal(t, "call_1", msgs[1].ToolCallID)
	assert.Contains(t, w.Body.String(), `"createdAt"`)
	assert.Contains(t, w.Body.String(), `"toolCallId"`)
}

func TestHandler_ChatUpstreamErrorShape(t *testing.T) {
	client := (&scriptedClient{}).reply(nil, assert.AnError)
	router := NewHandler(newTestGateway(t, client, Config{}), nil, nil, nil).Router()

	w := do(t, router, http.MethodPost, "/api/v1/chat", api.ChatRequest{Message: "hi"}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var msg api.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.True(t, msg.Error)
	assert.Equal(t, api.RoleAssistant, msg.Role)
}

func TestHandler_ChatMalformedBody(t *testing.T) {
	router := NewHandler(newTestGateway(t, &scriptedClient{}, Config{}), nil, nil, nil).Router()

	w := do(t, router, http.MethodPost, "/api/v1/chat", `{"message":`, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var msg api.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.True(t, msg.Error)
}

func TestHandler_ListToolsWithETag(t *testing.T) {
	router := NewHandler(newTestGateway(t, &scriptedClient{}, Config{}), nil, nil, nil).Router()

	w := do(t, router, http.MethodGet, "/api/v1/tools", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var infos []api.ToolInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "brave_search", infos[0].Name)

	w = do(t, router, http.MethodGet, "/api/v1/tools", nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandler_InvokeTool(t *testing.T) {
	router := NewHandler(newTestGateway(t, &scriptedClient{}, Config{}), nil, nil, nil).Router()

	w := do(t, router, http.MethodPost, "/api/v1/tools/invoke",
		api.ToolInvocationRequest{Name: "brave-search", Params: map[string]any{"query": "cats"}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ToolInvocationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "brave_search", resp.Tool)

	w = do(t, router, http.MethodPost, "/api/v1/tools/invoke", api.ToolInvocationRequest{Name: "nope"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = api.ToolInvocationResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown tool")

	w = do(t, router, http.MethodPost, "/api/v1/tools/invoke", api.ToolInvocationRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ToolStats(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	profiler := dispatch.NewProfiler(rdb, nil)
	profiler.RecordCall(context.Background(), tools.ToolCallResult{
		ToolName:  "brave_search",
		Source:    tools.SourceLocal,
		ElapsedMs: 40,
		Outcome:   tools.Succeeded("ok"),
	})

	router := NewHandler(newTestGateway(t, &scriptedClient{}, Config{}), profiler, nil, nil).Router()

	w := do(t, router, http.MethodGet, "/api/v1/tools/web_search/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile dispatch.ToolProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "brave_search", profile.Tool)
	assert.Equal(t, int64(1), profile.TotalSuccesses)

	w = do(t, router, http.MethodGet, "/api/v1/tools/nope/stats", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_ToolStatsDisabled(t *testing.T) {
	router := NewHandler(newTestGateway(t, &scriptedClient{}, Config{}), nil, nil, nil).Router()

	w := do(t, router, http.MethodGet, "/api/v1/tools/brave_search/stats", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := dispatch.NewMetrics(reg)
	metrics.RecordFallback(context.Background(), "brave_search", tools.SourceHostedPrimary, tools.SourceLocal)
	router := NewHandler(newTestGateway(t, &scriptedClient{}, Config{}), nil, reg, nil).Router()

	w := do(t, router, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"adapters"`)

	w = do(t, router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "toolgateway_fallbacks_total")
}
