// In file: internal/gateway/handler.go
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dileep-u-k/tool-gateway/internal/api"
	"github.com/dileep-u-k/tool-gateway/internal/dispatch"
	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/version"
)

// StatsSource serves per-tool statistics. *dispatch.Profiler implements it.
type StatsSource interface {
	GetProfile(ctx context.Context, tool string) (*dispatch.ToolProfile, error)
}

// Handler exposes the gateway over HTTP.
type Handler struct {
	gw       *Gateway
	stats    StatsSource
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewHandler builds the HTTP layer. stats and gatherer are optional; their
// endpoints answer 404 when absent.
func NewHandler(gw *Gateway, stats StatsSource, gatherer prometheus.Gatherer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{gw: gw, stats: stats, gatherer: gatherer, logger: logger}
}

// Router returns the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), h.accessLog())

	engine.GET("/healthz", h.HandleHealth)
	if h.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat", h.HandleChat)
		v1.GET("/tools", h.HandleListTools)
		v1.POST("/tools/invoke", h.HandleInvokeTool)
		v1.GET("/tools/:name/stats", h.HandleToolStats)
	}
	return engine
}

// HandleChat answers with a single message, or an array whenever the turn
// produced more than one.
func (h *Handler) HandleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorMessage("Invalid request: "+err.Error(), time.Now().UnixMilli()))
		return
	}

	messages := h.gw.HandleChat(c.Request.Context(), req)
	if len(messages) == 1 {
		c.JSON(http.StatusOK, messages[0])
		return
	}
	c.JSON(http.StatusOK, messages)
}

// HandleListTools serves the catalogue with an ETag so pickers can poll cheaply.
func (h *Handler) HandleListTools(c *gin.Context) {
	descs := h.gw.Descriptors()
	etag := version.CatalogETag(descs)
	c.Header("ETag", etag)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, h.gw.ListTools())
}

func (h *Handler) HandleInvokeTool(c *gin.Context) {
	var req api.ToolInvocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ToolInvocationResponse{Error: "Invalid request: " + err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, api.ToolInvocationResponse{Error: "tool name is required"})
		return
	}
	c.JSON(http.StatusOK, h.gw.InvokeTool(c.Request.Context(), req))
}

func (h *Handler) HandleToolStats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tool statistics are disabled"})
		return
	}
	desc, ok := h.gw.registry.Resolve(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool " + c.Param("name")})
		return
	}
	profile, err := h.stats.GetProfile(c.Request.Context(), desc.Name)
	if err != nil {
		h.logger.Error("reading tool statistics failed", "tool", desc.Name, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tool statistics are unavailable"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"build":    version.GetBuildInfo(),
		"adapters": h.gw.Health(),
	})
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
