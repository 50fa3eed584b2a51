// In file: internal/transport/hosted.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

// Session is the slice of an MCP client session the adapter uses.
// *client.Client implements it.
type Session interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

var _ Session = (*client.Client)(nil)

// SessionFactory opens a fresh, not yet started MCP client session.
type SessionFactory func(ctx context.Context) (Session, error)

// HostedConfig describes one hosted tool-execution backend.
type HostedConfig struct {
	Name   string
	Source tools.Source
	URL    string
	// Transport is "streamable-http" (default) or "sse".
	Transport string
	APIKey    string
	Profile   string
	// ProvidesSearch marks the backend that serves the web search capability.
	ProvidesSearch bool
}

// Hosted reaches tools running in an external MCP service.
//
// Sessions are never reused: every probe and every call opens its own session
// and closes it before returning, whatever the outcome. This trades per-call
// setup latency for never acting on a stale session. The only state kept
// between calls is the connection flag consulted by the dispatcher.
type Hosted struct {
	cfg    HostedConfig
	dial   SessionFactory
	state  connState
	logger *slog.Logger
	// OnStateChange, when set, is told about every connectivity flip.
	OnStateChange func(backend string, s ConnectionState)
}

var _ Adapter = (*Hosted)(nil)

// NewHosted builds a hosted adapter that dials cfg.URL with the key/profile pair.
func NewHosted(cfg HostedConfig, logger *slog.Logger) *Hosted {
	h := &Hosted{cfg: cfg, logger: orNop(logger)}
	h.dial = h.dialRemote
	return h
}

// NewHostedWithFactory builds a hosted adapter over a custom session factory,
// e.g. an in-process server.
func NewHostedWithFactory(cfg HostedConfig, dial SessionFactory, logger *slog.Logger) *Hosted {
	return &Hosted{cfg: cfg, dial: dial, logger: orNop(logger)}
}

func orNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}

func (h *Hosted) Name() string         { return h.cfg.Name }
func (h *Hosted) Source() tools.Source { return h.cfg.Source }

// ProvidesSearch reports whether this backend serves web search.
func (h *Hosted) ProvidesSearch() bool { return h.cfg.ProvidesSearch }

// State returns the current connection state.
func (h *Hosted) State() ConnectionState { return h.state.Load() }

// IsAvailable is true only after a successful probe and until the next failure.
func (h *Hosted) IsAvailable() bool {
	return h.state.Load() == Connected
}

func (h *Hosted) hasCredentials() bool {
	return h.dial != nil && (h.cfg.URL != "" || h.cfg.APIKey != "" || h.cfg.Profile != "")
}

func (h *Hosted) setState(s ConnectionState) {
	if prev := h.state.Store(s); prev != s {
		h.logger.Debug("hosted backend state changed", "backend", h.cfg.Name, "from", prev.String(), "to", s.String())
		if h.OnStateChange != nil {
			h.OnStateChange(h.cfg.Name, s)
		}
	}
}

// Initialize performs a one-shot probe (open session, list tools, close) purely
// to set the connected flag. No session is retained.
func (h *Hosted) Initialize(ctx context.Context) bool {
	if !h.hasCredentials() {
		h.setState(Disconnected)
		return false
	}
	h.setState(Connecting)
	if _, err := h.listRemote(ctx); err != nil {
		h.logger.Warn("hosted backend probe failed", "backend", h.cfg.Name, "error", err)
		h.setState(Disconnected)
		return false
	}
	h.setState(Connected)
	h.logger.Info("hosted backend connected", "backend", h.cfg.Name, "source", h.cfg.Source)
	return true
}

// ListTools reports the backend's tools in the order it returned them, tagged
// with this adapter's source.
func (h *Hosted) ListTools(ctx context.Context) ([]tools.ToolDescriptor, error) {
	if !h.hasCredentials() {
		return nil, fmt.Errorf("%w: %s has no credentials", tools.ErrAdapterUnavailable, h.cfg.Name)
	}
	remote, err := h.listRemote(ctx)
	if err != nil {
		h.setState(Disconnected)
		return nil, err
	}
	h.setState(Connected)

	out := make([]tools.ToolDescriptor, 0, len(remote))
	for _, t := range remote {
		out = append(out, tools.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaFromMCP(t),
			Source:      h.cfg.Source,
			RemoteNames: map[tools.Source]string{h.cfg.Source: t.Name},
		})
	}
	return out, nil
}

// CallTool opens a session, issues the call and always closes the session. Any
// failure marks the backend disconnected so the next attempt re-probes.
func (h *Hosted) CallTool(ctx context.Context, name string, args map[string]any) (result RawResult, err error) {
	defer func() {
		if err != nil {
			h.setState(Disconnected)
		}
	}()

	if !h.hasCredentials() {
		return RawResult{}, fmt.Errorf("%w: %s has no credentials", tools.ErrAdapterUnavailable, h.cfg.Name)
	}

	var res *mcp.CallToolResult
	err = h.withSession(ctx, func(c Session) error {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		var callErr error
		res, callErr = c.CallTool(ctx, req)
		return callErr
	})
	if err != nil {
		return RawResult{}, fmt.Errorf("%w: %s/%s: %w", tools.ErrAdapterCallFailed, h.cfg.Name, name, err)
	}

	text := joinText(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return RawResult{}, fmt.Errorf("%w: %s/%s: %s", tools.ErrAdapterCallFailed, h.cfg.Name, name, text)
	}

	if res.StructuredContent != nil {
		return RawResult{Payload: res.StructuredContent, Structured: true}, nil
	}
	payload, structured := DecodeText(text)
	if !structured {
		h.logger.Debug("hosted result kept as raw text", "backend", h.cfg.Name, "tool", name, "error", tools.ErrParseFailure)
	}
	return RawResult{Payload: payload, Structured: structured}, nil
}

func (h *Hosted) listRemote(ctx context.Context) ([]mcp.Tool, error) {
	var listed []mcp.Tool
	err := h.withSession(ctx, func(c Session) error {
		res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return err
		}
		listed = res.Tools
		return nil
	})
	return listed, err
}

// withSession is scoped acquisition with guaranteed release: the session is
// closed on every path, including errors and panics in fn.
func (h *Hosted) withSession(ctx context.Context, fn func(Session) error) (err error) {
	c, err := h.dial(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			h.logger.Debug("closing hosted session failed", "backend", h.cfg.Name, "error", cerr)
		}
	}()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "tool-gateway", Version: "1.0.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	return fn(c)
}

// dialRemote authenticates with the key/profile pair both as query parameters
// (hosted registries key sessions on them) and as a bearer token.
func (h *Hosted) dialRemote(context.Context) (Session, error) {
	if h.cfg.URL == "" {
		return nil, errors.New("hosted backend URL is empty")
	}
	u, err := url.Parse(h.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid hosted backend URL: %w", err)
	}
	q := u.Query()
	if h.cfg.APIKey != "" {
		q.Set("api_key", h.cfg.APIKey)
	}
	if h.cfg.Profile != "" {
		q.Set("profile", h.cfg.Profile)
	}
	u.RawQuery = q.Encode()

	headers := map[string]string{}
	if h.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + h.cfg.APIKey
	}

	var c *client.Client
	switch strings.ToLower(h.cfg.Transport) {
	case "sse":
		c, err = client.NewSSEMCPClient(u.String(), mcptransport.WithHeaders(headers))
	default:
		c, err = client.NewStreamableHttpClient(u.String(), mcptransport.WithHTTPHeaders(headers))
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func joinText(contents []mcp.Content) string {
	var parts []string
	for _, c := range contents {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaFromMCP converts the backend's input schema by round-tripping it through
// JSON; unknown keywords are dropped.
func schemaFromMCP(t mcp.Tool) tools.JSONSchema {
	raw := []byte(t.RawInputSchema)
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(t.InputSchema); err != nil {
			return tools.JSONSchema{Type: "object"}
		}
	}
	var s tools.JSONSchema
	if err := json.Unmarshal(raw, &s); err != nil || s.Type == "" {
		s.Type = "object"
	}
	return s
}
