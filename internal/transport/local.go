// In file: internal/transport/local.go
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

// Local serves tools by invoking in-process handlers.
type Local struct {
	mu        sync.RWMutex
	executors map[string]tools.ToolExecutor
	order     []string
	available func() bool
	logger    *slog.Logger
}

var _ Adapter = (*Local)(nil)

// NewLocal creates a local adapter. available is the static capability check;
// nil means always available.
func NewLocal(logger *slog.Logger, available func() bool) *Local {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Local{
		executors: make(map[string]tools.ToolExecutor),
		available: available,
		logger:    logger,
	}
}

// Register adds (or replaces) the handler for a tool.
func (l *Local) Register(exec tools.ToolExecutor) {
	key := tools.Canonical(exec.Descriptor().Name)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.executors[key]; !exists {
		l.order = append(l.order, key)
	}
	l.executors[key] = exec
}

func (l *Local) Name() string         { return "local" }
func (l *Local) Source() tools.Source { return tools.SourceLocal }

func (l *Local) Initialize(context.Context) bool { return l.IsAvailable() }

func (l *Local) IsAvailable() bool {
	return l.available == nil || l.available()
}

// ListTools returns descriptors in registration order.
func (l *Local) ListTools(context.Context) ([]tools.ToolDescriptor, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]tools.ToolDescriptor, 0, len(l.order))
	for _, key := range l.order {
		d := l.executors[key].Descriptor()
		d.Source = tools.SourceLocal
		out = append(out, d)
	}
	return out, nil
}

// CallTool runs the handler on its own goroutine so a handler that ignores ctx
// still cannot hold the caller past its deadline.
func (l *Local) CallTool(ctx context.Context, name string, args map[string]any) (RawResult, error) {
	l.mu.RLock()
	exec, ok := l.executors[tools.Canonical(name)]
	l.mu.RUnlock()
	if !ok {
		return RawResult{}, fmt.Errorf("%w: no local handler for %q", tools.ErrAdapterUnavailable, name)
	}

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("local tool handler panicked", "tool", name, "panic", r)
				done <- outcome{err: fmt.Errorf("%w: handler panicked: %v", tools.ErrAdapterCallFailed, r)}
			}
		}()
		payload, err := exec.Execute(ctx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		return RawResult{}, fmt.Errorf("%w: %s: %w", tools.ErrAdapterCallFailed, name, ctx.Err())
	case o := <-done:
		if o.err != nil {
			return RawResult{}, o.err
		}
		return RawResult{Payload: o.payload, Structured: true}, nil
	}
}
