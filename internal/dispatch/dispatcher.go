// In file: internal/dispatch/dispatcher.go

// Package dispatch executes tool calls. The Dispatcher resolves a request
// against the registry, walks the descriptor's fallback chain across transport
// adapters, bounds every call with a timeout and folds whatever happens into a
// ToolCallResult. Tool-level failures never escape as errors.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
	"github.com/dileep-u-k/tool-gateway/internal/transport"
)

const (
	defaultCallTimeout    = 30 * time.Second
	defaultProbeTimeout   = 10 * time.Second
	defaultMaxConcurrency = 8
)

// Resolver is the registry lookup the dispatcher depends on.
type Resolver interface {
	Resolve(name string) (tools.ToolDescriptor, bool)
}

// Recorder observes settled calls. Implementations must not block for long and
// must not fail the call; errors are theirs to log.
type Recorder interface {
	RecordCall(ctx context.Context, res tools.ToolCallResult)
	RecordFallback(ctx context.Context, tool string, from, to tools.Source)
}

// Options tunes a Dispatcher. Zero values select the defaults.
type Options struct {
	CallTimeout    time.Duration
	ProbeTimeout   time.Duration
	MaxConcurrency int
	Logger         *slog.Logger
	Recorders      []Recorder
}

// candidate is one step of a descriptor's fallback chain that has an adapter.
type candidate struct {
	src     tools.Source
	adapter transport.Adapter
}

// Dispatcher routes tool calls to transport adapters.
type Dispatcher struct {
	resolver  Resolver
	adapters  map[tools.Source]transport.Adapter
	opts      Options
	logger    *slog.Logger
	recorders []Recorder
}

// New builds a dispatcher over the given adapters, one per source tag. A later
// adapter with the same source replaces an earlier one.
func New(resolver Resolver, adapters []transport.Adapter, opts Options) *Dispatcher {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	bySource := make(map[tools.Source]transport.Adapter, len(adapters))
	for _, a := range adapters {
		if a != nil {
			bySource[a.Source()] = a
		}
	}
	return &Dispatcher{
		resolver:  resolver,
		adapters:  bySource,
		opts:      opts,
		logger:    logger,
		recorders: opts.Recorders,
	}
}

// Execute runs one request to completion. It always returns a result carrying
// req.ID; failures are reported in the outcome. Source is left empty unless an
// adapter was actually called.
func (d *Dispatcher) Execute(ctx context.Context, req tools.ToolCallRequest) tools.ToolCallResult {
	res := d.execute(ctx, req)
	for _, r := range d.recorders {
		r.RecordCall(context.WithoutCancel(ctx), res)
	}
	return res
}

func (d *Dispatcher) execute(ctx context.Context, req tools.ToolCallRequest) tools.ToolCallResult {
	res := tools.ToolCallResult{ID: req.ID, ToolName: req.ToolName, Arguments: req.Arguments}

	desc, ok := d.resolver.Resolve(req.ToolName)
	if !ok {
		res.Outcome = tools.Failed(fmt.Errorf("%w: %q", tools.ErrUnknownTool, req.ToolName))
		d.logger.Warn("tool call rejected", "tool", req.ToolName, "id", req.ID, "kind", res.Outcome.Kind)
		return res
	}
	res.ToolName = desc.Name

	var candidates []candidate
	for _, src := range desc.Chain() {
		if a, ok := d.adapters[src]; ok {
			candidates = append(candidates, candidate{src: src, adapter: a})
		}
	}
	if len(candidates) == 0 {
		res.Outcome = tools.Failed(fmt.Errorf("%w: no adapter configured for %s", tools.ErrAdapterUnavailable, desc.Name))
		return res
	}

	args := desc.Parameters.ApplyDefaults(req.Arguments)
	res.Arguments = args
	if err := desc.Parameters.Validate(args); err != nil {
		res.Outcome = tools.Failed(fmt.Errorf("%w: %s: %v", tools.ErrInvalidArguments, desc.Name, err))
		d.logger.Warn("tool call rejected", "tool", desc.Name, "id", req.ID, "kind", res.Outcome.Kind, "error", err)
		return res
	}

	var (
		started time.Time
		lastErr error
	)
	for i, c := range candidates {
		if !d.ready(ctx, c.adapter) {
			lastErr = fmt.Errorf("%w: %s is not connected", tools.ErrAdapterUnavailable, c.adapter.Name())
			d.logger.Debug("skipping unavailable adapter", "tool", desc.Name, "adapter", c.adapter.Name())
			d.noteFallback(ctx, desc.Name, c.src, candidates[i+1:])
			continue
		}

		if started.IsZero() {
			started = time.Now()
		}
		res.Source = c.src

		callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
		raw, err := c.adapter.CallTool(callCtx, desc.NameFor(c.src), args)
		cancel()
		res.ElapsedMs = time.Since(started).Milliseconds()

		if err == nil {
			res.Outcome = tools.Succeeded(raw.Payload)
			d.logger.Info("tool call settled", "tool", desc.Name, "id", req.ID, "source", c.src, "elapsed_ms", res.ElapsedMs, "success", true)
			return res
		}

		lastErr = err
		d.logger.Warn("tool call failed", "tool", desc.Name, "id", req.ID, "source", c.src, "elapsed_ms", res.ElapsedMs, "error", err)
		d.noteFallback(ctx, desc.Name, c.src, candidates[i+1:])
	}

	res.Outcome = tools.Failed(lastErr)
	return res
}

// ready reports whether a may be called now. A hosted adapter that is not
// connected gets exactly one fresh probe before it is skipped.
func (d *Dispatcher) ready(ctx context.Context, a transport.Adapter) bool {
	if a.IsAvailable() {
		return true
	}
	if !a.Source().IsHosted() {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, d.opts.ProbeTimeout)
	defer cancel()
	return a.Initialize(probeCtx)
}

func (d *Dispatcher) noteFallback(ctx context.Context, tool string, from tools.Source, rest []candidate) {
	if len(rest) == 0 {
		return
	}
	to := rest[0].src
	d.logger.Info("falling back to next adapter", "tool", tool, "from", from, "to", to)
	for _, r := range d.recorders {
		r.RecordFallback(context.WithoutCancel(ctx), tool, from, to)
	}
}

// ExecuteAll runs independent requests concurrently and returns exactly one
// result per request, in request order regardless of completion order. Request
// ids are expected to be unique within the batch.
func (d *Dispatcher) ExecuteAll(ctx context.Context, reqs []tools.ToolCallRequest) []tools.ToolCallResult {
	var (
		mu      sync.Mutex
		settled = make(map[string]tools.ToolCallResult, len(reqs))
		byIndex = make([]tools.ToolCallResult, len(reqs))
	)

	g := new(errgroup.Group)
	g.SetLimit(d.opts.MaxConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res := d.Execute(ctx, req)
			mu.Lock()
			settled[req.ID] = res
			byIndex[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(settled) != len(reqs) {
		// Duplicate ids: the map collapsed entries, so fall back to positions.
		return byIndex
	}
	out := make([]tools.ToolCallResult, len(reqs))
	for i, req := range reqs {
		out[i] = settled[req.ID]
	}
	return out
}
