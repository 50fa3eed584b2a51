// In file: internal/gateway/catalog.go
package gateway

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dileep-u-k/tool-gateway/internal/logging"
	"github.com/dileep-u-k/tool-gateway/internal/tools"
	"github.com/dileep-u-k/tool-gateway/internal/transport"
)

// ToolPolicy overrides the adapter chain of one tool.
type ToolPolicy struct {
	Source   tools.Source
	Fallback []tools.Source
}

// CatalogOptions configures BuildCatalog.
type CatalogOptions struct {
	// Policies are keyed by any spelling of the tool name.
	Policies map[string]ToolPolicy
	// Search is the local search tool used as fallback for hosted search. It is
	// nil when no local search credential is configured.
	Search       tools.ToolExecutor
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

type discovered struct {
	bySource map[tools.Source]tools.ToolDescriptor
	aliases  []string
}

// BuildCatalog fills the registry at startup. Local executors are registered
// with the local adapter; each hosted backend is probed once and the tools it
// reports are merged in. A tool reported by several adapters becomes one
// descriptor whose chain is the union of its sources in preference order
// (hosted-primary, hosted-secondary, local), unless a policy overrides it.
//
// Hosted backends that fail the probe contribute nothing; the dispatcher
// re-probes them on demand for tools that list them in their chain.
func BuildCatalog(ctx context.Context, registry *tools.Registry, local *transport.Local, executors []tools.ToolExecutor, hosted []*transport.Hosted, opts CatalogOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}

	merged := map[string]*discovered{}
	// order holds each source's keys in the order that source reported them.
	order := map[tools.Source][]string{}
	add := func(src tools.Source, d tools.ToolDescriptor) {
		key := registry.Key(d.Name)
		entry, ok := merged[key]
		if !ok {
			entry = &discovered{bySource: map[tools.Source]tools.ToolDescriptor{}}
			merged[key] = entry
		}
		if _, dup := entry.bySource[src]; dup {
			return
		}
		if tools.Canonical(d.Name) != key {
			entry.aliases = append(entry.aliases, d.Name)
		}
		entry.bySource[src] = d
		order[src] = append(order[src], key)
	}

	for _, exec := range executors {
		local.Register(exec)
		add(tools.SourceLocal, exec.Descriptor())
	}

	var searchBackends []*transport.Hosted
	for _, h := range hosted {
		if h.ProvidesSearch() {
			searchBackends = append(searchBackends, h)
		}
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		remote, err := h.ListTools(probeCtx)
		cancel()
		if err != nil {
			logger.Warn("hosted backend not available at startup", "backend", h.Name(), "error", err)
			continue
		}
		logger.Info("discovered hosted tools", "backend", h.Name(), "source", h.Source(), "count", len(remote))
		for _, d := range remote {
			add(h.Source(), d)
		}
	}

	var searchKey string
	if opts.Search != nil {
		local.Register(opts.Search)
		searchDesc := opts.Search.Descriptor()
		searchKey = registry.Key(searchDesc.Name)
		registry.SetSearchFallback(searchDesc, func() bool {
			for _, h := range searchBackends {
				if h.IsAvailable() {
					return false
				}
			}
			return true
		})
	}

	policies := make(map[string]ToolPolicy, len(opts.Policies))
	for name, p := range opts.Policies {
		policies[registry.Key(name)] = p
	}

	descs := map[string]tools.ToolDescriptor{}
	for key, entry := range merged {
		d := mergeDescriptor(key, entry)
		if key == searchKey && !containsSource(d.Chain(), tools.SourceLocal) {
			d.Fallback = append(d.Fallback, tools.SourceLocal)
			d.RemoteNames[tools.SourceLocal] = opts.Search.Descriptor().Name
		}
		if p, ok := policies[key]; ok {
			if p.Source != "" {
				d.Source = p.Source
			}
			d.Fallback = append([]tools.Source(nil), p.Fallback...)
		}
		descs[key] = d
	}

	// Register in listing order: each tool under its preferred source, in the
	// order that source reported it.
	registered := map[string]bool{}
	for _, src := range []tools.Source{tools.SourceLocal, tools.SourceHostedPrimary, tools.SourceHostedSecondary} {
		for _, key := range order[src] {
			d := descs[key]
			if registered[key] || d.Source != src {
				continue
			}
			if err := registry.Register(d); err != nil {
				return err
			}
			registered[key] = true
		}
	}
	// Tools moved by policy to a source that never reported them.
	var rest []string
	for key := range descs {
		if !registered[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := registry.Register(descs[key]); err != nil {
			return err
		}
	}

	logger.Info("tool catalogue ready", "tools", registry.Len(), "hosted_backends", len(hosted))
	return nil
}

// mergeDescriptor combines the per-source views of one tool. Metadata comes from
// the preferred source; every other source becomes a fallback. A tool reported
// under a historical synonym is renamed to its key and keeps the old spelling as
// an alias.
func mergeDescriptor(key string, entry *discovered) tools.ToolDescriptor {
	sources := make([]tools.Source, 0, len(entry.bySource))
	for src := range entry.bySource {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return preference(sources[i]) < preference(sources[j]) })

	d := entry.bySource[sources[0]]
	d.Source = sources[0]
	d.Fallback = append([]tools.Source(nil), sources[1:]...)
	d.Aliases = nil
	d.RemoteNames = map[tools.Source]string{}
	for src, v := range entry.bySource {
		d.RemoteNames[src] = v.Name
	}
	for _, v := range entry.bySource {
		d.Aliases = append(d.Aliases, v.Aliases...)
	}
	d.Aliases = append(d.Aliases, entry.aliases...)
	if tools.Canonical(d.Name) != key {
		d.Name = key
	}
	return d
}

func preference(s tools.Source) int {
	switch s {
	case tools.SourceHostedPrimary:
		return 0
	case tools.SourceHostedSecondary:
		return 1
	}
	return 2
}

func containsSource(chain []tools.Source, s tools.Source) bool {
	for _, c := range chain {
		if c == s {
			return true
		}
	}
	return false
}
