// In file: internal/tools/registry.go
package tools

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultSynonyms are historical spellings the upstream AI backend is known to
// emit for tools that have since been renamed. Keys and values are canonical.
var DefaultSynonyms = map[string]string{
	"search":            "brave_search",
	"web_search":        "brave_search",
	"brave_web_search":  "brave_search",
	"calculator":        "calculate",
	"get_weather":       "get_current_weather",
	"getcurrentweather": "get_current_weather",
}

// Canonical normalizes a tool name for lookup: lower case, with hyphens, dots
// and spaces folded to underscores.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
}

type entry struct {
	desc ToolDescriptor
	seq  uint64
}

// snapshot is an immutable view of the registry. Writers build a new snapshot
// and swap it in atomically, so readers never observe a partial update.
type snapshot struct {
	entries map[string]entry
	aliases map[string]string
	nextSeq uint64
}

type conditional struct {
	desc   ToolDescriptor
	active func() bool
}

// Registry holds the catalogue of tool descriptors. Reads are lock-free; writes
// are serialized and published copy-on-write.
type Registry struct {
	mu       sync.Mutex
	snap     atomic.Pointer[snapshot]
	fallback atomic.Pointer[conditional]
	synonyms map[string]string
}

// NewRegistry creates an empty registry. extraSynonyms are merged over
// DefaultSynonyms; both sides are canonicalized.
func NewRegistry(extraSynonyms map[string]string) *Registry {
	r := &Registry{synonyms: make(map[string]string, len(DefaultSynonyms)+len(extraSynonyms))}
	for k, v := range DefaultSynonyms {
		r.synonyms[Canonical(k)] = Canonical(v)
	}
	for k, v := range extraSynonyms {
		r.synonyms[Canonical(k)] = Canonical(v)
	}
	r.snap.Store(&snapshot{entries: map[string]entry{}, aliases: map[string]string{}})
	return r
}

// Register adds a descriptor, replacing any existing one with the same
// canonical name. A replaced descriptor keeps its position in the listing
// unless its source changed.
func (r *Registry) Register(desc ToolDescriptor) error {
	if strings.TrimSpace(desc.Name) == "" {
		return errors.New("tool descriptor has no name")
	}
	if desc.Source == "" {
		desc.Source = SourceLocal
	}
	if !desc.Source.Valid() {
		return errors.New("tool descriptor " + desc.Name + " has unknown source " + string(desc.Source))
	}
	desc = desc.clone()
	key := Canonical(desc.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.snap.Load()
	next := &snapshot{
		entries: make(map[string]entry, len(old.entries)+1),
		aliases: make(map[string]string, len(old.aliases)+len(desc.Aliases)),
		nextSeq: old.nextSeq,
	}
	for k, v := range old.entries {
		next.entries[k] = v
	}
	for k, v := range old.aliases {
		if v != key {
			next.aliases[k] = v
		}
	}

	seq := next.nextSeq
	if prev, ok := old.entries[key]; ok && prev.desc.Source == desc.Source {
		seq = prev.seq
	} else {
		next.nextSeq++
	}
	next.entries[key] = entry{desc: desc, seq: seq}
	for _, a := range desc.Aliases {
		if ak := Canonical(a); ak != key {
			next.aliases[ak] = key
		}
	}

	r.snap.Store(next)
	return nil
}

// SetSearchFallback installs the local search descriptor that List appends, and
// Resolve serves, only while active reports true and no registered descriptor
// has the same name. The gateway passes a predicate that is true when no hosted
// search backend is connected and the local credential is present.
func (r *Registry) SetSearchFallback(desc ToolDescriptor, active func() bool) {
	desc = desc.clone()
	desc.Source = SourceLocal
	r.fallback.Store(&conditional{desc: desc, active: active})
}

// Key returns the lookup key for name: its canonical form with any historical
// synonym applied. Two spellings of one capability share a key.
func (r *Registry) Key(name string) string {
	key := Canonical(name)
	if syn, ok := r.synonyms[key]; ok {
		return syn
	}
	return key
}

// Resolve looks a tool up by any of its spellings. Absence is reported through
// the boolean and never as a panic or error.
func (r *Registry) Resolve(name string) (ToolDescriptor, bool) {
	key := Canonical(name)
	if key == "" {
		return ToolDescriptor{}, false
	}
	s := r.snap.Load()
	if d, ok := s.lookup(key); ok {
		return d, true
	}
	if syn, ok := r.synonyms[key]; ok {
		if d, ok := s.lookup(syn); ok {
			return d, true
		}
		key = syn
	}
	if f := r.activeFallback(s); f != nil && f.matches(key) {
		return f.desc.clone(), true
	}
	return ToolDescriptor{}, false
}

func (s *snapshot) lookup(key string) (ToolDescriptor, bool) {
	if e, ok := s.entries[key]; ok {
		return e.desc.clone(), true
	}
	if target, ok := s.aliases[key]; ok {
		if e, ok := s.entries[target]; ok {
			return e.desc.clone(), true
		}
	}
	return ToolDescriptor{}, false
}

func (c *conditional) matches(key string) bool {
	if Canonical(c.desc.Name) == key {
		return true
	}
	for _, a := range c.desc.Aliases {
		if Canonical(a) == key {
			return true
		}
	}
	return false
}

func (r *Registry) activeFallback(s *snapshot) *conditional {
	f := r.fallback.Load()
	if f == nil || f.active == nil || !f.active() {
		return nil
	}
	if _, taken := s.entries[Canonical(f.desc.Name)]; taken {
		return nil
	}
	return f
}

// List returns the catalogue in its stable order: local tools first, then each
// hosted backend's tools in the order that backend reported them, then the
// local search fallback when it is active.
func (r *Registry) List() []ToolDescriptor {
	s := r.snap.Load()
	entries := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		gi, gj := listGroup(entries[i].desc.Source), listGroup(entries[j].desc.Source)
		if gi != gj {
			return gi < gj
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]ToolDescriptor, 0, len(entries)+1)
	for _, e := range entries {
		out = append(out, e.desc.clone())
	}
	if f := r.activeFallback(s); f != nil {
		out = append(out, f.desc.clone())
	}
	return out
}

// Definitions returns the listing in the function-calling shape for the LLM.
func (r *Registry) Definitions() []Tool {
	descs := r.List()
	defs := make([]Tool, len(descs))
	for i, d := range descs {
		defs[i] = d.Definition()
	}
	return defs
}

// Len returns the number of registered descriptors, excluding the fallback.
func (r *Registry) Len() int {
	return len(r.snap.Load().entries)
}

func listGroup(s Source) int {
	switch s {
	case SourceLocal:
		return 0
	case SourceHostedPrimary:
		return 1
	case SourceHostedSecondary:
		return 2
	}
	return 3
}
