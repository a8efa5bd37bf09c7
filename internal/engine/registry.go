package engine

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// Registry owns the interception rules of every pairing.
//
// Thread-safety model:
//   - Register, Replace and UnregisterAll take the pairing's lock
//   - RulesFor and Rules read an immutable snapshot without locking
//
// A call therefore sees either the rule set before a registration or the one
// after it, never a partial update.
type Registry struct {
	mu      sync.Mutex
	entries map[Pairing]*ruleSet
}

type ruleSet struct {
	mu         sync.Mutex
	generation uint64
	snapshot   atomic.Pointer[[]Rule]
}

// Handle identifies a registered rule so its callbacks can be replaced.
type Handle struct {
	pairing    Pairing
	generation uint64
	index      int
	valid      bool
}

// Valid reports whether h was issued by Register.
func (h Handle) Valid() bool { return h.valid }

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Pairing]*ruleSet)}
}

func (r *Registry) entry(p Pairing) *ruleSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.entries[p]
	if !ok {
		rs = &ruleSet{}
		r.entries[p] = rs
	}
	return rs
}

func (rs *ruleSet) load() []Rule {
	if p := rs.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

// Register appends rule to the pairing. Insertion order is the order in
// which matching rules run.
func (r *Registry) Register(p Pairing, rule Rule) Handle {
	rs := r.entry(p)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rule.Hooks = rule.Hooks.clone()
	cur := rs.load()
	next := make([]Rule, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = rule
	rs.snapshot.Store(&next)

	return Handle{pairing: p, generation: rs.generation, index: len(cur), valid: true}
}

// Replace swaps the rule behind h, keeping its position.
// Returns ErrStaleHandle if the pairing was cleared since h was issued.
func (r *Registry) Replace(h Handle, rule Rule) error {
	if !h.valid {
		return fmt.Errorf("replace rule: %w", ErrStaleHandle)
	}
	rs := r.entry(h.pairing)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	cur := rs.load()
	if h.generation != rs.generation || h.index >= len(cur) {
		return fmt.Errorf("replace rule %d of %s: %w", h.index, h.pairing, ErrStaleHandle)
	}
	rule.Hooks = rule.Hooks.clone()
	next := slices.Clone(cur)
	next[h.index] = rule
	rs.snapshot.Store(&next)
	return nil
}

// UnregisterAll clears the pairing's rules. Handles issued before the call
// become stale.
func (r *Registry) UnregisterAll(p Pairing) {
	rs := r.entry(p)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.generation++
	rs.snapshot.Store(nil)
}

// Rules returns the pairing's rules in registration order.
func (r *Registry) Rules(p Pairing) []Rule {
	return slices.Clone(r.entry(p).load())
}

// RulesFor returns the rules of the invocation's pairing whose selector
// matches it, in registration order.
func (r *Registry) RulesFor(inv *Invocation) []Rule {
	var matched []Rule
	for _, rule := range r.entry(inv.Pairing()).load() {
		if rule.Selector != nil && rule.Selector.Matches(inv) {
			matched = append(matched, rule)
		}
	}
	return matched
}
