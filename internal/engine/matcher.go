package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/aspect/internal/member"
)

// Selector decides whether a rule applies to a call.
type Selector interface {
	Matches(inv *Invocation) bool
	String() string
}

// Rule pairs a selector with the callbacks it contributes.
type Rule struct {
	Selector Selector
	Hooks    Hooks
}

type exactSelector struct {
	sig      member.Signature
	matchers []member.Matcher
}

// Exact matches calls to sig whose arguments satisfy matchers.
//
// The match is determined by:
//  1. Signature equality (kind, name, declaring type, parameters, async
//     flag, generic arity and type arguments)
//  2. Every positional matcher accepting its argument
//
// There must be exactly one matcher per parameter.
func Exact(sig member.Signature, matchers ...member.Matcher) (Selector, error) {
	if len(matchers) != sig.Arity() {
		return nil, fmt.Errorf("exact selector for %s: %d matchers for %d parameters", sig, len(matchers), sig.Arity())
	}
	return &exactSelector{sig: sig, matchers: matchers}, nil
}

// MustExact is like Exact but panics on error.
func MustExact(sig member.Signature, matchers ...member.Matcher) Selector {
	sel, err := Exact(sig, matchers...)
	if err != nil {
		panic(err)
	}
	return sel
}

// AnyArgs returns wildcard matchers for every parameter of sig.
func AnyArgs(sig member.Signature) []member.Matcher {
	params := sig.Params()
	out := make([]member.Matcher, len(params))
	for i, p := range params {
		out[i] = member.Wildcard(p)
	}
	return out
}

func (s *exactSelector) Matches(inv *Invocation) bool {
	if !inv.Signature().Equal(s.sig) {
		return false
	}
	return member.MatchAll(s.matchers, inv.args)
}

func (s *exactSelector) String() string {
	parts := make([]string, len(s.matchers))
	for i, m := range s.matchers {
		parts[i] = m.String()
	}
	return fmt.Sprintf("exact %s [%s]", s.sig, strings.Join(parts, ", "))
}

type anyOfSelector []Selector

// AnyOf matches when any of sels matches.
func AnyOf(sels ...Selector) Selector {
	return anyOfSelector(sels)
}

func (s anyOfSelector) Matches(inv *Invocation) bool {
	for _, sel := range s {
		if sel.Matches(inv) {
			return true
		}
	}
	return false
}

func (s anyOfSelector) String() string {
	parts := make([]string, len(s))
	for i, sel := range s {
		parts[i] = sel.String()
	}
	return "any of (" + strings.Join(parts, "; ") + ")"
}

type predicateSelector struct {
	pred func(*Invocation) bool
}

// Where matches when pred returns true. pred is evaluated on every call.
func Where(pred func(*Invocation) bool) Selector {
	return &predicateSelector{pred: pred}
}

func (s *predicateSelector) Matches(inv *Invocation) bool { return s.pred(inv) }

func (s *predicateSelector) String() string { return "where(predicate)" }

// Scope selects which members a blanket selector enumerates.
type Scope int

const (
	// ScopeDeclared covers members declared directly on the interface.
	ScopeDeclared Scope = iota

	// ScopeAllMembers also covers members promoted from embedded interfaces.
	ScopeAllMembers
)

func (s Scope) String() string {
	if s == ScopeAllMembers {
		return "all members"
	}
	return "all"
}

type blanketSelector struct {
	scope Scope
	keys  map[string]struct{}
}

// Blanket expands to every non-exempt member of table within scope.
// Expansion happens once, here; matching compares the generic definition of
// the invoked member so every instantiation is covered.
func Blanket(table *member.Table, scope Scope) Selector {
	keys := make(map[string]struct{})
	for _, d := range table.Members() {
		if d.Exempt {
			continue
		}
		if scope == ScopeDeclared && !table.Declared(d) {
			continue
		}
		keys[d.Signature.Key()] = struct{}{}
	}
	return &blanketSelector{scope: scope, keys: keys}
}

func (s *blanketSelector) Matches(inv *Invocation) bool {
	_, ok := s.keys[inv.Signature().Definition().Key()]
	return ok
}

func (s *blanketSelector) String() string {
	return fmt.Sprintf("%s (%d members)", s.scope, len(s.keys))
}
