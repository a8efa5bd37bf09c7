// Package plan compiles declarative interception plans written in CUE and
// applies them to an interception configuration.
//
// A plan file declares rules under the top-level "rule" field:
//
//	rule: "double-return": {
//		select: member: "Return"
//		hooks: [
//			{on: "before", action: "trace"},
//			{on: "return", action: "return", value: 2},
//		]
//	}
//
// Rules register in the order CUE reports them. Every hook reports to the
// Sink passed to Apply before its action takes effect.
package plan

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/member"
	"github.com/roach88/aspect/internal/trace"
)

// Plan is an ordered list of rules.
type Plan struct {
	Rules []Rule
}

// Rule is one compiled plan rule.
type Rule struct {
	ID     string
	Select Select
	Hooks  []Hook
}

// Wildcard is the args entry that matches any argument.
const Wildcard = "*"

// Select describes which calls a rule covers. All and AllMembers are
// blanket selections; otherwise every set field must match.
type Select struct {
	Member     string
	Kind       *member.Kind
	Params     []string
	Async      *bool
	Args       []any
	Match      *regexp.Regexp
	All        bool
	AllMembers bool
}

var _ engine.Selector = (*Select)(nil)

// Matches reports whether the call is covered by the selection. Blanket
// selections are resolved against the member table by Apply and never
// match here.
func (s *Select) Matches(inv *engine.Invocation) bool {
	if s.All || s.AllMembers {
		return false
	}
	sig := inv.Signature()
	if s.Member != "" && sig.Name() != s.Member {
		return false
	}
	if s.Match != nil && !s.Match.MatchString(sig.Name()) {
		return false
	}
	if s.Kind != nil && sig.Kind() != *s.Kind {
		return false
	}
	if s.Async != nil && sig.Async() != *s.Async {
		return false
	}
	if s.Params != nil {
		params := sig.Params()
		if len(params) != len(s.Params) {
			return false
		}
		for i, p := range params {
			if !typeNamed(p, s.Params[i]) {
				return false
			}
		}
	}
	if s.Args != nil {
		if len(s.Args) != sig.Arity() {
			return false
		}
		for i, want := range s.Args {
			if want == Wildcard {
				continue
			}
			if !trace.Equal(trace.ValueOf(want), trace.ValueOf(inv.Arg(i))) {
				return false
			}
		}
	}
	return true
}

func (s *Select) String() string {
	switch {
	case s.All:
		return "all"
	case s.AllMembers:
		return "all members"
	}
	var parts []string
	if s.Kind != nil {
		parts = append(parts, s.Kind.String())
	}
	if s.Member != "" {
		parts = append(parts, s.Member)
	}
	if s.Match != nil {
		parts = append(parts, "~"+s.Match.String())
	}
	if s.Params != nil {
		parts = append(parts, "("+strings.Join(s.Params, ",")+")")
	}
	if s.Async != nil && *s.Async {
		parts = append(parts, "async")
	}
	return strings.Join(parts, " ")
}

// typeNamed compares a parameter type with a plan type name. "any" names
// the empty interface.
func typeNamed(t reflect.Type, name string) bool {
	if t == nil {
		return false
	}
	if name == "any" {
		return t.Kind() == reflect.Interface && t.NumMethod() == 0
	}
	return t.String() == name
}

// Action is what a hook does when it runs.
type Action string

const (
	// ActionTrace only reports to the sink.
	ActionTrace Action = "trace"
	// ActionReturn replaces the result with Value. Only valid on "return".
	ActionReturn Action = "return"
	// ActionInvoke replaces the call with Value. Only valid on "invoke".
	ActionInvoke Action = "invoke"
	// ActionFail makes the hook fail with Message.
	ActionFail Action = "fail"
)

// Hook is one callback of a rule.
type Hook struct {
	On      engine.HookKind
	Action  Action
	Value   any
	Message string
}

// Failure is the error produced by a "fail" hook.
type Failure struct {
	Rule    string
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("plan rule %q: %s", f.Rule, f.Message)
}

// Sink receives a report every time a plan hook runs. trace.Log
// implements it.
type Sink interface {
	Hook(inv *engine.Invocation, hook engine.HookKind, rule string)
}
