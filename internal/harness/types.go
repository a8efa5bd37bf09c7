package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/aspect/internal/trace"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every call met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Events is the full trace in log order.
	Events []trace.Event `json:"-"`

	// Errors holds one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// EventPattern matches trace events. Empty fields match anything.
//
// Member matches either the full signature string ("Service.Perform(int)")
// or the bare member name ("Perform").
type EventPattern struct {
	Kind    string `yaml:"kind,omitempty"`
	Member  string `yaml:"member,omitempty"`
	Hook    string `yaml:"hook,omitempty"`
	Rule    string `yaml:"rule,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
}

// Matches reports whether e satisfies every set field of p.
func (p EventPattern) Matches(e trace.Event) bool {
	if p.Kind != "" && string(e.Kind) != p.Kind {
		return false
	}
	if p.Member != "" && !memberMatches(e.Member, p.Member) {
		return false
	}
	if p.Hook != "" && e.Hook != p.Hook {
		return false
	}
	if p.Rule != "" && e.Rule != p.Rule {
		return false
	}
	if p.Outcome != "" && e.Outcome != p.Outcome {
		return false
	}
	return true
}

func (p EventPattern) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("kind", p.Kind)
	add("member", p.Member)
	add("hook", p.Hook)
	add("rule", p.Rule)
	add("outcome", p.Outcome)
	if len(parts) == 0 {
		return "{any event}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func memberMatches(signature, want string) bool {
	return signature == want || MemberName(signature) == want
}

// MemberName extracts the bare member name from a signature string:
// "set Service.Name(string)" and "get Service.Name" give "Name",
// "Service.Perform[int](int)" gives "Perform".
func MemberName(signature string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(signature, "get "), "set ")
	if i := strings.IndexAny(s, "[( "); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func (s TargetState) String() string {
	var parts []string
	if s.Name != nil {
		parts = append(parts, fmt.Sprintf("name=%q", *s.Name))
	}
	if s.Description != nil {
		parts = append(parts, fmt.Sprintf("description=%q", *s.Description))
	}
	if s.Executed != nil {
		parts = append(parts, fmt.Sprintf("executed=%t", *s.Executed))
	}
	if s.Closed != nil {
		parts = append(parts, fmt.Sprintf("closed=%t", *s.Closed))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
