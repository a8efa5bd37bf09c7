package engine

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/roach88/aspect/internal/member"
)

// Pairing identifies an interface and the implementation proxied behind it.
// Rules are owned per pairing.
type Pairing struct {
	Interface      reflect.Type
	Implementation reflect.Type
}

// PairingOf returns the pairing of interface I and implementation Impl.
func PairingOf[I, Impl any]() Pairing {
	return Pairing{Interface: reflect.TypeFor[I](), Implementation: reflect.TypeFor[Impl]()}
}

func (p Pairing) String() string {
	return fmt.Sprintf("%v=>%v", p.Interface, p.Implementation)
}

// OutcomeState is the progress of a call.
type OutcomeState int

const (
	OutcomePending OutcomeState = iota
	OutcomeValue
	OutcomeFailure
)

func (s OutcomeState) String() string {
	switch s {
	case OutcomeValue:
		return "value"
	case OutcomeFailure:
		return "failure"
	default:
		return "pending"
	}
}

// Outcome is the result of a call: pending, a value, or a failure.
type Outcome struct {
	State OutcomeState
	Value any
	Err   error
}

// Invocation describes one call passing through a proxy.
//
// The engine creates one per call and is the only writer of its outcome.
// Hooks read it; OnInvoke and OnReturn change the outcome only through their
// return values.
type Invocation struct {
	id      string
	seq     int64
	pairing Pairing
	target  any
	sig     member.Signature
	args    []any

	mu           sync.Mutex
	outcome      Outcome
	completedSeq int64
}

// NewInvocation builds an invocation outside the engine, e.g. to evaluate a
// predicate or a selector in tests.
func NewInvocation(pairing Pairing, target any, sig member.Signature, args ...any) *Invocation {
	return &Invocation{pairing: pairing, target: target, sig: sig, args: args}
}

// ID returns the call ID.
func (inv *Invocation) ID() string { return inv.id }

// Seq returns the logical time at which the call started.
func (inv *Invocation) Seq() int64 { return inv.seq }

// Pairing returns the interface/implementation pairing of the proxy.
func (inv *Invocation) Pairing() Pairing { return inv.pairing }

// Target returns the implementation instance behind the proxy.
func (inv *Invocation) Target() any { return inv.target }

// Signature returns the member actually invoked.
func (inv *Invocation) Signature() member.Signature { return inv.sig }

// Name is shorthand for Signature().Name(), convenient in predicates.
func (inv *Invocation) Name() string { return inv.sig.Name() }

// Args returns a copy of the call arguments.
func (inv *Invocation) Args() []any { return slices.Clone(inv.args) }

// Arg returns argument i, or nil when out of range.
func (inv *Invocation) Arg(i int) any {
	if i < 0 || i >= len(inv.args) {
		return nil
	}
	return inv.args[i]
}

// Outcome returns the current outcome. It is pending until the call returns.
func (inv *Invocation) Outcome() Outcome {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.outcome
}

// CompletedSeq returns the logical time at which the call completed, or 0.
func (inv *Invocation) CompletedSeq() int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.completedSeq
}

func (inv *Invocation) setOutcome(o Outcome) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.outcome = o
}

func (inv *Invocation) markCompleted(seq int64) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.completedSeq = seq
}
