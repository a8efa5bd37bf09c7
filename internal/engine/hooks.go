package engine

import (
	"fmt"
	"slices"
)

// HookKind tags a callback with the pipeline phase it runs in.
type HookKind int

const (
	HookBefore HookKind = iota
	HookAfter
	HookInvoke
	HookReturn
	HookCatch
	HookFinally
)

var hookKindNames = [...]string{"before", "after", "invoke", "return", "catch", "finally"}

func (k HookKind) String() string {
	if int(k) < len(hookKindNames) && k >= 0 {
		return hookKindNames[k]
	}
	return fmt.Sprintf("hook(%d)", int(k))
}

// ParseHookKind converts a phase name to a HookKind.
func ParseHookKind(s string) (HookKind, error) {
	for i, name := range hookKindNames {
		if name == s {
			return HookKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hook kind %q", s)
}

// BeforeFunc runs before the call. Returning an error aborts the call.
type BeforeFunc func(inv *Invocation) error

// AfterFunc runs after a successful call and its OnReturn chain.
type AfterFunc func(inv *Invocation) error

// InvokeFunc replaces the call. Its value becomes the result; its error
// becomes the call failure.
type InvokeFunc func(inv *Invocation) (any, error)

// ReturnFunc receives the current result and returns its replacement.
type ReturnFunc func(inv *Invocation, value any) (any, error)

// CatchFunc observes a call failure. It cannot suppress it.
type CatchFunc func(inv *Invocation, err error) error

// FinallyFunc runs once the call has succeeded or failed.
type FinallyFunc func(inv *Invocation) error

// Hooks holds the callbacks of one rule. Callbacks of the same kind run in
// the order they were added.
type Hooks struct {
	Before  []BeforeFunc
	After   []AfterFunc
	Invoke  []InvokeFunc
	Return  []ReturnFunc
	Catch   []CatchFunc
	Finally []FinallyFunc
}

// Len returns the total number of callbacks.
func (h Hooks) Len() int {
	return len(h.Before) + len(h.After) + len(h.Invoke) + len(h.Return) + len(h.Catch) + len(h.Finally)
}

// Count returns the number of callbacks of kind k.
func (h Hooks) Count(k HookKind) int {
	switch k {
	case HookBefore:
		return len(h.Before)
	case HookAfter:
		return len(h.After)
	case HookInvoke:
		return len(h.Invoke)
	case HookReturn:
		return len(h.Return)
	case HookCatch:
		return len(h.Catch)
	case HookFinally:
		return len(h.Finally)
	default:
		return 0
	}
}

func (h Hooks) clone() Hooks {
	return Hooks{
		Before:  slices.Clone(h.Before),
		After:   slices.Clone(h.After),
		Invoke:  slices.Clone(h.Invoke),
		Return:  slices.Clone(h.Return),
		Catch:   slices.Clone(h.Catch),
		Finally: slices.Clone(h.Finally),
	}
}
