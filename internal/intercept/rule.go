package intercept

import (
	"github.com/roach88/aspect/internal/engine"
)

// RuleBuilder attaches callbacks to the rule started by the last Intercept*
// call. Callbacks of one kind run in the order they are added.
//
// The rule is registered when it is selected, and every On* or Do* call
// swaps in a copy carrying one more callback. A call dispatched while the
// chain is still being built sees the callbacks attached so far, never a
// half-written hook list. Finish configuring before handing out the proxy
// when a rule's callbacks must apply together.
//
// A RuleBuilder whose selection failed accepts callbacks and drops them.
type RuleBuilder[I any] struct {
	parent *ConfigurationBuilder[I]
	rule   engine.Rule
	handle engine.Handle
	active bool
}

// update commits the rule after fn changed its hooks.
func (r *RuleBuilder[I]) update(fn func(h *engine.Hooks)) *RuleBuilder[I] {
	if !r.active {
		return r
	}
	fn(&r.rule.Hooks)
	if err := r.parent.ic.engine.Registry().Replace(r.handle, r.rule); err != nil {
		r.active = false
		r.parent.fail(err)
	}
	return r
}

// OnBefore runs fn before the call. An error aborts the call.
func (r *RuleBuilder[I]) OnBefore(fn engine.BeforeFunc) *RuleBuilder[I] {
	return r.update(func(h *engine.Hooks) { h.Before = append(h.Before, fn) })
}

// OnAfter runs fn after a successful call.
func (r *RuleBuilder[I]) OnAfter(fn engine.AfterFunc) *RuleBuilder[I] {
	return r.update(func(h *engine.Hooks) { h.After = append(h.After, fn) })
}

// OnInvoke replaces the call with fn. If several matching rules set one, the
// last registered wins.
func (r *RuleBuilder[I]) OnInvoke(fn engine.InvokeFunc) *RuleBuilder[I] {
	return r.update(func(h *engine.Hooks) { h.Invoke = append(h.Invoke, fn) })
}

// OnReturn replaces a successful result with the value fn returns.
func (r *RuleBuilder[I]) OnReturn(fn engine.ReturnFunc) *RuleBuilder[I] {
	return r.update(func(h *engine.Hooks) { h.Return = append(h.Return, fn) })
}

// OnCatch runs fn when the call fails. The failure still propagates.
func (r *RuleBuilder[I]) OnCatch(fn engine.CatchFunc) *RuleBuilder[I] {
	return r.update(func(h *engine.Hooks) { h.Catch = append(h.Catch, fn) })
}

// OnFinally runs fn once the call has succeeded or failed.
func (r *RuleBuilder[I]) OnFinally(fn engine.FinallyFunc) *RuleBuilder[I] {
	return r.update(func(h *engine.Hooks) { h.Finally = append(h.Finally, fn) })
}

// DoBefore is OnBefore for callbacks that need neither the invocation nor
// an error result.
func (r *RuleBuilder[I]) DoBefore(fn func()) *RuleBuilder[I] {
	return r.OnBefore(func(*engine.Invocation) error { fn(); return nil })
}

// DoAfter is the parameterless form of OnAfter.
func (r *RuleBuilder[I]) DoAfter(fn func()) *RuleBuilder[I] {
	return r.OnAfter(func(*engine.Invocation) error { fn(); return nil })
}

// DoFinally is the parameterless form of OnFinally.
func (r *RuleBuilder[I]) DoFinally(fn func()) *RuleBuilder[I] {
	return r.OnFinally(func(*engine.Invocation) error { fn(); return nil })
}

// And returns to the configuration to start another rule.
func (r *RuleBuilder[I]) And() *ConfigurationBuilder[I] {
	return r.parent
}

// Err returns the configuration's errors.
func (r *RuleBuilder[I]) Err() error {
	return r.parent.Err()
}
