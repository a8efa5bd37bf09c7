package engine

import (
	"reflect"

	"github.com/roach88/aspect/internal/async"
	"github.com/roach88/aspect/internal/member"
)

// dispatch runs one call through the hook pipeline. result is the Go type
// the member returns; replacement values are converted to it.
//
// call starts the real member and returns its task. Synchronous members pass
// an already-completed task, so the whole pipeline runs on the calling
// goroutine. For asynchronous members the completion phase runs on whichever
// goroutine completes the member's task.
func (e *Engine) dispatch(pairing Pairing, target any, sig member.Signature, args []any, result reflect.Type, call func() *async.Task[any]) *async.Task[any] {
	inv := &Invocation{
		id:      e.ids.Generate(),
		seq:     e.clock.Next(),
		pairing: pairing,
		target:  target,
		sig:     sig,
		args:    args,
	}
	rules := e.registry.RulesFor(inv)

	e.logger.Debug("dispatching call",
		"call", inv.id,
		"seq", inv.seq,
		"member", sig.String(),
		"rules", len(rules))

	if e.observer != nil {
		e.observer.Invoked(inv)
	}

	if err := e.runBefore(inv, rules); err != nil {
		inv.setOutcome(Outcome{State: OutcomeFailure, Err: err})
		e.finish(inv)
		return async.FromError[any](err)
	}

	task := e.invoke(inv, rules, call)
	return async.Then(task, func(v any, err error) (any, error) {
		return e.complete(inv, rules, result, v, err)
	})
}

func (e *Engine) runBefore(inv *Invocation, rules []Rule) error {
	for i, r := range rules {
		for _, fn := range r.Hooks.Before {
			if err := e.runHook(inv, HookBefore, i, func() error { return fn(inv) }); err != nil {
				return err
			}
		}
	}
	return nil
}

// invoke starts the call, or the replacement registered by the last rule
// carrying an OnInvoke callback.
func (e *Engine) invoke(inv *Invocation, rules []Rule, call func() *async.Task[any]) *async.Task[any] {
	if replace := lastInvoke(rules); replace != nil {
		e.logger.Debug("call replaced",
			"call", inv.id,
			"member", inv.sig.String())
		return async.Settled[any](async.Guard(func() (any, error) { return replace(inv) }))
	}

	task, err := async.Guard(func() (*async.Task[any], error) { return call(), nil })
	if err != nil {
		return async.FromError[any](err)
	}
	if task == nil {
		return async.FromError[any](ErrNilTask)
	}
	return task
}

func lastInvoke(rules []Rule) InvokeFunc {
	for i := len(rules) - 1; i >= 0; i-- {
		if n := len(rules[i].Hooks.Invoke); n > 0 {
			return rules[i].Hooks.Invoke[n-1]
		}
	}
	return nil
}

// complete runs the completion phase: OnReturn and After on success, Catch
// on failure, then Finally in every case. The final value is converted to
// result before After sees it.
func (e *Engine) complete(inv *Invocation, rules []Rule, result reflect.Type, v any, callErr error) (any, error) {
	var hookErr error

	if callErr == nil {
		v, hookErr = e.runReturn(inv, rules, v)
		if hookErr == nil {
			v, hookErr = convertResult(inv.sig, result, v)
		}
		if hookErr == nil {
			inv.setOutcome(Outcome{State: OutcomeValue, Value: v})
			hookErr = e.runAfter(inv, rules)
		}
	} else {
		inv.setOutcome(Outcome{State: OutcomeFailure, Err: callErr})
		hookErr = e.runCatch(inv, rules, callErr)
	}
	if hookErr != nil {
		inv.setOutcome(Outcome{State: OutcomeFailure, Err: hookErr})
	}

	if err := e.runFinally(inv, rules); err != nil && hookErr == nil {
		hookErr = err
		inv.setOutcome(Outcome{State: OutcomeFailure, Err: err})
	}

	// The outcome observers see is what the call site receives.
	e.finish(inv)

	switch {
	case hookErr != nil:
		return nil, hookErr
	case callErr != nil:
		e.logger.Debug("call failed",
			"call", inv.id,
			"member", inv.sig.String(),
			"error", callErr)
		return nil, &InvocationError{Signature: inv.sig, CallID: inv.id, Err: callErr}
	default:
		return v, nil
	}
}

func (e *Engine) runReturn(inv *Invocation, rules []Rule, v any) (any, error) {
	for i, r := range rules {
		for _, fn := range r.Hooks.Return {
			cur := v
			err := e.runHook(inv, HookReturn, i, func() error {
				next, err := fn(inv, cur)
				if err == nil {
					v = next
				}
				return err
			})
			if err != nil {
				return v, err
			}
		}
	}
	return v, nil
}

func (e *Engine) runAfter(inv *Invocation, rules []Rule) error {
	for i, r := range rules {
		for _, fn := range r.Hooks.After {
			if err := e.runHook(inv, HookAfter, i, func() error { return fn(inv) }); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) runCatch(inv *Invocation, rules []Rule, callErr error) error {
	for i, r := range rules {
		for _, fn := range r.Hooks.Catch {
			if err := e.runHook(inv, HookCatch, i, func() error { return fn(inv, callErr) }); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) runFinally(inv *Invocation, rules []Rule) error {
	for i, r := range rules {
		for _, fn := range r.Hooks.Finally {
			if err := e.runHook(inv, HookFinally, i, func() error { return fn(inv) }); err != nil {
				return err
			}
		}
	}
	return nil
}

// runHook calls fn, converting a returned error or a panic into *HookError.
func (e *Engine) runHook(inv *Invocation, kind HookKind, rule int, fn func() error) error {
	_, err := async.Guard(func() (async.Void, error) { return async.Void{}, fn() })
	if err == nil {
		return nil
	}
	e.logger.Warn("hook failed",
		"call", inv.id,
		"member", inv.sig.String(),
		"hook", kind.String(),
		"rule", rule,
		"error", err)
	return &HookError{Kind: kind, Rule: rule, Signature: inv.sig, CallID: inv.id, Err: err}
}

func (e *Engine) finish(inv *Invocation) {
	inv.markCompleted(e.clock.Next())
	if e.observer != nil {
		e.observer.Completed(inv)
	}
}
