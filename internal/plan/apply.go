package plan

import (
	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/intercept"
)

// Apply registers every rule of p on b, in order. sink may be nil.
// It returns the configuration's accumulated errors.
func Apply[I any](b *intercept.ConfigurationBuilder[I], p *Plan, sink Sink) error {
	for i := range p.Rules {
		r := &p.Rules[i]

		var rb *intercept.RuleBuilder[I]
		switch {
		case r.Select.All:
			rb = b.InterceptAll()
		case r.Select.AllMembers:
			rb = b.InterceptAllMembers()
		default:
			rb = b.InterceptSelector(&r.Select)
		}
		for _, h := range r.Hooks {
			attach(rb, r.ID, h, sink)
		}
	}
	return b.Err()
}

func attach[I any](rb *intercept.RuleBuilder[I], rule string, h Hook, sink Sink) {
	report := func(inv *engine.Invocation) {
		if sink != nil {
			sink.Hook(inv, h.On, rule)
		}
	}
	// effect is the hook's error result: nil unless the action fails.
	effect := func() error {
		if h.Action == ActionFail {
			return &Failure{Rule: rule, Message: h.Message}
		}
		return nil
	}

	switch h.On {
	case engine.HookBefore:
		rb.OnBefore(func(inv *engine.Invocation) error {
			report(inv)
			return effect()
		})
	case engine.HookAfter:
		rb.OnAfter(func(inv *engine.Invocation) error {
			report(inv)
			return effect()
		})
	case engine.HookInvoke:
		rb.OnInvoke(func(inv *engine.Invocation) (any, error) {
			report(inv)
			if err := effect(); err != nil {
				return nil, err
			}
			return h.Value, nil
		})
	case engine.HookReturn:
		rb.OnReturn(func(inv *engine.Invocation, v any) (any, error) {
			report(inv)
			if err := effect(); err != nil {
				return v, err
			}
			if h.Action == ActionReturn {
				return h.Value, nil
			}
			return v, nil
		})
	case engine.HookCatch:
		rb.OnCatch(func(inv *engine.Invocation, _ error) error {
			report(inv)
			return effect()
		})
	case engine.HookFinally:
		rb.OnFinally(func(inv *engine.Invocation) error {
			report(inv)
			return effect()
		})
	}
}
