package intercept

import (
	"fmt"

	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/member"
)

// ConfigurationBuilder selects members of interface I. Every Intercept*
// call starts a new rule.
type ConfigurationBuilder[I any] struct {
	ic       *Interceptor
	cfg      *configuration
	contract *engine.Contract[I]
}

func (b *ConfigurationBuilder[I]) fail(err error) {
	b.ic.logger.Error("interception configuration failed",
		"pairing", b.cfg.pairing.String(),
		"error", err)
	b.ic.addError(b.cfg, err)
}

// Err returns every error recorded by this configuration, joined.
func (b *ConfigurationBuilder[I]) Err() error {
	return b.ic.errorOf(b.cfg)
}

// InterceptMethod selects the member called by sample, with the arguments
// it passed. Use member.Any for positions that should match any value.
func (b *ConfigurationBuilder[I]) InterceptMethod(sample func(I)) *RuleBuilder[I] {
	sel, err := b.exact("InterceptMethod", sample, nil, false)
	return b.rule(sel, err)
}

// Intercept is InterceptMethod.
func (b *ConfigurationBuilder[I]) Intercept(sample func(I)) *RuleBuilder[I] {
	sel, err := b.exact("Intercept", sample, nil, false)
	return b.rule(sel, err)
}

// InterceptGetter selects the property getter called by sample.
func (b *ConfigurationBuilder[I]) InterceptGetter(sample func(I) any) *RuleBuilder[I] {
	kind := member.KindGetter
	sel, err := b.exact("InterceptGetter", func(i I) { sample(i) }, &kind, false)
	return b.rule(sel, err)
}

// InterceptSetter selects the property setter called by sample. The value
// passed in the sample is ignored; every assigned value matches.
func (b *ConfigurationBuilder[I]) InterceptSetter(sample func(I)) *RuleBuilder[I] {
	kind := member.KindSetter
	sel, err := b.exact("InterceptSetter", sample, &kind, true)
	return b.rule(sel, err)
}

// InterceptMethods selects every member called by samples, one per sample.
func (b *ConfigurationBuilder[I]) InterceptMethods(samples ...func(I)) *RuleBuilder[I] {
	if len(samples) == 0 {
		return b.rule(nil, engine.NewSelectionError("InterceptMethods", "no sample calls given", nil))
	}
	sels := make([]engine.Selector, 0, len(samples))
	for _, sample := range samples {
		sel, err := b.exact("InterceptMethods", sample, nil, false)
		if err != nil {
			return b.rule(nil, err)
		}
		sels = append(sels, sel)
	}
	return b.rule(engine.AnyOf(sels...), nil)
}

// InterceptAll selects every member declared directly on I that does not
// carry the exemption marker.
func (b *ConfigurationBuilder[I]) InterceptAll() *RuleBuilder[I] {
	return b.blanket(engine.ScopeDeclared)
}

// InterceptAllMembers is InterceptAll plus members promoted from embedded
// interfaces.
func (b *ConfigurationBuilder[I]) InterceptAllMembers() *RuleBuilder[I] {
	return b.blanket(engine.ScopeAllMembers)
}

// InterceptWhere selects calls for which pred returns true. pred runs on
// every call through the proxy.
func (b *ConfigurationBuilder[I]) InterceptWhere(pred func(*engine.Invocation) bool) *RuleBuilder[I] {
	if pred == nil {
		return b.rule(nil, engine.NewSelectionError("InterceptWhere", "nil predicate", nil))
	}
	return b.rule(engine.Where(pred), nil)
}

// InterceptSelector registers a rule for a prebuilt selector.
func (b *ConfigurationBuilder[I]) InterceptSelector(sel engine.Selector) *RuleBuilder[I] {
	if sel == nil {
		return b.rule(nil, engine.NewSelectionError("InterceptSelector", "nil selector", nil))
	}
	return b.rule(sel, nil)
}

func (b *ConfigurationBuilder[I]) blanket(scope engine.Scope) *RuleBuilder[I] {
	if b.contract == nil {
		return b.rule(nil, nil)
	}
	return b.rule(engine.Blanket(b.contract.Table, scope), nil)
}

// exact records sample and builds an exact selector. want restricts the
// member kind; wildcard replaces every matcher with a wildcard.
func (b *ConfigurationBuilder[I]) exact(op string, sample func(I), want *member.Kind, wildcard bool) (engine.Selector, error) {
	if b.contract == nil {
		return nil, nil
	}
	if sample == nil {
		return nil, engine.NewSelectionError(op, "nil sample call", nil)
	}

	rec, matchers, err := engine.Record(b.contract, sample)
	if err != nil {
		se := engine.NewSelectionError(op, "cannot resolve sample call to one member", err)
		if !rec.Signature.IsZero() {
			se.Member = rec.Signature.String()
		}
		return nil, se
	}
	if want != nil && rec.Signature.Kind() != *want {
		se := engine.NewSelectionError(op, fmt.Sprintf("sample call is a %s, not a %s", rec.Signature.Kind(), *want), nil)
		se.Member = rec.Signature.String()
		return nil, se
	}
	if rec.Signature.IsGeneric() && len(rec.Signature.TypeArgs()) == 0 {
		se := engine.NewSelectionError(op, "generic member called without type arguments", nil)
		se.Member = rec.Signature.String()
		return nil, se
	}
	if wildcard {
		matchers = engine.AnyArgs(rec.Signature)
	}
	return engine.Exact(rec.Signature, matchers...)
}

// rule registers sel with no callbacks yet, or records err.
func (b *ConfigurationBuilder[I]) rule(sel engine.Selector, err error) *RuleBuilder[I] {
	rb := &RuleBuilder[I]{parent: b}
	if err != nil {
		if !engine.IsSelectionError(err) {
			err = engine.NewSelectionError("Intercept", "invalid selector", err)
		}
		b.fail(err)
		return rb
	}
	if sel == nil || b.contract == nil {
		// the configuration itself failed; its error is already recorded
		return rb
	}

	rb.rule = engine.Rule{Selector: sel}
	rb.handle = b.ic.engine.Registry().Register(b.cfg.pairing, rb.rule)
	rb.active = true
	b.ic.logger.Debug("rule registered",
		"pairing", b.cfg.pairing.String(),
		"selector", sel.String())
	return rb
}
