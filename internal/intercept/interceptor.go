// Package intercept is the registration surface of the interceptor.
//
// A configuration starts with Configure, selects members by calling them
// inside a sample expression, and attaches callbacks:
//
//	ic := intercept.New(locator)
//	intercept.Configure[testservice.Service, *testservice.Impl](ic).
//		InterceptMethod(func(s testservice.Service) { s.Perform() }).
//		DoBefore(func() { log.Print("before") }).
//		And().
//		InterceptGetter(func(s testservice.Service) any { return s.Name() }).
//		DoAfter(func() { log.Print("after") })
//
//	svc, err := intercept.Resolve[testservice.Service](ic)
//
// Sample expressions run against a recording adapter and never reach the
// target. Selection errors are reported when the selector is built: the
// rule is not registered and the error is returned by Err and Resolve.
package intercept

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/roach88/aspect/internal/engine"
)

// ErrNotConfigured is returned by Resolve for an interface that was never
// configured.
var ErrNotConfigured = errors.New("interception not configured")

// TargetProvider supplies the implementation instance behind a proxy.
type TargetProvider interface {
	Target(iface, impl reflect.Type) (any, error)
}

// Interceptor owns the rule registry, the dispatch engine and the proxies
// built from them.
//
// Thread-safety: Configure, rule builders and Resolve are safe for
// concurrent use. Proxies are safe for concurrent calls.
type Interceptor struct {
	provider TargetProvider
	engine   *engine.Engine
	logger   *slog.Logger

	mu      sync.Mutex
	configs map[reflect.Type]*configuration
}

// configuration is the state of one interface's current pairing.
type configuration struct {
	pairing engine.Pairing
	target  any
	proxy   any
	errs    []error
}

// New creates an interceptor. provider may be nil when every configuration
// supplies its target with WithTarget.
func New(provider TargetProvider, opts ...engine.Option) *Interceptor {
	e := engine.New(engine.NewRegistry(), opts...)
	return &Interceptor{
		provider: provider,
		engine:   e,
		logger:   e.Logger(),
		configs:  make(map[reflect.Type]*configuration),
	}
}

// Engine returns the dispatch engine.
func (ic *Interceptor) Engine() *engine.Engine { return ic.engine }

// ConfigureOption customizes a configuration.
type ConfigureOption func(*configuration)

// WithTarget proxies instance instead of asking the target provider.
func WithTarget(instance any) ConfigureOption {
	return func(c *configuration) {
		c.target = instance
	}
}

// Configure starts a fresh configuration for interface I implemented by
// Impl. Rules previously registered for I are removed and the cached proxy
// is discarded.
func Configure[I, Impl any](ic *Interceptor, opts ...ConfigureOption) *ConfigurationBuilder[I] {
	pairing := engine.PairingOf[I, Impl]()
	cfg := &configuration{pairing: pairing}
	for _, opt := range opts {
		opt(cfg)
	}

	ic.mu.Lock()
	if prev, ok := ic.configs[pairing.Interface]; ok {
		ic.engine.Registry().UnregisterAll(prev.pairing)
	}
	ic.engine.Registry().UnregisterAll(pairing)
	ic.configs[pairing.Interface] = cfg
	ic.mu.Unlock()

	b := &ConfigurationBuilder[I]{ic: ic, cfg: cfg}

	if pairing.Interface.Kind() != reflect.Interface {
		b.fail(fmt.Errorf("configure %v: not an interface type", pairing.Interface))
		return b
	}
	if !pairing.Implementation.Implements(pairing.Interface) {
		b.fail(fmt.Errorf("configure %s: %v does not implement %v", pairing, pairing.Implementation, pairing.Interface))
		return b
	}
	if cfg.target != nil {
		if _, ok := cfg.target.(I); !ok {
			b.fail(fmt.Errorf("configure %s: target %T does not implement %v", pairing, cfg.target, pairing.Interface))
			return b
		}
	}
	contract, err := engine.ContractFor[I]()
	if err != nil {
		b.fail(fmt.Errorf("configure %s: %w", pairing, err))
		return b
	}
	b.contract = contract

	ic.logger.Debug("interception configured",
		"pairing", pairing.String(),
		"fixed_target", cfg.target != nil)
	return b
}

func (ic *Interceptor) addError(cfg *configuration, err error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	cfg.errs = append(cfg.errs, err)
}

func (ic *Interceptor) errorOf(cfg *configuration) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return errors.Join(cfg.errs...)
}

// Resolve returns the proxy for interface I. The proxy is built once per
// configuration and cached.
//
// The target provider runs without the interceptor's lock held, so a
// provider may itself resolve or configure through ic. When the pairing is
// reconfigured while the provider runs, Resolve starts over against the new
// configuration.
func Resolve[I any](ic *Interceptor) (I, error) {
	var zero I
	iface := reflect.TypeFor[I]()

	for {
		ic.mu.Lock()
		cfg, ok := ic.configs[iface]
		if !ok {
			ic.mu.Unlock()
			return zero, fmt.Errorf("resolve %v: %w", iface, ErrNotConfigured)
		}
		if err := errors.Join(cfg.errs...); err != nil {
			ic.mu.Unlock()
			return zero, fmt.Errorf("resolve %v: %w", iface, err)
		}
		if cfg.proxy != nil {
			proxy := cfg.proxy.(I)
			ic.mu.Unlock()
			return proxy, nil
		}
		target, pairing := cfg.target, cfg.pairing
		ic.mu.Unlock()

		if target == nil {
			if ic.provider == nil {
				return zero, fmt.Errorf("resolve %s: no target provider and no fixed target", pairing)
			}
			var err error
			target, err = ic.provider.Target(pairing.Interface, pairing.Implementation)
			if err != nil {
				return zero, fmt.Errorf("resolve %s: %w", pairing, err)
			}
		}
		typed, ok := target.(I)
		if !ok {
			return zero, fmt.Errorf("resolve %s: target %T does not implement %v", pairing, target, iface)
		}
		contract, err := engine.ContractFor[I]()
		if err != nil {
			return zero, fmt.Errorf("resolve %v: %w", iface, err)
		}

		ic.mu.Lock()
		switch {
		case ic.configs[iface] != cfg:
			ic.mu.Unlock()
			ic.logger.Debug("configuration replaced during resolve", "pairing", pairing.String())
			continue
		case cfg.proxy != nil:
			// Another caller finished first.
			proxy := cfg.proxy.(I)
			ic.mu.Unlock()
			return proxy, nil
		}
		proxy := contract.Proxy(ic.engine, pairing, typed)
		cfg.proxy = proxy
		ic.mu.Unlock()

		ic.logger.Debug("proxy built", "pairing", pairing.String())
		return proxy, nil
	}
}
