package engine

import (
	"io"
	"log/slog"
)

// Observer is notified when a dispatched call starts and when it completes.
// Implementations must be safe for concurrent use; async completions arrive
// on whichever goroutine finishes the task.
type Observer interface {
	Invoked(inv *Invocation)
	Completed(inv *Invocation)
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) Invoked(inv *Invocation) {
	for _, obs := range o {
		obs.Invoked(inv)
	}
}

func (o Observers) Completed(inv *Invocation) {
	for _, obs := range o {
		obs.Completed(inv)
	}
}

// Engine dispatches intercepted calls through the rules of a Registry.
//
// Thread-safety model:
//   - dispatch is safe from any goroutine
//   - the registry may be updated while calls are in flight
//   - options must be applied before the first call
type Engine struct {
	registry *Registry
	clock    Sequencer
	ids      CallIDGenerator
	observer Observer
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the sequencer stamping invocations and completions.
// Tests pass a deterministic clock so traces are reproducible.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithCallIDs sets the call ID generator.
func WithCallIDs(g CallIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithObserver adds an observer. Several observers are notified in the
// order they were added.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		switch cur := e.observer.(type) {
		case nil:
			e.observer = o
		case Observers:
			e.observer = append(cur, o)
		default:
			e.observer = Observers{cur, o}
		}
	}
}

// New creates an engine over registry. A nil registry gets a fresh one.
//
// Defaults: a Clock starting at 0, UUIDv7 call IDs and a logger that
// discards output.
func New(registry *Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Engine{
		registry: registry,
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the rule registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }
