package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/intercept"
	"github.com/roach88/aspect/internal/locator"
	"github.com/roach88/aspect/internal/plan"
	"github.com/roach88/aspect/internal/store"
	"github.com/roach88/aspect/internal/testservice"
	"github.com/roach88/aspect/internal/testutil"
	"github.com/roach88/aspect/internal/trace"
)

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	store  *store.Store
	logger *slog.Logger
	clock  engine.Sequencer
	ids    engine.CallIDGenerator
}

// WithStore also records every call of the run in s.
func WithStore(s *store.Store) Option {
	return func(c *runConfig) {
		c.store = s
	}
}

// WithLogger sets the logger handed to the interceptor. Runs are silent by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithClock replaces the deterministic clock that starts every run at 1.
// RunAll shares one clock between all of its scenarios.
func WithClock(s engine.Sequencer) Option {
	return func(c *runConfig) {
		c.clock = s
	}
}

// WithCallIDs replaces the scenario-prefixed call ID sequence.
func WithCallIDs(g engine.CallIDGenerator) Option {
	return func(c *runConfig) {
		c.ids = g
	}
}

// Run executes a scenario and returns its result.
//
// Each run gets its own target, interceptor, clock and call IDs. Call IDs
// are prefixed with the scenario name so runs sharing a store do not
// collide.
//
// Execution flow:
//  1. Load and merge the scenario's plans
//  2. Apply setup to a fresh target
//  3. Configure interception and apply the plans
//  4. Make the calls, checking each expectation
//  5. Evaluate assertions over the trace
//
// An error is returned only when the scenario cannot run; failed
// expectations and assertions are reported in the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clock == nil {
		cfg.clock = testutil.NewDeterministicClock()
	}
	if cfg.ids == nil {
		cfg.ids = testutil.NewCallIDs(scenario.Name)
	}

	p, err := loadPlans(scenario.Plans)
	if err != nil {
		return nil, err
	}

	target := testservice.New()
	applySetup(target, scenario.Setup)

	loc := locator.New()
	locator.RegisterInstance[testservice.Service](loc, target)

	log := trace.NewLog()
	engineOpts := []engine.Option{
		engine.WithClock(cfg.clock),
		engine.WithCallIDs(cfg.ids),
		engine.WithLogger(cfg.logger),
		engine.WithObserver(log),
	}
	if cfg.store != nil {
		engineOpts = append(engineOpts, engine.WithObserver(store.NewRecorder(cfg.store, cfg.logger)))
	}
	ic := intercept.New(loc, engineOpts...)

	b := intercept.Configure[testservice.Service, *testservice.Impl](ic)
	if err := plan.Apply(b, p, log); err != nil {
		return nil, fmt.Errorf("failed to apply plans: %w", err)
	}
	svc, err := intercept.Resolve[testservice.Service](ic)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve proxy: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, ok := testservice.Lookup(step.Call)
		if !ok {
			return nil, fmt.Errorf("calls[%d]: unknown member %q", i, step.Call)
		}
		v, callErr := entry.Call(ctx, svc, step.Args)
		if msg := checkExpect(step, v, callErr); msg != "" {
			result.AddError(fmt.Sprintf("calls[%d] %s: %s", i, step.Call, msg))
		}
		cfg.logger.Debug("scenario call completed",
			"scenario", scenario.Name,
			"step", i,
			"member", step.Call,
			"failed", callErr != nil)
	}

	result.Events = log.Events()
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, target) {
		result.AddError(msg)
	}
	return result, nil
}

// RunAll runs scenarios concurrently and returns their results in input
// order. It stops at the first scenario that cannot run.
func RunAll(ctx context.Context, scenarios []*Scenario, opts ...Option) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := Run(ctx, s, opts...)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", s.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunEach runs scenarios concurrently, at most GOMAXPROCS at a time, and
// returns each scenario's result or error in input order. Unlike RunAll, a
// scenario that cannot run does not stop the others.
func RunEach(ctx context.Context, scenarios []*Scenario, opts ...Option) ([]*Result, []error) {
	results := make([]*Result, len(scenarios))
	errs := make([]error, len(scenarios))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range scenarios {
		g.Go(func() error {
			results[i], errs[i] = Run(ctx, s, opts...)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

func loadPlans(dirs []string) (*plan.Plan, error) {
	merged := &plan.Plan{}
	var errs []error
	for _, dir := range dirs {
		p, err := plan.LoadDir(dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("plans %s: %w", dir, err))
			continue
		}
		merged.Rules = append(merged.Rules, p.Rules...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return merged, nil
}

func applySetup(target *testservice.Impl, setup *TargetState) {
	if setup == nil {
		return
	}
	if setup.Name != nil {
		target.SetName(*setup.Name)
	}
	if setup.Description != nil {
		target.SetDescription(*setup.Description)
	}
	executed := false
	if setup.Executed != nil {
		executed = *setup.Executed
	}
	target.SetWasExecuted(executed)
}

// checkExpect returns a failure message, or "" when the outcome matches.
func checkExpect(step CallStep, v any, err error) string {
	if step.Expect != nil && step.Expect.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error containing %q, got value %s", step.Expect.Error, render(v))
		}
		if !strings.Contains(err.Error(), step.Expect.Error) {
			return fmt.Sprintf("expected error containing %q, got %q", step.Expect.Error, err.Error())
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %v", err)
	}
	if step.Expect != nil && step.Expect.Value != nil {
		if !trace.Equal(trace.ValueOf(step.Expect.Value), trace.ValueOf(v)) {
			return fmt.Sprintf("expected value %s, got %s", render(step.Expect.Value), render(v))
		}
	}
	return ""
}

func render(v any) string {
	b, err := trace.MarshalCanonical(trace.ValueOf(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
