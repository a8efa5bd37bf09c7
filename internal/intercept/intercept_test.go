package intercept

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/aspect/internal/async"
	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/locator"
	"github.com/roach88/aspect/internal/member"
	"github.com/roach88/aspect/internal/testservice"
)

type service = testservice.Service

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// configure returns a fresh interceptor whose locator builds a new
// testservice.Impl, and the configuration builder for it.
func configure(opts ...ConfigureOption) (*Interceptor, *ConfigurationBuilder[service]) {
	loc := locator.New()
	locator.Register[service](loc, testservice.New)
	ic := New(loc)
	return ic, Configure[service, *testservice.Impl](ic, opts...)
}

func resolve(t *testing.T, ic *Interceptor) service {
	t.Helper()
	svc, err := Resolve[service](ic)
	require.NoError(t, err)
	return svc
}

func target(inv *engine.Invocation) service {
	return inv.Target().(service)
}

func await[T any](t *testing.T, task *async.Task[T]) (T, error) {
	t.Helper()
	return task.Await(context.Background())
}

func TestOnBefore_SeesTargetBeforeCall(t *testing.T) {
	for _, tc := range []struct {
		name   string
		sample func(service)
		call   func(t *testing.T, s service)
	}{
		{"sync", func(s service) { s.Perform() }, func(_ *testing.T, s service) { s.Perform() }},
		{"async", func(s service) { s.PerformAsync() }, func(t *testing.T, s service) {
			_, err := await(t, s.PerformAsync())
			require.NoError(t, err)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ic, cfg := configure()
			ran := false
			cfg.InterceptMethod(tc.sample).
				OnBefore(func(inv *engine.Invocation) error {
					ran = true
					assert.False(t, target(inv).WasExecuted())
					return nil
				})
			svc := resolve(t, ic)

			tc.call(t, svc)

			assert.True(t, ran)
			assert.True(t, svc.WasExecuted())
		})
	}
}

func TestOnAfter_SeesTargetAfterCall(t *testing.T) {
	for _, tc := range []struct {
		name   string
		sample func(service)
		call   func(t *testing.T, s service)
	}{
		{"sync", func(s service) { s.Perform() }, func(_ *testing.T, s service) { s.Perform() }},
		{"async", func(s service) { s.PerformAsync() }, func(t *testing.T, s service) {
			_, err := await(t, s.PerformAsync())
			require.NoError(t, err)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ic, cfg := configure()
			ran := false
			cfg.InterceptMethod(tc.sample).
				OnAfter(func(inv *engine.Invocation) error {
					ran = true
					assert.True(t, target(inv).WasExecuted())
					return nil
				})
			svc := resolve(t, ic)

			tc.call(t, svc)

			assert.True(t, ran)
		})
	}
}

func TestOnCatchAndOnFinally(t *testing.T) {
	for _, tc := range []struct {
		name   string
		sample func(service)
		call   func(t *testing.T, s service) error
	}{
		{"sync", func(s service) { _ = s.Fail() }, func(_ *testing.T, s service) error { return s.Fail() }},
		{"async", func(s service) { s.FailAsync() }, func(t *testing.T, s service) error {
			_, err := await(t, s.FailAsync())
			return err
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ic, cfg := configure()
			index := 0
			var caught error
			cfg.InterceptMethod(tc.sample).
				OnCatch(func(_ *engine.Invocation, err error) error { caught = err; return nil }).
				DoFinally(func() { index++ })
			svc := resolve(t, ic)

			err := tc.call(t, svc)

			assert.ErrorIs(t, err, testservice.ErrInvalidOperation, "catch never suppresses the failure")
			assert.ErrorIs(t, caught, testservice.ErrInvalidOperation)
			assert.Equal(t, 1, index)
		})
	}
}

func TestOnBeforeOnFinallyAndOnAfter(t *testing.T) {
	for _, tc := range []struct {
		name   string
		sample func(service)
		call   func(t *testing.T, s service)
	}{
		{"sync", func(s service) { s.Perform() }, func(_ *testing.T, s service) { s.Perform() }},
		{"async", func(s service) { s.PerformAsync() }, func(t *testing.T, s service) {
			_, err := await(t, s.PerformAsync())
			require.NoError(t, err)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ic, cfg := configure()
			index := 0
			cfg.InterceptMethod(tc.sample).
				OnBefore(func(inv *engine.Invocation) error {
					index++
					assert.False(t, target(inv).WasExecuted())
					return nil
				}).
				DoFinally(func() { index++ }).
				OnAfter(func(inv *engine.Invocation) error {
					index++
					assert.True(t, target(inv).WasExecuted())
					return nil
				})
			svc := resolve(t, ic)

			tc.call(t, svc)

			assert.Equal(t, 3, index)
		})
	}
}

func TestOnReturn_ReplacesResult(t *testing.T) {
	replace := func(_ *engine.Invocation, v any) (any, error) {
		if v == 1 {
			return -1, nil
		}
		return -2, nil
	}

	t.Run("sync", func(t *testing.T) {
		ic, cfg := configure()
		cfg.InterceptMethod(func(s service) { s.Return() }).OnReturn(replace)
		svc := resolve(t, ic)

		svc.Perform()
		assert.Equal(t, -1, svc.Return())
		assert.True(t, svc.WasExecuted())
	})

	t.Run("async", func(t *testing.T) {
		ic, cfg := configure()
		cfg.InterceptMethod(func(s service) { s.ReturnAsync() }).OnReturn(replace)
		svc := resolve(t, ic)

		v, err := await(t, svc.ReturnAsync())
		require.NoError(t, err)
		assert.Equal(t, -1, v, "async OnReturn receives the awaited value")
		assert.True(t, svc.WasExecuted())
	})
}

func TestOnFinally_RunsWhenMemberFails(t *testing.T) {
	for _, tc := range []struct {
		name   string
		sample func(service)
		call   func(t *testing.T, s service) error
	}{
		{"sync", func(s service) { _ = s.Fail() }, func(_ *testing.T, s service) error { return s.Fail() }},
		{"async", func(s service) { s.FailAsync() }, func(t *testing.T, s service) error {
			_, err := await(t, s.FailAsync())
			return err
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ic, cfg := configure()
			finally := 0
			cfg.InterceptMethod(tc.sample).
				OnFinally(func(inv *engine.Invocation) error {
					finally++
					assert.True(t, target(inv).WasExecuted())
					return nil
				})
			svc := resolve(t, ic)

			err := tc.call(t, svc)

			require.Error(t, err)
			assert.True(t, engine.IsInvocationError(err))
			assert.ErrorIs(t, err, testservice.ErrInvalidOperation)
			assert.Equal(t, 1, finally)
			assert.True(t, svc.WasExecuted())
		})
	}
}

func TestInterceptAllMembers_SkipsTagged(t *testing.T) {
	t.Run("sync", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptAllMembers().DoFinally(func() { index++ })
		svc := resolve(t, ic)

		name := svc.Name()
		svc.SetDescription("anyValue")
		description := svc.Description()
		svc.SetName(name)
		svc.TaggedPerform()
		result := testservice.Perform(svc, description)

		assert.Equal(t, "anyValue", result)
		assert.Equal(t, 5, index)
	})

	t.Run("async", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptAllMembers().DoFinally(func() { index++ })
		svc := resolve(t, ic)

		name := svc.Name()
		svc.SetDescription("anyValue")
		description := svc.Description()
		svc.SetName(name)
		_, err := await(t, svc.TaggedPerformAsync())
		require.NoError(t, err)
		result, err := await(t, testservice.PerformAsync(svc, description))
		require.NoError(t, err)

		assert.Equal(t, "anyValue", result)
		assert.Equal(t, 5, index)
	})
}

func TestInterceptAll_GettersSettersAndGenerics(t *testing.T) {
	t.Run("sync", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptAll().DoFinally(func() { index++ })
		svc := resolve(t, ic)

		name := svc.Name()
		svc.SetDescription("anyValue")
		description := svc.Description()
		svc.SetName(name)
		result := testservice.Perform(svc, description)

		assert.Equal(t, "anyValue", result)
		assert.Equal(t, 5, index)
	})

	t.Run("async", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptAll().DoFinally(func() { index++ })
		svc := resolve(t, ic)

		name := svc.Name()
		svc.SetDescription("anyValue")
		description := svc.Description()
		svc.SetName(name)
		result, err := await(t, testservice.PerformAsync(svc, description))
		require.NoError(t, err)

		assert.Equal(t, "anyValue", result)
		assert.Equal(t, 5, index)
	})
}

func TestBlanketScopes_PromotedMembers(t *testing.T) {
	for _, tc := range []struct {
		name  string
		rule  func(*ConfigurationBuilder[service]) *RuleBuilder[service]
		calls int
	}{
		{"all", (*ConfigurationBuilder[service]).InterceptAll, 0},
		{"all members", (*ConfigurationBuilder[service]).InterceptAllMembers, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ic, cfg := configure()
			index := 0
			tc.rule(cfg).DoBefore(func() { index++ })
			svc := resolve(t, ic)

			require.NoError(t, svc.Close())

			assert.Equal(t, tc.calls, index)
		})
	}
}

func TestExemptMember_InterceptedWhenNamed(t *testing.T) {
	ic, cfg := configure()
	index := 0
	cfg.InterceptMethod(func(s service) { s.TaggedPerform() }).DoBefore(func() { index++ })
	svc := resolve(t, ic)

	svc.TaggedPerform()

	assert.Equal(t, 1, index)
}

func TestInterceptMethod_GenericInstantiations(t *testing.T) {
	t.Run("sync", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptMethod(func(s service) { testservice.Perform(s, member.Any[int]()) }).
			OnBefore(func(inv *engine.Invocation) error {
				assert.False(t, target(inv).WasExecuted())
				index++
				return nil
			}).
			And().
			InterceptMethod(func(s service) { testservice.Perform(s, member.Any[string]()) }).
			DoAfter(func() { index++ })
		svc := resolve(t, ic)

		testservice.Perform(svc, 1)        // intercepted
		testservice.Perform(svc, "")       // intercepted
		testservice.Perform(svc, 2.0)      // not intercepted
		testservice.Perform[any](svc, nil) // not intercepted
		testservice.Perform(svc, int64(1)) // not intercepted

		assert.True(t, svc.WasExecuted())
		assert.Equal(t, 2, index)
	})

	t.Run("async", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptMethod(func(s service) { testservice.PerformAsync(s, member.Any[int]()) }).
			OnBefore(func(inv *engine.Invocation) error {
				assert.False(t, target(inv).WasExecuted())
				index++
				return nil
			}).
			And().
			InterceptMethod(func(s service) { testservice.PerformAsync(s, member.Any[string]()) }).
			DoAfter(func() { index++ })
		svc := resolve(t, ic)

		_, err := await(t, testservice.PerformAsync(svc, 1))
		require.NoError(t, err)
		_, err = await(t, testservice.PerformAsync(svc, ""))
		require.NoError(t, err)
		_, err = await(t, testservice.PerformAsync(svc, 2.0))
		require.NoError(t, err)
		_, err = await(t, testservice.PerformAsync[any](svc, nil))
		require.NoError(t, err)

		assert.True(t, svc.WasExecuted())
		assert.Equal(t, 2, index)
	})
}

func TestFluentChain_MultipleMembers(t *testing.T) {
	t.Run("sync", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptMethod(func(s service) { s.Perform() }).
			DoBefore(func() { assert.Equal(t, 0, index) }).
			DoAfter(func() { index++ }).
			And().
			InterceptGetter(func(s service) any { return s.Name() }).
			DoBefore(func() { assert.Equal(t, 1, index) }).
			DoAfter(func() { index++ }).
			And().
			InterceptSetter(func(s service) { s.SetDescription("") }).
			DoBefore(func() { assert.Equal(t, 2, index) }).
			DoAfter(func() { index++ })
		svc := resolve(t, ic)

		// intercepted
		svc.Perform()
		name := svc.Name()
		svc.SetDescription("")

		// not intercepted
		svc.Return()
		svc.SetName(name)
		description := svc.Description()

		assert.Equal(t, "", description)
		assert.Equal(t, 3, index)
	})

	t.Run("async", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptMethod(func(s service) { s.PerformAsync() }).
			DoBefore(func() { assert.Equal(t, 0, index) }).
			DoAfter(func() { index++ }).
			And().
			InterceptGetter(func(s service) any { return s.Name() }).
			DoBefore(func() { assert.Equal(t, 1, index) }).
			DoAfter(func() { index++ }).
			And().
			InterceptSetter(func(s service) { s.SetDescription(member.Any[string]()) }).
			DoBefore(func() { assert.Equal(t, 2, index) }).
			DoAfter(func() { index++ })
		svc := resolve(t, ic)

		_, err := await(t, svc.PerformAsync())
		require.NoError(t, err)
		name := svc.Name()
		svc.SetDescription("set by test")

		_, err = await(t, svc.ReturnAsync())
		require.NoError(t, err)
		svc.SetName(name)

		assert.Equal(t, "set by test", svc.Description())
		assert.Equal(t, 3, index)
	})
}

func TestInterceptMethod_Overloads(t *testing.T) {
	t.Run("sync", func(t *testing.T) {
		ic, cfg := configure()
		value := false
		cfg.InterceptMethod(func(s service) { s.PerformString(member.Any[string]()) }).
			DoBefore(func() { value = true })
		svc := resolve(t, ic)

		svc.PerformInt(-1)
		assert.False(t, value, "Perform(int) is a different overload")

		svc.PerformString("")
		assert.True(t, value)
	})

	t.Run("async", func(t *testing.T) {
		ic, cfg := configure()
		value := false
		cfg.InterceptMethod(func(s service) { s.PerformStringAsync(member.Any[string]()) }).
			DoBefore(func() { value = true })
		svc := resolve(t, ic)

		_, err := await(t, svc.PerformIntAsync(-1))
		require.NoError(t, err)
		assert.False(t, value)

		_, err = await(t, svc.PerformStringAsync(""))
		require.NoError(t, err)
		assert.True(t, value)
	})
}

func TestInterceptMethod_ConcreteArgumentsMatchByValue(t *testing.T) {
	ic, cfg := configure()
	index := 0
	cfg.InterceptMethod(func(s service) { s.PerformInt(5) }).DoBefore(func() { index++ })
	svc := resolve(t, ic)

	svc.PerformInt(4)
	svc.PerformInt(5)

	assert.Equal(t, 1, index)
}

func TestInterceptWhere_Predicate(t *testing.T) {
	ic, cfg := configure()
	index := 0
	cfg.InterceptWhere(func(inv *engine.Invocation) bool { return inv.Name() == "Perform" }).
		DoBefore(func() { index++ })
	svc := resolve(t, ic)

	// intercepted
	svc.Perform()
	testservice.Perform(svc, -1)
	svc.PerformInt(-1)
	svc.PerformString("")

	// not intercepted
	svc.SetName("")
	svc.Return()

	assert.Equal(t, 4, index)
}

func TestInterceptMethods_OneCallbackForMany(t *testing.T) {
	t.Run("sync", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptMethods(
			func(s service) { s.Return() },
			func(s service) { testservice.Perform(s, member.Any[int]()) },
			func(s service) { s.Perform() },
		).DoBefore(func() { index++ })
		svc := resolve(t, ic)

		// intercepted
		svc.Perform()
		svc.Return()
		testservice.Perform(svc, -1)

		// not intercepted
		svc.SetName("")
		svc.PerformString("")

		assert.Equal(t, 3, index)
	})

	t.Run("async", func(t *testing.T) {
		ic, cfg := configure()
		index := 0
		cfg.InterceptMethods(
			func(s service) { s.ReturnAsync() },
			func(s service) { testservice.PerformAsync(s, member.Any[int]()) },
			func(s service) { s.PerformAsync() },
		).DoBefore(func() { index++ })
		svc := resolve(t, ic)

		_, err := await(t, svc.PerformAsync())
		require.NoError(t, err)
		_, err = await(t, svc.ReturnAsync())
		require.NoError(t, err)
		_, err = await(t, testservice.PerformAsync(svc, -1))
		require.NoError(t, err)
		svc.SetName("")

		assert.Equal(t, 3, index)
	})
}

func TestConfigure_UsesProvidedTarget(t *testing.T) {
	provided := testservice.New()
	provided.SetName("providedInstance")
	ic, cfg := configure(WithTarget(provided))
	seen := ""
	cfg.Intercept(func(s service) { s.Perform() }).
		OnBefore(func(inv *engine.Invocation) error {
			seen = target(inv).Name()
			return nil
		})
	svc := resolve(t, ic)

	svc.Perform()

	assert.Equal(t, "providedInstance", seen)
}

func TestConfigure_InfersTargetMethod(t *testing.T) {
	for _, tc := range []struct {
		name   string
		sample func(service)
		call   func(t *testing.T, s service)
	}{
		{"sync", func(s service) { s.Perform() }, func(_ *testing.T, s service) { s.Perform() }},
		{"async", func(s service) { s.PerformAsync() }, func(t *testing.T, s service) {
			_, err := await(t, s.PerformAsync())
			require.NoError(t, err)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			provided := testservice.New()
			ic, cfg := configure(WithTarget(provided))
			cfg.Intercept(tc.sample).
				DoBefore(func() { assert.False(t, provided.WasExecuted()) })
			svc := resolve(t, ic)

			tc.call(t, svc)

			assert.True(t, provided.WasExecuted())
		})
	}
}

func TestOnInvoke_SkipsTarget(t *testing.T) {
	skip := func(*engine.Invocation) (any, error) { return -2, nil }

	t.Run("sync", func(t *testing.T) {
		provided := testservice.New()
		ic, cfg := configure(WithTarget(provided))
		cfg.Intercept(func(s service) { s.Return() }).OnInvoke(skip)
		svc := resolve(t, ic)

		assert.Equal(t, -2, svc.Return())
		assert.False(t, provided.WasExecuted())
	})

	t.Run("async", func(t *testing.T) {
		provided := testservice.New()
		ic, cfg := configure(WithTarget(provided))
		cfg.Intercept(func(s service) { s.ReturnAsync() }).OnInvoke(skip)
		svc := resolve(t, ic)

		v, err := await(t, svc.ReturnAsync())
		require.NoError(t, err)
		assert.Equal(t, -2, v)
		assert.False(t, provided.WasExecuted())
	})
}

// hookLog collects hook firings from whichever goroutine completes a task.
type hookLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *hookLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *hookLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// settled is a task result together with the hooks that had fired when
// the result became visible to the caller.
type settled struct {
	value any
	err   error
	seen  []string
}

// settle consumes task in the given style: awaiting it inline, or chaining
// a continuation with OnComplete or async.Then.
func settle[T any](t *testing.T, style string, task *async.Task[T], log *hookLog) settled {
	t.Helper()
	ch := make(chan settled, 1)

	switch style {
	case "await":
		v, err := task.Await(context.Background())
		return settled{v, err, log.list()}
	case "on complete":
		task.OnComplete(func(v T, err error) { ch <- settled{v, err, log.list()} })
	case "then":
		async.Then(task, func(v T, err error) (async.Void, error) {
			ch <- settled{v, err, log.list()}
			return async.Void{}, nil
		})
	default:
		t.Fatalf("unknown style %q", style)
	}

	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("continuation never ran")
		return settled{}
	}
}

func TestAsyncContinuationsMatchAwait(t *testing.T) {
	members := []struct {
		name   string
		sample func(service)
		call   func(t *testing.T, style string, s service, log *hookLog) settled
		hooks  []string
		value  any
		fails  bool
	}{
		{
			name:   "PerformAsync",
			sample: func(s service) { s.PerformAsync() },
			call: func(t *testing.T, style string, s service, log *hookLog) settled {
				return settle(t, style, s.PerformAsync(), log)
			},
			hooks: []string{"before", "return", "after", "finally"},
			value: async.Void{},
		},
		{
			name:   "ReturnAsync",
			sample: func(s service) { s.ReturnAsync() },
			call: func(t *testing.T, style string, s service, log *hookLog) settled {
				return settle(t, style, s.ReturnAsync(), log)
			},
			hooks: []string{"before", "return", "after", "finally"},
			value: 2,
		},
		{
			name:   "FailAsync",
			sample: func(s service) { s.FailAsync() },
			call: func(t *testing.T, style string, s service, log *hookLog) settled {
				return settle(t, style, s.FailAsync(), log)
			},
			hooks: []string{"before", "catch", "finally"},
			value: async.Void{},
			fails: true,
		},
	}

	for _, m := range members {
		t.Run(m.name, func(t *testing.T) {
			for _, style := range []string{"await", "on complete", "then"} {
				t.Run(style, func(t *testing.T) {
					ic, cfg := configure()
					log := &hookLog{}
					cfg.InterceptMethod(m.sample).
						OnBefore(func(*engine.Invocation) error { log.add("before"); return nil }).
						OnReturn(func(_ *engine.Invocation, v any) (any, error) {
							log.add("return")
							if n, ok := v.(int); ok {
								return n + 1, nil
							}
							return v, nil
						}).
						OnAfter(func(*engine.Invocation) error { log.add("after"); return nil }).
						OnCatch(func(*engine.Invocation, error) error { log.add("catch"); return nil }).
						OnFinally(func(*engine.Invocation) error { log.add("finally"); return nil })
					svc := resolve(t, ic)

					got := m.call(t, style, svc, log)

					assert.Equal(t, m.hooks, got.seen, "every hook has run when the result is visible")
					assert.Equal(t, m.value, got.value)
					if m.fails {
						assert.ErrorIs(t, got.err, testservice.ErrInvalidOperation)
						assert.True(t, engine.IsInvocationError(got.err))
					} else {
						assert.NoError(t, got.err)
					}
					assert.True(t, svc.WasExecuted())
				})
			}
		})
	}
}
