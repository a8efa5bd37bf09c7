package member

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Wildcard(t *testing.T) {
	m := Wildcard(stringType)

	assert.True(t, m.Matches(""))
	assert.True(t, m.Matches("anything"))
	assert.False(t, m.Matches(1))
	assert.False(t, m.Matches(nil), "string is not nillable")
}

func TestMatcher_WildcardInterface(t *testing.T) {
	m := Wildcard(reflect.TypeFor[error]())

	assert.True(t, m.Matches(nil))
	assert.True(t, m.Matches(errors.New("boom")))
	assert.False(t, m.Matches("boom"))
}

func TestMatcher_Value(t *testing.T) {
	m := Value(-1)

	assert.True(t, m.Matches(-1))
	assert.False(t, m.Matches(1))
	assert.False(t, m.Matches(int64(-1)), "value matchers compare dynamic types too")
}

func TestCapture_RecordsInCallOrder(t *testing.T) {
	var got []any
	captured, err := Capture(func() {
		got = append(got, Any[string](), Eq(3), Any[int]())
	})
	require.NoError(t, err)

	require.Len(t, captured, 3)
	assert.True(t, captured[0].IsWildcard())
	assert.Equal(t, stringType, captured[0].Type())
	assert.False(t, captured[1].IsWildcard())
	assert.Equal(t, 3, captured[1].Expected())
	assert.True(t, captured[2].IsWildcard())
	assert.Equal(t, []any{"", 3, 0}, got)
}

func TestCapture_AnyOutsideSessionIsInert(t *testing.T) {
	assert.Equal(t, 0, Any[int]())
	assert.Equal(t, "x", Eq("x"))

	captured, err := Capture(func() {})
	require.NoError(t, err)
	assert.Empty(t, captured)
}

func TestCapture_PanicBecomesError(t *testing.T) {
	_, err := Capture(func() { panic("bad sample") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sample")

	// The session must be closed after a panic.
	assert.Nil(t, current())
}

func TestCapture_ConcurrentSessionsDoNotMix(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			captured, err := Capture(func() {
				for j := 0; j <= n%3; j++ {
					Any[int]()
				}
			})
			assert.NoError(t, err)
			assert.Len(t, captured, n%3+1)
		}(i)
	}
	wg.Wait()
}

func TestResolveMatchers_AllPositionsCaptured(t *testing.T) {
	params := []reflect.Type{stringType, intType}
	got, err := ResolveMatchers(params, []any{"", 0}, []Matcher{Wildcard(stringType), Value(0)})
	require.NoError(t, err)

	assert.True(t, got[0].IsWildcard())
	assert.False(t, got[1].IsWildcard())
}

func TestResolveMatchers_NoneCapturedMatchesByValue(t *testing.T) {
	params := []reflect.Type{stringType}
	got, err := ResolveMatchers(params, []any{"exact"}, nil)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.True(t, got[0].Matches("exact"))
	assert.False(t, got[0].Matches("other"))
}

func TestResolveMatchers_PartialUniquePlacement(t *testing.T) {
	params := []reflect.Type{stringType, intType}
	// Sample: Perform("fixed", Any[int]())
	got, err := ResolveMatchers(params, []any{"fixed", 0}, []Matcher{Wildcard(intType)})
	require.NoError(t, err)

	assert.False(t, got[0].IsWildcard())
	assert.True(t, got[1].IsWildcard())
	assert.True(t, MatchAll(got, []any{"fixed", 42}))
	assert.False(t, MatchAll(got, []any{"other", 42}))
}

func TestResolveMatchers_Ambiguous(t *testing.T) {
	params := []reflect.Type{intType, intType}
	// Sample: Perform(0, Any[int]()) cannot tell which zero is the wildcard.
	_, err := ResolveMatchers(params, []any{0, 0}, []Matcher{Wildcard(intType)})
	assert.ErrorIs(t, err, ErrAmbiguousMatchers)
}

func TestResolveMatchers_Unplaced(t *testing.T) {
	params := []reflect.Type{intType}
	_, err := ResolveMatchers(params, []any{5}, []Matcher{Wildcard(stringType), Wildcard(intType)})
	assert.ErrorIs(t, err, ErrUnplacedMatchers)

	_, err = ResolveMatchers([]reflect.Type{intType, stringType}, []any{5, "x"}, []Matcher{Wildcard(intType)})
	assert.ErrorIs(t, err, ErrUnplacedMatchers, "wildcard position must hold the zero value")
}
