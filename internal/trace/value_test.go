package trace

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/aspect/internal/async"
)

type point struct {
	X, Y   int
	hidden string
}

type color int

func (c color) String() string { return fmt.Sprintf("color-%d", int(c)) }

func TestValueOf(t *testing.T) {
	n := 5
	var nilPtr *int

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"nil pointer", nilPtr, Null{}},
		{"void", async.Void{}, Null{}},
		{"bool", true, Bool(true)},
		{"int", 42, Int(42)},
		{"int8", int8(-3), Int(-3)},
		{"uint32", uint32(7), Int(7)},
		{"huge uint64", uint64(math.MaxUint64), String("18446744073709551615")},
		{"float64", 2.5, String("2.5")},
		{"float32", float32(0.1), String("0.1")},
		{"string", "hi", String("hi")},
		{"bytes", []byte("raw"), String("raw")},
		{"pointer", &n, Int(5)},
		{"error", errors.New("boom"), String("boom")},
		{"type", reflect.TypeFor[string](), String("string")},
		{"stringer", color(2), String("color-2")},
		{"slice", []any{1, "a", nil}, Array{Int(1), String("a"), Null{}}},
		{"array", [2]bool{true, false}, Array{Bool(true), Bool(false)}},
		{"map", map[string]int{"a": 1}, Object{"a": Int(1)}},
		{"struct", point{X: 1, Y: 2, hidden: "x"}, Object{"X": Int(1), "Y": Int(2)}},
		{"trace value", String("as is"), String("as is")},
		{"unsupported", make(chan int), String("<chan int>")},
		{"int keyed map", map[int]string{1: "a"}, String("<map[int]string>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValueOf(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ValueOf(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestValueOf_DepthLimited(t *testing.T) {
	type node struct{ Next any }
	root := &node{}
	root.Next = root

	assert.NotPanics(t, func() { ValueOf(root) })
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes as the surrogate pair D83D DE00, which sorts before
	// U+FF21 in UTF-16 but after it in UTF-8.
	obj := Object{"\uFF21": Int(1), "\U0001F600": Int(2), "a": Int(3)}

	assert.Equal(t, []string{"a", "\U0001F600", "\uFF21"}, obj.SortedKeys())
}

func TestDecode(t *testing.T) {
	v, err := Decode([]byte(`{"n":1,"f":1.5,"s":"x","b":true,"z":null,"a":[2]}`))
	require.NoError(t, err)

	want := Object{
		"n": Int(1),
		"f": String("1.5"),
		"s": String("x"),
		"b": Bool(true),
		"z": Null{},
		"a": Array{Int(2)},
	}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{`))
	assert.Error(t, err)

	_, err = Decode([]byte(`1 2`))
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(ValueOf(map[string]any{"a": 1, "b": 2}), Object{"b": Int(2), "a": Int(1)}))
	assert.True(t, Equal(ValueOf(3.0), String("3")))
	assert.False(t, Equal(Int(1), String("1")))
}
