package compiler_test

import (
	"context"
	"testing"

	"github.com/kr/pretty"

	"phylanx/internal/array"
	"phylanx/internal/compiler"
	"phylanx/internal/primitive"
	"phylanx/internal/registry"
	"phylanx/internal/value"
)

// eval compiles src and evaluates every top-level entry point in order,
// returning the last one's realized value.Value — the same shape
// cmd/phylanx's runFile and internal/repl.Session.Eval both drive, but
// without going through GoString() so list/array contents are directly
// comparable with github.com/kr/pretty.
func eval(t *testing.T, src string) value.Value {
	t.Helper()
	reg := registry.NewBuiltins(primitive.NewTable())
	prog, err := compiler.CompileSource(src, reg)
	if err != nil {
		t.Fatalf("CompileSource(%q): %v", src, err)
	}
	ec := primitive.NewEvalContext(prog.Scratchpad)
	ctx := context.Background()
	last := value.Nil()
	for _, h := range prog.EntryPoints {
		handle, ok := h.Handle()
		if !ok {
			last = h
			continue
		}
		node, ok := prog.Table.Get(handle.Name)
		if !ok {
			t.Fatalf("entry point %q not registered in table", handle.Name)
		}
		v, err := primitive.Await(ctx, node.Eval(ctx, nil, ec))
		if err != nil {
			t.Fatalf("evaluating %q: %v", src, err)
		}
		last = v
	}
	return last
}

// TestScenarioMapList is spec.md §8's `map(lambda(i,i*2), list(1,2,3))`
// → `list(2,4,6)`.
func TestScenarioMapList(t *testing.T) {
	got := eval(t, "map(lambda(i, mul(i, 2)), list(1, 2, 3))")
	items, ok := got.List()
	if !ok {
		t.Fatalf("expected a list result, got %s", got.GoString())
	}
	want := []int64{2, 4, 6}
	if len(items) != len(want) {
		t.Fatalf("length mismatch: %# v", pretty.Formatter(items))
	}
	for i, item := range items {
		n, ok := item.Array()
		if !ok {
			t.Fatalf("element %d: expected a numeric array, got %s", i, item.GoString())
		}
		nd := n.(*array.NDArray)
		if got := nd.AsInt64(); len(got) != 1 || got[0] != want[i] {
			t.Errorf("element %d = %# v, want %d", i, pretty.Formatter(got), want[i])
		}
	}
}

// TestScenarioDot is spec.md §8's
// `dot([[1,2,3],[4,5,6]], [[7,8],[9,10],[11,12]])` → `[[58,64],[139,154]]`.
func TestScenarioDot(t *testing.T) {
	got := eval(t, "dot([[1,2,3],[4,5,6]], [[7,8],[9,10],[11,12]])")
	a, ok := got.Array()
	if !ok {
		t.Fatalf("expected an array result, got %s", got.GoString())
	}
	nd := a.(*array.NDArray)
	want, err := array.NewInt64([]int64{58, 64, 139, 154}, []int{2, 2})
	if err != nil {
		t.Fatalf("building expected array: %v", err)
	}
	if !nd.EqualValue(want) {
		t.Errorf("dot(...) = %# v, want %# v", pretty.Formatter(nd.AsInt64()), pretty.Formatter(want.AsInt64()))
	}
}

// TestScenarioOneHot is spec.md §8's `one_hot(2,4)` → `[0,0,1,0]` and
// `one_hot(42,4)` → `[0,0,0,0]` (an out-of-range index yields all
// zeros rather than an error).
func TestScenarioOneHot(t *testing.T) {
	cases := []struct {
		src  string
		want []int64
	}{
		{"one_hot(2, 4)", []int64{0, 0, 1, 0}},
		{"one_hot(42, 4)", []int64{0, 0, 0, 0}},
	}
	for _, c := range cases {
		got := eval(t, c.src)
		a, ok := got.Array()
		if !ok {
			t.Fatalf("%s: expected an array result, got %s", c.src, got.GoString())
		}
		nd := a.(*array.NDArray)
		if got := nd.AsInt64(); !int64sEqual(got, c.want) {
			t.Errorf("%s = %# v, want %# v", c.src, pretty.Formatter(got), pretty.Formatter(c.want))
		}
	}
}

func int64sEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
