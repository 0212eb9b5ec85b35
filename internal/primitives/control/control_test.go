package control_test

import (
	"context"
	"testing"

	"phylanx/internal/primitive"
	"phylanx/internal/primitives/control"
	"phylanx/internal/value"
)

// constHandle registers a Constant wrapping v under table and returns a
// handle value.Value pointing at it, the same shape the compiler emits
// for every literal.
func constHandle(table *primitive.Table, gen *primitive.NameGenerator, v value.Value) value.Value {
	name := gen.Next("constant")
	node := control.NewConstant(name, v)
	table.Register(node)
	return value.HandleVal(value.Handle{Name: name.String()})
}

func TestBlockReturnsLastChild(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}

	a := constHandle(table, gen, value.Int64(1))
	b := constHandle(table, gen, value.Int64(2))

	blockName := gen.Next("block")
	block := control.NewBlock(blockName, []value.Value{a, b}, table)
	table.Register(block)

	ec := primitive.NewEvalContext(primitive.NewFrame())
	got, err := primitive.Await(context.Background(), block.Eval(context.Background(), nil, ec))
	if err != nil {
		t.Fatalf("Block.Eval: %v", err)
	}
	if n, ok := got.Int64(); !ok || n != 2 {
		t.Errorf("Block result = %s, want 2", got.GoString())
	}
}

func TestListBuildsValueList(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}

	elems := make([]value.Value, 3)
	for i, v := range []int64{1, 2, 3} {
		elems[i] = constHandle(table, gen, value.Int64(v))
	}

	listName := gen.Next("list")
	list := control.NewList(listName, elems, table)
	table.Register(list)

	ec := primitive.NewEvalContext(primitive.NewFrame())
	got, err := primitive.Await(context.Background(), list.Eval(context.Background(), nil, ec))
	if err != nil {
		t.Fatalf("List.Eval: %v", err)
	}
	items, ok := got.List()
	if !ok || len(items) != 3 {
		t.Fatalf("List result = %s, want a 3-element list", got.GoString())
	}
	for i, want := range []int64{1, 2, 3} {
		if n, ok := items[i].Int64(); !ok || n != want {
			t.Errorf("element %d = %s, want %d", i, items[i].GoString(), want)
		}
	}
}

func TestFilterKeepsTruthyElements(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}

	elems := make([]value.Value, 4)
	for i, v := range []int64{1, 2, 3, 4} {
		elems[i] = constHandle(table, gen, value.Int64(v))
	}
	listName := gen.Next("list")
	list := control.NewList(listName, elems, table)
	table.Register(list)
	listHandle := value.HandleVal(value.Handle{Name: listName.String()})

	bodyName := gen.Next("even_check")
	body := &evenCheck{Base: primitive.NewBase(bodyName, nil)}
	table.Register(body)
	bodyHandle := value.HandleVal(value.Handle{Name: bodyName.String()})

	closureName := gen.Next("lambda")
	closure := control.NewClosure(closureName, []string{"x"}, bodyHandle, table)
	table.Register(closure)
	predicate := value.FunctionVal(&value.Function{Target: value.Handle{Name: closureName.String()}})

	filterName := gen.Next("filter")
	filter := control.NewFilter(filterName, predicate, listHandle, table)
	table.Register(filter)

	ec := primitive.NewEvalContext(primitive.NewFrame())
	got, err := primitive.Await(context.Background(), filter.Eval(context.Background(), nil, ec))
	if err != nil {
		t.Fatalf("Filter.Eval: %v", err)
	}
	items, ok := got.List()
	if !ok || len(items) != 2 {
		t.Fatalf("Filter result = %s, want [2,4]", got.GoString())
	}
	for i, want := range []int64{2, 4} {
		if n, ok := items[i].Int64(); !ok || n != want {
			t.Errorf("element %d = %s, want %d", i, items[i].GoString(), want)
		}
	}
}

// evenCheck reads the caller's sole bound argument off ec.Caller and
// returns whether it's even, standing in for a compiled `eq(mod(x,2),0)`
// body without requiring arrayops here.
type evenCheck struct {
	primitive.Base
}

func (e *evenCheck) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	args := ec.Caller
	if len(args) != 1 {
		return primitive.NewFuture(value.Nil(), nil)
	}
	n, _ := args[0].Int64()
	return primitive.NewFuture(value.Bool(n%2 == 0), nil)
}
