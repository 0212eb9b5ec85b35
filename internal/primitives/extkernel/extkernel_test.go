package extkernel_test

import (
	"context"
	"path/filepath"
	"testing"

	"phylanx/internal/array"
	"phylanx/internal/primitive"
	"phylanx/internal/primitives/arrayops"
	"phylanx/internal/primitives/extkernel"
	"phylanx/internal/value"
)

func constHandle(table *primitive.Table, gen *primitive.NameGenerator, v value.Value) value.Value {
	name := gen.Next("constant")
	table.Register(&constNode{Base: primitive.NewBase(name, nil), v: v})
	return value.HandleVal(value.Handle{Name: name.String()})
}

type constNode struct {
	primitive.Base
	v value.Value
}

func (c *constNode) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.NewFuture(c.v, nil)
}

func evalNode(t *testing.T, n primitive.Node) value.Value {
	t.Helper()
	ec := primitive.NewEvalContext(primitive.NewFrame())
	got, err := primitive.Await(context.Background(), n.Eval(context.Background(), nil, ec))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	return got
}

func TestFileWriteThenReadRoundTrips(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}
	path := filepath.Join(t.TempDir(), "note.txt")

	pathHandle := constHandle(table, gen, value.String(path))
	contentsHandle := constHandle(table, gen, value.String("hello phylanx"))

	writeName := gen.Next("file_write")
	writeNode, err := extkernel.NewFileWrite(writeName, []value.Value{pathHandle, contentsHandle}, table)
	if err != nil {
		t.Fatalf("NewFileWrite: %v", err)
	}
	if ok, _ := evalNode(t, writeNode).Bool(); !ok {
		t.Fatalf("file_write did not report success")
	}

	readName := gen.Next("file_read")
	readNode, err := extkernel.NewFileRead(readName, []value.Value{pathHandle}, table)
	if err != nil {
		t.Fatalf("NewFileRead: %v", err)
	}
	got, ok := evalNode(t, readNode).String()
	if !ok || got != "hello phylanx" {
		t.Errorf("file_read got %q, want %q", got, "hello phylanx")
	}
}

func TestFileWriteCSVThenReadCSVRoundTrips(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}
	path := filepath.Join(t.TempDir(), "table.csv")

	pathHandle := constHandle(table, gen, value.String(path))
	nd, err := array.NewDouble([]float64{1, 2, 3, 4}, []int{2, 2})
	if err != nil {
		t.Fatalf("NewDouble: %v", err)
	}
	arrHandle := constHandle(table, gen, value.Array(nd))

	writeName := gen.Next("file_write_csv")
	writeNode, err := extkernel.NewFileWriteCSV(writeName, []value.Value{pathHandle, arrHandle}, table)
	if err != nil {
		t.Fatalf("NewFileWriteCSV: %v", err)
	}
	if ok, _ := evalNode(t, writeNode).Bool(); !ok {
		t.Fatalf("file_write_csv did not report success")
	}

	readName := gen.Next("file_read_csv")
	readNode, err := extkernel.NewFileReadCSV(readName, []value.Value{pathHandle}, table)
	if err != nil {
		t.Fatalf("NewFileReadCSV: %v", err)
	}
	got := evalNode(t, readNode)
	a, ok := got.Array()
	if !ok {
		t.Fatalf("file_read_csv returned non-array %s", got.GoString())
	}
	gotNd := a.(*array.NDArray)
	if !gotNd.EqualValue(nd) {
		t.Errorf("file_read_csv round trip = %v, want %v", gotNd.AsDouble(), nd.AsDouble())
	}
}

func TestFileWriteHDF5ThenReadHDF5RoundTrips(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}
	path := filepath.Join(t.TempDir(), "weights.h5")

	pathHandle := constHandle(table, gen, value.String(path))
	nd, err := array.NewInt64([]int64{1, 2, 3, 4, 5, 6}, []int{2, 3})
	if err != nil {
		t.Fatalf("NewInt64: %v", err)
	}
	arrHandle := constHandle(table, gen, value.Array(nd))

	writeName := gen.Next("file_write_hdf5")
	writeNode, err := extkernel.NewFileWriteHDF5(writeName, []value.Value{pathHandle, arrHandle}, table)
	if err != nil {
		t.Fatalf("NewFileWriteHDF5: %v", err)
	}
	if ok, _ := evalNode(t, writeNode).Bool(); !ok {
		t.Fatalf("file_write_hdf5 did not report success")
	}

	readName := gen.Next("file_read_hdf5")
	readNode, err := extkernel.NewFileReadHDF5(readName, []value.Value{pathHandle}, table)
	if err != nil {
		t.Fatalf("NewFileReadHDF5: %v", err)
	}
	got := evalNode(t, readNode)
	a, ok := got.Array()
	if !ok {
		t.Fatalf("file_read_hdf5 returned non-array %s", got.GoString())
	}
	gotNd := a.(*array.NDArray)
	if !gotNd.EqualValue(nd) {
		t.Errorf("file_read_hdf5 round trip = %v, want %v", gotNd.AsInt64(), nd.AsInt64())
	}
}

func TestRandomIsDeterministicAfterSetSeed(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}

	seedVal, _ := array.NewInt64([]int64{7}, nil)
	seedHandle := constHandle(table, gen, value.Array(seedVal))
	setSeedName := gen.Next("set_seed")
	setSeedNode, err := arrayops.NewSetSeed(setSeedName, []value.Value{seedHandle}, table)
	if err != nil {
		t.Fatalf("NewSetSeed: %v", err)
	}
	evalNode(t, setSeedNode)

	shapeHandle := constHandle(table, gen, value.Int64(3))
	randName := gen.Next("random")
	randNode, err := extkernel.NewRandom(randName, []value.Value{shapeHandle}, table)
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	first := evalNode(t, randNode)

	evalNode(t, setSeedNode)
	second := evalNode(t, randNode)

	fa, _ := first.Array()
	sa, _ := second.Array()
	fNd, sNd := fa.(*array.NDArray), sa.(*array.NDArray)
	if !fNd.EqualValue(sNd) {
		t.Errorf("random() draws after identical set_seed diverged: %v != %v", fNd.AsDouble(), sNd.AsDouble())
	}
}

func TestFormatStringSubstitutes(t *testing.T) {
	table := primitive.NewTable()
	gen := &primitive.NameGenerator{}

	tmpl := constHandle(table, gen, value.String("n=%s"))
	arg := constHandle(table, gen, value.Int64(42))

	name := gen.Next("format_string")
	node, err := extkernel.NewFormatString(name, []value.Value{tmpl, arg}, table)
	if err != nil {
		t.Fatalf("NewFormatString: %v", err)
	}
	got, ok := evalNode(t, node).String()
	if !ok || got != "n=42" {
		t.Errorf("format_string = %q, want %q", got, "n=42")
	}
}

func TestTimerNowReturnsAPositiveReading(t *testing.T) {
	table := primitive.NewTable()
	name := (&primitive.NameGenerator{}).Next("timer_now")
	node, err := extkernel.NewTimerKernel(name, nil, table)
	if err != nil {
		t.Fatalf("NewTimerKernel: %v", err)
	}
	got := evalNode(t, node)
	a, ok := got.Array()
	if !ok {
		t.Fatalf("timer_now returned non-array %s", got.GoString())
	}
	if d := a.(*array.NDArray).AsDouble(); len(d) != 1 || d[0] <= 0 {
		t.Errorf("timer_now() = %v, want a single positive reading", d)
	}
}
