package distarray_test

import (
	"context"
	"testing"

	"phylanx/internal/array"
	"phylanx/internal/distarray"
	"phylanx/internal/locality"
)

func newFabric(n int) (*locality.Registry, locality.Transport) {
	reg := locality.NewLocalRegistry(n)
	sched := locality.NewScheduler(2)
	return reg, locality.NewLocalTransport(sched)
}

func rowBlocks(t *testing.T, rows [][]int64, cols int) []*array.NDArray {
	t.Helper()
	tiles := make([]*array.NDArray, len(rows))
	for i, r := range rows {
		a, err := array.NewInt64(r, []int{len(r) / cols, cols})
		if err != nil {
			t.Fatalf("NewInt64: %v", err)
		}
		tiles[i] = a
	}
	return tiles
}

func TestAllGatherConcatenatesTilesInOrder(t *testing.T) {
	tiles := rowBlocks(t, [][]int64{{1, 2, 3}, {4, 5, 6}}, 3)
	da, err := distarray.NewFromRowBlocks(tiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks: %v", err)
	}
	reg, tr := newFabric(2)
	got, err := distarray.AllGather(context.Background(), da, reg, tr)
	if err != nil {
		t.Fatalf("AllGather: %v", err)
	}
	want := []int64{1, 2, 3, 4, 5, 6}
	ints := got.AsInt64()
	for i := range want {
		if ints[i] != want[i] {
			t.Errorf("AllGather()[%d] = %d, want %d", i, ints[i], want[i])
		}
	}
}

func TestAllGatherOfAlreadyGatheredIsFixpoint(t *testing.T) {
	tiles := rowBlocks(t, [][]int64{{1, 2}, {3, 4}}, 2)
	da, err := distarray.NewFromRowBlocks(tiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks: %v", err)
	}
	reg, tr := newFabric(2)
	ctx := context.Background()
	first, err := distarray.AllGather(ctx, da, reg, tr)
	if err != nil {
		t.Fatalf("AllGather: %v", err)
	}
	regrouped, err := distarray.NewFromRowBlocks([]*array.NDArray{first})
	if err != nil {
		t.Fatalf("NewFromRowBlocks (regathered): %v", err)
	}
	reg2, tr2 := newFabric(1)
	second, err := distarray.AllGather(ctx, regrouped, reg2, tr2)
	if err != nil {
		t.Fatalf("AllGather (second pass): %v", err)
	}
	if !first.EqualValue(second) {
		t.Errorf("gathering an already-gathered array changed its contents: %v != %v", first.AsInt64(), second.AsInt64())
	}
}

func TestRetileRoundTripIsIdentity(t *testing.T) {
	tiles := rowBlocks(t, [][]int64{{1, 2}, {3, 4}, {5, 6}}, 2)
	da, err := distarray.NewFromRowBlocks(tiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks: %v", err)
	}
	reg, tr := newFabric(3)
	ctx := context.Background()

	retiled, err := distarray.Retile(ctx, da, []int{0, 1, 3}, reg, tr)
	if err != nil {
		t.Fatalf("Retile: %v", err)
	}
	backReg, backTr := newFabric(len(retiled.Tiles))
	roundTripped, err := distarray.Retile(ctx, retiled, da.Offsets, backReg, backTr)
	if err != nil {
		t.Fatalf("Retile (round trip): %v", err)
	}

	origFull, _ := distarray.AllGather(ctx, da, reg, tr)
	rtFull, _ := distarray.AllGather(ctx, roundTripped, backReg, backTr)
	if !origFull.EqualValue(rtFull) {
		t.Errorf("retile round trip changed the array: %v != %v", origFull.AsInt64(), rtFull.AsInt64())
	}
}

func TestDotDMatrixMatrix(t *testing.T) {
	aTiles := rowBlocks(t, [][]int64{{1, 2, 3}, {4, 5, 6}}, 3)
	a, err := distarray.NewFromRowBlocks(aTiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks(a): %v", err)
	}
	bTiles := rowBlocks(t, [][]int64{{7, 8}, {9, 10}, {11, 12}}, 2)
	b, err := distarray.NewFromRowBlocks(bTiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks(b): %v", err)
	}
	reg, tr := newFabric(3)
	got, err := distarray.DotD(context.Background(), a, b, reg, tr)
	if err != nil {
		t.Fatalf("DotD: %v", err)
	}
	want, _ := array.NewInt64([]int64{58, 64, 139, 154}, []int{2, 2})
	if !got.EqualValue(want) {
		t.Errorf("DotD() = %v, want %v", got.AsInt64(), want.AsInt64())
	}
}

func TestCannonProductMatchesDotD(t *testing.T) {
	aTiles := rowBlocks(t, [][]int64{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}, {13, 14, 15, 16}}, 4)
	a, err := distarray.NewFromRowBlocks(aTiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks(a): %v", err)
	}
	bTiles := rowBlocks(t, [][]int64{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}, 4)
	b, err := distarray.NewFromRowBlocks(bTiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks(b): %v", err)
	}
	ctx := context.Background()

	dotReg, dotTr := newFabric(4)
	want, err := distarray.DotD(ctx, a, b, dotReg, dotTr)
	if err != nil {
		t.Fatalf("DotD: %v", err)
	}

	cannonReg, cannonTr := newFabric(4)
	got, err := distarray.CannonProduct(ctx, a, b, 2, cannonReg, cannonTr)
	if err != nil {
		t.Fatalf("CannonProduct: %v", err)
	}
	wantInts, gotDbl := want.AsInt64(), got.AsDouble()
	for i, w := range wantInts {
		if int64(gotDbl[i]) != w {
			t.Errorf("CannonProduct()[%d] = %v, want %d (DotD result)", i, gotDbl[i], w)
		}
	}
}

func TestReduceSumMeanMax(t *testing.T) {
	tiles := rowBlocks(t, [][]int64{{1, 2, 3}, {4, 5, 6}}, 1)
	da, err := distarray.NewFromRowBlocks(tiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		kind distarray.ReduceKind
		want float64
	}{
		{distarray.ReduceSum, 21},
		{distarray.ReduceMean, 3.5},
		{distarray.ReduceMax, 6},
	}
	for _, c := range cases {
		reg, tr := newFabric(2)
		got, err := distarray.Reduce(ctx, da, c.kind, reg, tr)
		if err != nil {
			t.Fatalf("Reduce(%v): %v", c.kind, err)
		}
		if d := got.AsDouble(); len(d) != 1 || d[0] != c.want {
			t.Errorf("Reduce(%v) = %v, want %v", c.kind, d, c.want)
		}
	}
}

func TestReduceArgmaxFindsGlobalIndex(t *testing.T) {
	tiles := rowBlocks(t, [][]int64{{1, 2, 3}, {9, 5, 6}}, 1)
	da, err := distarray.NewFromRowBlocks(tiles)
	if err != nil {
		t.Fatalf("NewFromRowBlocks: %v", err)
	}
	reg, tr := newFabric(2)
	got, err := distarray.Reduce(context.Background(), da, distarray.ReduceArgmax, reg, tr)
	if err != nil {
		t.Fatalf("Reduce(ReduceArgmax): %v", err)
	}
	if ints := got.AsInt64(); len(ints) != 1 || ints[0] != 3 {
		t.Errorf("argmax index = %v, want 3 (value 9 is the 4th flat element)", ints)
	}
}

func TestConv1DValidShrinksOutput(t *testing.T) {
	tileA, err := array.NewInt64([]int64{1, 2, 3}, []int{3})
	if err != nil {
		t.Fatalf("NewInt64: %v", err)
	}
	tileB, err := array.NewInt64([]int64{4, 5, 6}, []int{3})
	if err != nil {
		t.Fatalf("NewInt64: %v", err)
	}
	da, err := distarray.NewFromRowBlocks([]*array.NDArray{tileA, tileB})
	if err != nil {
		t.Fatalf("NewFromRowBlocks: %v", err)
	}
	reg, tr := newFabric(2)
	got, err := distarray.Conv1D(context.Background(), da, []float64{1, 1}, distarray.ConvValid, reg, tr)
	if err != nil {
		t.Fatalf("Conv1D: %v", err)
	}
	// Signal is [1,2,3,4,5,6]; VALID with a width-2 kernel of ones sums
	// each adjacent pair: 5 outputs from 6 inputs.
	if got.Size() != 5 {
		t.Errorf("Conv1D(VALID) produced %d outputs, want 5", got.Size())
	}
}

func TestSortOffsets(t *testing.T) {
	got := distarray.SortOffsets([]int{4, 0, 2})
	want := []int{0, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortOffsets()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
