package arrayops

import (
	"context"

	"phylanx/internal/array"
	"phylanx/internal/distarray"
	"phylanx/internal/errors"
	"phylanx/internal/locality"
	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// splitRows partitions a's axis 0 into n row-block tiles as evenly as
// possible (the first rows%n tiles each take one extra row), the same even-split a
// real deployment's placement policy would use to hand each locality an
// initial shard before the first retile (spec.md §4.4). n is clamped to
// the row count so a small array never yields empty tiles.
func splitRows(a *array.NDArray, n int) ([]*array.NDArray, error) {
	if a.Rank() == 0 {
		return nil, errors.NewShapeError("distributed array primitives require rank >= 1", "", 0, 0)
	}
	rows := a.Shape[0]
	if n <= 0 {
		n = 1
	}
	if n > rows {
		n = rows
	}
	base, extra := rows/n, rows%n
	tail := a.Shape[1:]
	rowSize := 1
	for _, d := range tail {
		rowSize *= d
	}
	data := a.AsDouble()
	tiles := make([]*array.NDArray, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		shape := append([]int{size}, tail...)
		chunk := append([]float64{}, data[start*rowSize:(start+size)*rowSize]...)
		tile, err := narrowLocal(chunk, shape, a.Dtype)
		if err != nil {
			return nil, err
		}
		tiles[i] = tile
		start += size
	}
	return tiles, nil
}

func narrowLocal(data []float64, shape []int, dt array.Dtype) (*array.NDArray, error) {
	switch dt {
	case array.Double:
		return array.NewDouble(data, shape)
	case array.Int64:
		ints := make([]int64, len(data))
		for i, v := range data {
			ints[i] = int64(v)
		}
		return array.NewInt64(ints, shape)
	default:
		bools := make([]bool, len(data))
		for i, v := range data {
			bools[i] = v != 0
		}
		return array.NewBool(bools, shape)
	}
}

// distEnv builds a fresh single-process locality fabric (scheduler +
// registry + LocalTransport) for one collective call; every distributed
// primitive owns its own short-lived fabric rather than sharing a
// program-wide one, matching how the teacher's internal/concurrency
// worker pool is scoped per top-level evaluation rather than kept as
// hidden global state.
func distEnv(n int) (*locality.Registry, locality.Transport, func()) {
	sched := locality.NewScheduler(n)
	reg := locality.NewLocalRegistry(n)
	transport := locality.NewLocalTransport(sched)
	return reg, transport, sched.Shutdown
}

func intArg(v value.Value, who string) (int, error) {
	if n, ok := v.Int64(); ok {
		return int(n), nil
	}
	a, err := asArray(v, who)
	if err != nil {
		return 0, err
	}
	return int(a.At(0)), nil
}

// RetileD implements `retile_d(array, tile_sizes)`: tile_sizes is a list
// of row counts summing to the array's row count; the array is
// redistributed onto those boundaries and gathered back, exercising
// distarray.Retile's round-trip property (spec.md §8).
type RetileD struct {
	primitive.Base
	Array, Sizes value.Value
	Table        *primitive.Table
}

func NewRetileD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &RetileD{Base: primitive.NewBase(name, args), Array: args[0], Sizes: args[1], Table: table}, nil
}

func (r *RetileD) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		av, err := evalOperand(ctx, r.Array, r.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		a, err := asArray(av, "retile_d")
		if err != nil {
			return value.Nil(), err
		}
		sv, err := evalOperand(ctx, r.Sizes, r.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		sizesList, ok := sv.List()
		if !ok {
			return value.Nil(), errors.NewTypeError("retile_d expects a list of tile sizes", "", 0, 0)
		}
		offsets := make([]int, len(sizesList)+1)
		for i, s := range sizesList {
			n, err := intArg(s, "retile_d")
			if err != nil {
				return value.Nil(), err
			}
			offsets[i+1] = offsets[i] + n
		}
		n := len(sizesList)
		if n == 0 {
			n = 1
		}
		tiles, err := splitRows(a, n)
		if err != nil {
			return value.Nil(), err
		}
		da, err := distarray.NewFromRowBlocks(tiles)
		if err != nil {
			return value.Nil(), err
		}
		reg, transport, shutdown := distEnv(len(offsets) - 1)
		defer shutdown()
		retiled, err := distarray.Retile(ctx, da, offsets, reg, transport)
		if err != nil {
			return value.Nil(), err
		}
		full, err := distarray.AllGather(ctx, retiled, reg, transport)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(full), nil
	})
}

// AllGatherD implements `all_gather_d(array, locality_count)`: splits
// array into locality_count row-block tiles, then gathers them back
// through Transport. Gathering an already-gathered array is a no-op
// (the fixpoint property spec.md §8 names).
type AllGatherD struct {
	primitive.Base
	Array, Localities value.Value
	Table             *primitive.Table
}

func NewAllGatherD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &AllGatherD{Base: primitive.NewBase(name, args), Array: args[0], Localities: args[1], Table: table}, nil
}

func (g *AllGatherD) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		av, err := evalOperand(ctx, g.Array, g.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		a, err := asArray(av, "all_gather_d")
		if err != nil {
			return value.Nil(), err
		}
		lv, err := evalOperand(ctx, g.Localities, g.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		n, err := intArg(lv, "all_gather_d")
		if err != nil {
			return value.Nil(), err
		}
		tiles, err := splitRows(a, n)
		if err != nil {
			return value.Nil(), err
		}
		da, err := distarray.NewFromRowBlocks(tiles)
		if err != nil {
			return value.Nil(), err
		}
		reg, transport, shutdown := distEnv(len(tiles))
		defer shutdown()
		full, err := distarray.AllGather(ctx, da, reg, transport)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(full), nil
	})
}

// distBinary is shared scaffolding for dot_d and cannon_product_d: both
// take two arrays and a locality (or grid) count, split each operand
// row-wise, and hand the two DistArrays to a distarray collective.
type distBinary struct {
	primitive.Base
	Left, Right, Count value.Value
	Table              *primitive.Table
	op                 string
	run                func(ctx context.Context, a, b *distarray.DistArray, count int, reg *locality.Registry, t locality.Transport) (*array.NDArray, error)
}

func newDistBinary(name primitive.Name, op string, args []value.Value, table *primitive.Table, run func(context.Context, *distarray.DistArray, *distarray.DistArray, int, *locality.Registry, locality.Transport) (*array.NDArray, error)) *distBinary {
	return &distBinary{Base: primitive.NewBase(name, args), Left: args[0], Right: args[1], Count: args[2], Table: table, op: op, run: run}
}

func (d *distBinary) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		lv, err := evalOperand(ctx, d.Left, d.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		rv, err := evalOperand(ctx, d.Right, d.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		la, err := asArray(lv, d.op)
		if err != nil {
			return value.Nil(), err
		}
		ra, err := asArray(rv, d.op)
		if err != nil {
			return value.Nil(), err
		}
		cv, err := evalOperand(ctx, d.Count, d.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		count, err := intArg(cv, d.op)
		if err != nil {
			return value.Nil(), err
		}
		ltiles, err := splitRows(la, count)
		if err != nil {
			return value.Nil(), err
		}
		rtiles, err := splitRows(ra, count)
		if err != nil {
			return value.Nil(), err
		}
		lda, err := distarray.NewFromRowBlocks(ltiles)
		if err != nil {
			return value.Nil(), err
		}
		rda, err := distarray.NewFromRowBlocks(rtiles)
		if err != nil {
			return value.Nil(), err
		}
		reg, transport, shutdown := distEnv(len(ltiles) + len(rtiles))
		defer shutdown()
		out, err := d.run(ctx, lda, rda, count, reg, transport)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}

// NewDotD implements `dot_d(a, b, locality_count)` over distarray.DotD.
func NewDotD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newDistBinary(name, "dot_d", args, table, func(ctx context.Context, a, b *distarray.DistArray, count int, reg *locality.Registry, t locality.Transport) (*array.NDArray, error) {
		return distarray.DotD(ctx, a, b, reg, t)
	}), nil
}

// NewCannonProductD implements `cannon_product_d(a, b, grid_dim)`: the
// third argument is the square process-grid dimension, not a raw
// locality count (spec.md §4.4 "Cannon's algorithm" requires
// grid_dim*grid_dim participants and grid_dim | n).
func NewCannonProductD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newDistBinary(name, "cannon_product_d", args, table, func(ctx context.Context, a, b *distarray.DistArray, gridDim int, reg *locality.Registry, t locality.Transport) (*array.NDArray, error) {
		return distarray.CannonProduct(ctx, a, b, gridDim, reg, t)
	}), nil
}

// distReduce is shared scaffolding for sum_d/mean_d/max_d/argmin_d/argmax_d.
type distReduce struct {
	primitive.Base
	Array, Localities value.Value
	Table             *primitive.Table
	kind              distarray.ReduceKind
	name              string
}

func newDistReduce(nm primitive.Name, op string, kind distarray.ReduceKind, args []value.Value, table *primitive.Table) *distReduce {
	return &distReduce{Base: primitive.NewBase(nm, args), Array: args[0], Localities: args[1], Table: table, kind: kind, name: op}
}

func (r *distReduce) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		av, err := evalOperand(ctx, r.Array, r.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		a, err := asArray(av, r.name)
		if err != nil {
			return value.Nil(), err
		}
		lv, err := evalOperand(ctx, r.Localities, r.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		n, err := intArg(lv, r.name)
		if err != nil {
			return value.Nil(), err
		}
		tiles, err := splitRows(a, n)
		if err != nil {
			return value.Nil(), err
		}
		da, err := distarray.NewFromRowBlocks(tiles)
		if err != nil {
			return value.Nil(), err
		}
		reg, transport, shutdown := distEnv(len(tiles))
		defer shutdown()
		out, err := distarray.Reduce(ctx, da, r.kind, reg, transport)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}

func NewSumD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newDistReduce(name, "sum_d", distarray.ReduceSum, args, table), nil
}
func NewMeanD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newDistReduce(name, "mean_d", distarray.ReduceMean, args, table), nil
}
func NewMaxD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newDistReduce(name, "max_d", distarray.ReduceMax, args, table), nil
}
func NewArgminD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newDistReduce(name, "argmin_d", distarray.ReduceArgmin, args, table), nil
}
func NewArgmaxD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newDistReduce(name, "argmax_d", distarray.ReduceArgmax, args, table), nil
}

// Conv1DD implements `conv1d_d(array, kernel, mode, locality_count)`.
type Conv1DD struct {
	primitive.Base
	Array, Kernel, Mode, Localities value.Value
	Table                           *primitive.Table
}

func NewConv1DD(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &Conv1DD{Base: primitive.NewBase(name, args), Array: args[0], Kernel: args[1], Mode: args[2], Localities: args[3], Table: table}, nil
}

func (c *Conv1DD) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		av, err := evalOperand(ctx, c.Array, c.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		a, err := asArray(av, "conv1d_d")
		if err != nil {
			return value.Nil(), err
		}
		kv, err := evalOperand(ctx, c.Kernel, c.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		ka, err := asArray(kv, "conv1d_d")
		if err != nil {
			return value.Nil(), err
		}
		mv, err := evalOperand(ctx, c.Mode, c.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		mode, ok := mv.String()
		if !ok {
			return value.Nil(), errors.NewTypeError("conv1d_d expects a string mode argument", "", 0, 0)
		}
		lv, err := evalOperand(ctx, c.Localities, c.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		n, err := intArg(lv, "conv1d_d")
		if err != nil {
			return value.Nil(), err
		}
		tiles, err := splitRows(a, n)
		if err != nil {
			return value.Nil(), err
		}
		da, err := distarray.NewFromRowBlocks(tiles)
		if err != nil {
			return value.Nil(), err
		}
		reg, transport, shutdown := distEnv(len(tiles))
		defer shutdown()
		out, err := distarray.Conv1D(ctx, da, ka.AsDouble(), distarray.Conv1DMode(mode), reg, transport)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}
