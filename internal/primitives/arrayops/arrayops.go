// Package arrayops wraps the numeric-array kernels of internal/array
// (and, for the distributed primitives, internal/distarray) in the
// primitive.Node contract, giving every array-producing spec.md §4.4
// verb a registrable leaf: elementwise arithmetic/comparison/logical
// ops, hstack (the array-literal lowering target), one_hot, and the
// process-global RNG seed. Adapted from the teacher's
// internal/vm/builtins_math.go (bare Go functions registered by name
// into an opcode dispatch table) but retargeted to return futures over
// value.Value instead of pushing onto a bytecode VM's operand stack.
package arrayops

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"phylanx/internal/array"
	"phylanx/internal/errors"
	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// evalOperand forces one already-lowered operand handle through the
// shared table, matching the same dereference helper every control
// primitive uses (internal/primitives/control's evalHandle); arrayops
// keeps its own copy rather than importing control, since the two
// packages otherwise have no reason to depend on each other.
func evalOperand(ctx context.Context, v value.Value, table *primitive.Table, ec primitive.EvalContext) (value.Value, error) {
	h, ok := v.Handle()
	if !ok {
		return v, nil
	}
	node, ok := table.Get(h.Name)
	if !ok {
		return value.Nil(), errors.NewNameError(h.Name, "", 0, 0)
	}
	return primitive.Await(ctx, node.Eval(ctx, nil, ec))
}

// asArray widens v to a dense *array.NDArray. spec.md §3 keeps bare
// bool/int64 scalars as their own Value kinds distinct from rank-0
// numeric arrays, but every elementwise primitive here is written in
// terms of NDArray only, so a bare scalar is treated as its rank-0
// array equivalent rather than rejected.
func asArray(v value.Value, who string) (*array.NDArray, error) {
	if a, ok := v.Array(); ok {
		nd, ok := a.(*array.NDArray)
		if !ok {
			return nil, errors.NewTypeError(who+" expects a dense numeric array", "", 0, 0)
		}
		return nd, nil
	}
	if n, ok := v.Int64(); ok {
		return array.NewInt64([]int64{n}, nil)
	}
	if b, ok := v.Bool(); ok {
		return array.NewBool([]bool{b}, nil)
	}
	return nil, errors.NewTypeError(who+" expects a numeric array argument, got "+v.Kind().String(), "", 0, 0)
}

// binaryKernel is the shape every elementwise binary primitive
// (Add/Sub/Mul/Div/comparisons/logical) shares: two operand handles, a
// name, and a kernel function over two realized *array.NDArray.
type binaryKernel struct {
	primitive.Base
	Left, Right value.Value
	Table       *primitive.Table
	op          string
	kernel      func(a, b *array.NDArray) (*array.NDArray, error)
}

func newBinaryKernel(name primitive.Name, op string, left, right value.Value, table *primitive.Table, kernel func(a, b *array.NDArray) (*array.NDArray, error)) *binaryKernel {
	return &binaryKernel{Base: primitive.NewBase(name, []value.Value{left, right}), Left: left, Right: right, Table: table, op: op, kernel: kernel}
}

func (k *binaryKernel) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		lv, err := evalOperand(ctx, k.Left, k.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		rv, err := evalOperand(ctx, k.Right, k.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		la, err := asArray(lv, k.op)
		if err != nil {
			return value.Nil(), err
		}
		ra, err := asArray(rv, k.op)
		if err != nil {
			return value.Nil(), err
		}
		out, err := k.kernel(la, ra)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}

func NewAdd(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "add", args[0], args[1], table, array.Add), nil
}

func NewSub(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "sub", args[0], args[1], table, array.Sub), nil
}

func NewMul(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "mul", args[0], args[1], table, array.Mul), nil
}

// NewDot implements the single-locality `dot(a, b)` (spec.md §3/§8):
// inner product, matrix-vector, or matrix-matrix depending on rank,
// sharing array.Dot's rank dispatch with the distributed dot_d/Cannon
// paths once they've gathered their tiles onto one array.
func NewDot(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "dot", args[0], args[1], table, array.Dot), nil
}

// NewDiv performs elementwise division. When both operands are bool/
// int64 (no double involved), the result is integer division truncated
// toward zero, matching Go's native `/` for integers; a zero divisor in
// that case is a UserError, since Go's own `/` panics there rather than
// producing a value. Once either operand is a double, division
// promotes to floating point and a zero divisor produces +/-Inf or NaN
// following IEEE 754 rather than erroring, since spec.md names no
// div-by-zero error kind for the floating case (spec.md §4.5).
func NewDiv(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "div", args[0], args[1], table, divKernel), nil
}

// NewMod implements PhySL's `%` operator (mod(a, b)), lowered by the
// compiler's binaryPrimitiveName the same way add/sub/mul/div are. Its
// integer path truncates toward zero exactly like Go's `%`; a floating
// operand falls back to math.Mod with the same sign convention.
func NewMod(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "mod", args[0], args[1], table, modKernel), nil
}

func divKernel(a, b *array.NDArray) (*array.NDArray, error) {
	outShape, err := array.BroadcastShapes(a.Shape, b.Shape, "div")
	if err != nil {
		return nil, err
	}
	if array.Promote(a.Dtype, b.Dtype) != array.Double {
		return intBroadcast(a, b, outShape, "div", func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, errors.NewUserError("div: integer division by zero", "", 0, 0)
			}
			return x / y, nil
		})
	}
	ad, bd := a.AsDouble(), b.AsDouble()
	n := 1
	for _, d := range outShape {
		n *= d
	}
	out := make([]float64, n)
	pa, pb := padShape(a.Shape, len(outShape)), padShape(b.Shape, len(outShape))
	for i := 0; i < n; i++ {
		ai := broadcastFlat(i, outShape, pa)
		bi := broadcastFlat(i, outShape, pb)
		out[i] = ad[ai] / bd[bi]
	}
	return array.NewDouble(out, outShape)
}

func modKernel(a, b *array.NDArray) (*array.NDArray, error) {
	outShape, err := array.BroadcastShapes(a.Shape, b.Shape, "mod")
	if err != nil {
		return nil, err
	}
	if array.Promote(a.Dtype, b.Dtype) != array.Double {
		return intBroadcast(a, b, outShape, "mod", func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, errors.NewUserError("mod: integer division by zero", "", 0, 0)
			}
			return x % y, nil
		})
	}
	ad, bd := a.AsDouble(), b.AsDouble()
	n := 1
	for _, d := range outShape {
		n *= d
	}
	out := make([]float64, n)
	pa, pb := padShape(a.Shape, len(outShape)), padShape(b.Shape, len(outShape))
	for i := 0; i < n; i++ {
		ai := broadcastFlat(i, outShape, pa)
		bi := broadcastFlat(i, outShape, pb)
		out[i] = math.Mod(ad[ai], bd[bi])
	}
	return array.NewDouble(out, outShape)
}

// intBroadcast runs f over the broadcast of a and b's int64 views,
// the integer-truncating counterpart to div/mod's floating-point
// broadcast loop above.
func intBroadcast(a, b *array.NDArray, outShape []int, op string, f func(x, y int64) (int64, error)) (*array.NDArray, error) {
	ai64, bi64 := a.AsInt64(), b.AsInt64()
	n := 1
	for _, d := range outShape {
		n *= d
	}
	out := make([]int64, n)
	pa, pb := padShape(a.Shape, len(outShape)), padShape(b.Shape, len(outShape))
	for i := 0; i < n; i++ {
		ai := broadcastFlat(i, outShape, pa)
		bi := broadcastFlat(i, outShape, pb)
		v, err := f(ai64[ai], bi64[bi])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return array.NewInt64(out, outShape)
}

// padShape/broadcastFlat duplicate internal/array's unexported
// leftPad/broadcastIndex helpers, needed here for the div, mod and
// comparison kernels (the three promoted-output ops reuse
// array.Add/Sub/Mul directly); kept tiny and local rather than
// exporting internal/array internals for this package.
func padShape(shape []int, rank int) []int {
	if len(shape) >= rank {
		return shape
	}
	out := make([]int, rank)
	pad := rank - len(shape)
	for i := 0; i < pad; i++ {
		out[i] = 1
	}
	copy(out[pad:], shape)
	return out
}

func broadcastFlat(flat int, outShape, srcShape []int) int {
	rank := len(outShape)
	outStrides := stridesOf(outShape)
	srcStrides := stridesOf(srcShape)
	idx, rem := 0, flat
	for i := 0; i < rank; i++ {
		coord := rem / outStrides[i]
		rem -= coord * outStrides[i]
		if srcShape[i] == 1 {
			continue
		}
		idx += coord * srcStrides[i]
	}
	return idx
}

func stridesOf(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func comparisonKernel(cmp func(x, y float64) bool) func(a, b *array.NDArray) (*array.NDArray, error) {
	return func(a, b *array.NDArray) (*array.NDArray, error) {
		outShape, err := array.BroadcastShapes(a.Shape, b.Shape, "compare")
		if err != nil {
			return nil, err
		}
		ad, bd := a.AsDouble(), b.AsDouble()
		n := 1
		for _, d := range outShape {
			n *= d
		}
		out := make([]bool, n)
		pa, pb := padShape(a.Shape, len(outShape)), padShape(b.Shape, len(outShape))
		for i := 0; i < n; i++ {
			ai := broadcastFlat(i, outShape, pa)
			bi := broadcastFlat(i, outShape, pb)
			out[i] = cmp(ad[ai], bd[bi])
		}
		return array.NewBool(out, outShape)
	}
}

func NewEq(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "eq", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x == y })), nil
}
func NewNeq(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "neq", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x != y })), nil
}
func NewLt(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "lt", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x < y })), nil
}
func NewLe(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "le", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x <= y })), nil
}
func NewGt(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "gt", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x > y })), nil
}
func NewGe(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "ge", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x >= y })), nil
}
func NewAnd(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "and", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x != 0 && y != 0 })), nil
}
func NewOr(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newBinaryKernel(name, "or", args[0], args[1], table, comparisonKernel(func(x, y float64) bool { return x != 0 || y != 0 })), nil
}

// unaryKernel mirrors binaryKernel for neg/not.
type unaryKernel struct {
	primitive.Base
	Operand value.Value
	Table   *primitive.Table
	op      string
	kernel  func(a *array.NDArray) (*array.NDArray, error)
}

func newUnaryKernel(name primitive.Name, op string, operand value.Value, table *primitive.Table, kernel func(a *array.NDArray) (*array.NDArray, error)) *unaryKernel {
	return &unaryKernel{Base: primitive.NewBase(name, []value.Value{operand}), Operand: operand, Table: table, op: op, kernel: kernel}
}

func (k *unaryKernel) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		v, err := evalOperand(ctx, k.Operand, k.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		a, err := asArray(v, k.op)
		if err != nil {
			return value.Nil(), err
		}
		out, err := k.kernel(a)
		if err != nil {
			return value.Nil(), err
		}
		return value.Array(out), nil
	})
}

func NewNeg(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newUnaryKernel(name, "neg", args[0], table, func(a *array.NDArray) (*array.NDArray, error) {
		d := a.AsDouble()
		out := make([]float64, len(d))
		for i, x := range d {
			out[i] = -x
		}
		return array.NewDouble(out, a.Shape)
	}), nil
}

func NewNot(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return newUnaryKernel(name, "not", args[0], table, func(a *array.NDArray) (*array.NDArray, error) {
		b := a.AsBool()
		out := make([]bool, len(b))
		for i, x := range b {
			out[i] = !x
		}
		return array.NewBool(out, a.Shape)
	}), nil
}

// HStack builds a rank-1 vector when every operand is rank 0 (the
// array-literal case, spec.md §4.3), and otherwise stacks its operands,
// which must all share one shape, along a new leading axis. Grounded on
// the teacher's internal/dataframe
// concat-like stacking helpers, generalized to arbitrary rank <=3.
type HStack struct {
	primitive.Base
	Elements []value.Value
	Table    *primitive.Table
}

func NewHStack(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &HStack{Base: primitive.NewBase(name, args), Elements: args, Table: table}, nil
}

func (h *HStack) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		if len(h.Elements) == 0 {
			out, err := array.NewDouble(nil, []int{0})
			return value.Array(out), err
		}
		arrs := make([]*array.NDArray, len(h.Elements))
		dt := array.Bool
		allScalar := true
		for i, el := range h.Elements {
			v, err := evalOperand(ctx, el, h.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			a, err := asArray(v, "hstack")
			if err != nil {
				return value.Nil(), err
			}
			arrs[i] = a
			dt = array.Promote(dt, a.Dtype)
			if a.Rank() != 0 {
				allScalar = false
			}
		}
		if allScalar {
			data := make([]float64, len(arrs))
			for i, a := range arrs {
				data[i] = a.At(0)
			}
			return value.Array(mustNarrow(data, []int{len(arrs)}, dt)), nil
		}
		// Stack every non-scalar element along a new leading axis, so a
		// nested literal `[[1,2,3],[4,5,6]]` (two rank-1 hstack results)
		// becomes a rank-2 array of shape [2,3] rather than a flattened
		// rank-1 array: spec.md §4.3's "array literals lower to hstack"
		// only makes sense for matrix/tensor literals if stacking adds a
		// dimension instead of concatenating into the existing one.
		tail := arrs[0].Shape
		for _, a := range arrs {
			if !shapeEqual(a.Shape, tail) {
				return value.Nil(), errors.NewShapeError("hstack: element shapes disagree", "", 0, 0)
			}
		}
		outShape := append([]int{len(arrs)}, tail...)
		var data []float64
		for _, a := range arrs {
			data = append(data, a.AsDouble()...)
		}
		return value.Array(mustNarrow(data, outShape, dt)), nil
	})
}

func shapeEqual(a, b []int) bool {
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

func mustNarrow(data []float64, shape []int, dt array.Dtype) *array.NDArray {
	switch dt {
	case array.Double:
		a, _ := array.NewDouble(data, shape)
		return a
	case array.Int64:
		ints := make([]int64, len(data))
		for i, v := range data {
			ints[i] = int64(v)
		}
		a, _ := array.NewInt64(ints, shape)
		return a
	default:
		bools := make([]bool, len(data))
		for i, v := range data {
			bools[i] = v != 0
		}
		a, _ := array.NewBool(bools, shape)
		return a
	}
}

// OneHot lowers `one_hot(index, depth)`: out-of-range index clamps to
// the all-zero vector rather than erroring or wrapping (REDESIGN FLAGS,
// spec.md §9: the reference clamp-to-zero-vector behaviour is kept, so a
// single bad index never aborts a larger reduction).
type OneHot struct {
	primitive.Base
	Index, Depth value.Value
	Table        *primitive.Table
}

func NewOneHot(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &OneHot{Base: primitive.NewBase(name, args), Index: args[0], Depth: args[1], Table: table}, nil
}

func (o *OneHot) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		iv, err := evalOperand(ctx, o.Index, o.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		dv, err := evalOperand(ctx, o.Depth, o.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		ia, err := asArray(iv, "one_hot")
		if err != nil {
			return value.Nil(), err
		}
		da, err := asArray(dv, "one_hot")
		if err != nil {
			return value.Nil(), err
		}
		depth := int(da.At(0))
		idx := int(ia.At(0))
		out := make([]float64, depth)
		if idx >= 0 && idx < depth {
			out[idx] = 1
		}
		arr, err := array.NewDouble(out, []int{depth})
		return value.Array(arr), err
	})
}

// seed is the process-global RNG state set_seed mutates; shared by
// every `random(...)` kernel in internal/primitives/extkernel so a
// fixed seed reproduces a whole run deterministically (spec.md §8
// "determinism" testable property, scoped to seeded runs).
var seed atomic.Int64

// SetSeed implements `set_seed(n)`: stores n for subsequent random draws
// to consume via math/rand/v2's seedable source.
type SetSeed struct {
	primitive.Base
	N     value.Value
	Table *primitive.Table
}

func NewSetSeed(name primitive.Name, args []value.Value, table *primitive.Table) (primitive.Node, error) {
	return &SetSeed{Base: primitive.NewBase(name, args), N: args[0], Table: table}, nil
}

func (s *SetSeed) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		v, err := evalOperand(ctx, s.N, s.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		n, ok := v.Int64()
		if !ok {
			a, aerr := asArray(v, "set_seed")
			if aerr != nil {
				return value.Nil(), aerr
			}
			n = int64(a.At(0))
		}
		seed.Store(n)
		return value.Bool(true), nil
	})
}

// Seed returns the process-global seed (0 if unset); NewSeededRand
// builds the generator extkernel's random primitive draws from.
func Seed() int64 { return seed.Load() }

// NewSeededRand returns a deterministic generator when a non-zero seed
// has been set via set_seed, or a process-random one otherwise.
func NewSeededRand() *rand.Rand {
	s := seed.Load()
	if s == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(s), uint64(s)>>1|1))
}
