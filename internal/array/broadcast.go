package array

import "fmt"

// BroadcastShapes aligns two shapes by left-padding the shorter one with
// size-1 axes, then stretches size-1 axes to match, per spec.md §4.5. It
// returns the resulting shape or a *ShapeError naming both input shapes
// when the pair is not broadcastable.
func BroadcastShapes(a, b []int, op string) ([]int, error) {
	rank := len(a)
	if len(b) > rank {
		rank = len(b)
	}
	pa := leftPad(a, rank)
	pb := leftPad(b, rank)

	out := make([]int, rank)
	for i := 0; i < rank; i++ {
		switch {
		case pa[i] == pb[i]:
			out[i] = pa[i]
		case pa[i] == 1:
			out[i] = pb[i]
		case pb[i] == 1:
			out[i] = pa[i]
		default:
			return nil, &ShapeError{A: a, B: b, Op: op}
		}
	}
	return out, nil
}

func leftPad(shape []int, rank int) []int {
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

// strides computes row-major strides for a shape.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

// broadcastIndex maps a flat index in the broadcast output shape back to
// the source array's flat index, treating size-1 axes as stride 0.
func broadcastIndex(flat int, outShape, srcShapePadded []int) int {
	rank := len(outShape)
	outStrides := strides(outShape)
	srcStrides := strides(srcShapePadded)
	idx := 0
	rem := flat
	for i := 0; i < rank; i++ {
		coord := rem / outStrides[i]
		rem -= coord * outStrides[i]
		if srcShapePadded[i] == 1 {
			continue
		}
		idx += coord * srcStrides[i]
	}
	return idx
}

// Add performs an elementwise, broadcasting, dtype-promoting addition.
// The other elementwise binary ops (Sub, Mul, Div) follow the identical
// shape in internal/primitives/arrayops.
func Add(a, b *NDArray) (*NDArray, error) {
	return elementwise(a, b, "add", func(x, y float64) float64 { return x + y })
}

func Sub(a, b *NDArray) (*NDArray, error) {
	return elementwise(a, b, "sub", func(x, y float64) float64 { return x - y })
}

func Mul(a, b *NDArray) (*NDArray, error) {
	return elementwise(a, b, "mul", func(x, y float64) float64 { return x * y })
}

func elementwise(a, b *NDArray, op string, f func(x, y float64) float64) (*NDArray, error) {
	outShape, err := BroadcastShapes(a.Shape, b.Shape, op)
	if err != nil {
		return nil, err
	}
	dt := Promote(a.Dtype, b.Dtype)
	pa := leftPad(a.Shape, len(outShape))
	pb := leftPad(b.Shape, len(outShape))
	ad, bd := a.AsDouble(), b.AsDouble()

	n := 1
	for _, d := range outShape {
		n *= d
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		ai := broadcastIndex(i, outShape, pa)
		bi := broadcastIndex(i, outShape, pb)
		out[i] = f(ad[ai], bd[bi])
	}
	return narrowTo(out, outShape, dt)
}

// Dot computes the tensor contraction spec.md §3/§8 calls "dot-product":
// rank(1,1) is an inner product, (2,1)/(1,2) is matrix-vector, (2,2) is
// matrix-matrix, all following row-major layout. Shared by the local
// `dot` primitive and, after an AllGather, by distarray.DotD, so both
// the single-locality and distributed paths agree on the same math.
func Dot(a, b *NDArray) (*NDArray, error) {
	ra, rb := a.Rank(), b.Rank()
	dt := Promote(a.Dtype, b.Dtype)
	ad, bd := a.AsDouble(), b.AsDouble()

	switch {
	case ra == 1 && rb == 1:
		if len(ad) != len(bd) {
			return nil, &ShapeError{A: a.Shape, B: b.Shape, Op: "dot"}
		}
		var sum float64
		for i := range ad {
			sum += ad[i] * bd[i]
		}
		return narrowTo([]float64{sum}, nil, dt)

	case ra == 2 && rb == 1:
		m, k := a.Shape[0], a.Shape[1]
		if k != len(bd) {
			return nil, &ShapeError{A: a.Shape, B: b.Shape, Op: "dot"}
		}
		out := make([]float64, m)
		for i := 0; i < m; i++ {
			var sum float64
			for j := 0; j < k; j++ {
				sum += ad[i*k+j] * bd[j]
			}
			out[i] = sum
		}
		return narrowTo(out, []int{m}, dt)

	case ra == 1 && rb == 2:
		k, n := b.Shape[0], b.Shape[1]
		if len(ad) != k {
			return nil, &ShapeError{A: a.Shape, B: b.Shape, Op: "dot"}
		}
		out := make([]float64, n)
		for j := 0; j < n; j++ {
			var sum float64
			for i := 0; i < k; i++ {
				sum += ad[i] * bd[i*n+j]
			}
			out[j] = sum
		}
		return narrowTo(out, []int{n}, dt)

	case ra == 2 && rb == 2:
		m, k := a.Shape[0], a.Shape[1]
		k2, n := b.Shape[0], b.Shape[1]
		if k != k2 {
			return nil, &ShapeError{A: a.Shape, B: b.Shape, Op: "dot"}
		}
		out := make([]float64, m*n)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				var sum float64
				for p := 0; p < k; p++ {
					sum += ad[i*k+p] * bd[p*n+j]
				}
				out[i*n+j] = sum
			}
		}
		return narrowTo(out, []int{m, n}, dt)

	default:
		return nil, &ShapeError{A: a.Shape, B: b.Shape, Op: fmt.Sprintf("dot: unsupported rank pair (%d,%d)", ra, rb)}
	}
}

func narrowTo(data []float64, shape []int, dt Dtype) (*NDArray, error) {
	switch dt {
	case Double:
		return NewDouble(data, shape)
	case Int64:
		ints := make([]int64, len(data))
		for i, v := range data {
			ints[i] = int64(v)
		}
		return NewInt64(ints, shape)
	default:
		bools := make([]bool, len(data))
		for i, v := range data {
			bools[i] = v != 0
		}
		return NewBool(bools, shape)
	}
}
