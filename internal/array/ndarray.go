package array

import (
	"fmt"

	xslices "golang.org/x/exp/slices"

	"phylanx/internal/value"
)

// NDArray is a dense, row-major numeric array of rank 0-3, generalizing
// the teacher's internal/dataframe.NDArray to the three dtypes named in
// spec.md §3. Exactly one of the typed storage slices is populated,
// selected by Dtype; this mirrors the teacher's single Data []float64
// field while respecting the invariant that arrays carry a real dtype
// rather than silently truncating everything to float64.
type NDArray struct {
	Shape []int
	Dtype Dtype

	boolData  []bool
	int64Data []int64
	dblData   []float64
}

// NewBool, NewInt64, NewDouble construct dense arrays from typed data and
// a shape; shape.size() must equal rank (<=3) and product(shape) must
// equal len(data).
func NewBool(data []bool, shape []int) (*NDArray, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &NDArray{Shape: xslices.Clone(shape), Dtype: Bool, boolData: data}, nil
}

func NewInt64(data []int64, shape []int) (*NDArray, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &NDArray{Shape: xslices.Clone(shape), Dtype: Int64, int64Data: data}, nil
}

func NewDouble(data []float64, shape []int) (*NDArray, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	return &NDArray{Shape: xslices.Clone(shape), Dtype: Double, dblData: data}, nil
}

func checkShape(shape []int, n int) error {
	if len(shape) > 3 {
		return fmt.Errorf("rank %d exceeds the maximum supported rank 3", len(shape))
	}
	size := 1
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("shape %v has a negative dimension", shape)
		}
		size *= d
	}
	if size != n {
		return fmt.Errorf("data length %d does not match shape %v (size %d)", n, shape, size)
	}
	return nil
}

// Rank is len(Shape); 0 for a scalar array.
func (a *NDArray) Rank() int { return len(a.Shape) }

// Size is the product of the shape's dimensions.
func (a *NDArray) Size() int {
	size := 1
	for _, d := range a.Shape {
		size *= d
	}
	return size
}

// ShapeString renders the shape for diagnostics (implements value.Arrayer).
func (a *NDArray) ShapeString() string {
	return fmt.Sprintf("%s%v", a.Dtype, a.Shape)
}

// Zeros builds a zero-filled array of the given dtype and shape.
func Zeros(dt Dtype, shape []int) (*NDArray, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	switch dt {
	case Bool:
		return NewBool(make([]bool, n), shape)
	case Int64:
		return NewInt64(make([]int64, n), shape)
	default:
		return NewDouble(make([]float64, n), shape)
	}
}

// AsDouble returns the array's data widened to float64, regardless of
// its native dtype. Used by kernels (dot/reductions/convolution) that
// always compute in double precision then narrow back if needed.
func (a *NDArray) AsDouble() []float64 {
	switch a.Dtype {
	case Double:
		return a.dblData
	case Int64:
		out := make([]float64, len(a.int64Data))
		for i, v := range a.int64Data {
			out[i] = float64(v)
		}
		return out
	case Bool:
		out := make([]float64, len(a.boolData))
		for i, v := range a.boolData {
			if v {
				out[i] = 1
			}
		}
		return out
	}
	return nil
}

// AsInt64 returns the array's data narrowed/widened to int64.
func (a *NDArray) AsInt64() []int64 {
	switch a.Dtype {
	case Int64:
		return a.int64Data
	case Double:
		out := make([]int64, len(a.dblData))
		for i, v := range a.dblData {
			out[i] = int64(v)
		}
		return out
	case Bool:
		out := make([]int64, len(a.boolData))
		for i, v := range a.boolData {
			if v {
				out[i] = 1
			}
		}
		return out
	}
	return nil
}

// AsBool returns the array's data as bools (zero is false).
func (a *NDArray) AsBool() []bool {
	switch a.Dtype {
	case Bool:
		return a.boolData
	case Int64:
		out := make([]bool, len(a.int64Data))
		for i, v := range a.int64Data {
			out[i] = v != 0
		}
		return out
	case Double:
		out := make([]bool, len(a.dblData))
		for i, v := range a.dblData {
			out[i] = v != 0
		}
		return out
	}
	return nil
}

// At returns the scalar at a flat row-major index, widened to float64.
func (a *NDArray) At(flat int) float64 {
	switch a.Dtype {
	case Double:
		return a.dblData[flat]
	case Int64:
		return float64(a.int64Data[flat])
	default:
		if a.boolData[flat] {
			return 1
		}
		return 0
	}
}

// EqualValue implements value.Equaler: two arrays are equal iff their
// shape, dtype, and element data agree.
func (a *NDArray) EqualValue(other value.Arrayer) bool {
	o, ok := other.(*NDArray)
	if !ok || o == nil {
		return false
	}
	if a.Dtype != o.Dtype || !xslices.Equal(a.Shape, o.Shape) {
		return false
	}
	switch a.Dtype {
	case Bool:
		return xslices.Equal(a.boolData, o.boolData)
	case Int64:
		return xslices.Equal(a.int64Data, o.int64Data)
	default:
		return xslices.Equal(a.dblData, o.dblData)
	}
}
