// Package distarray implements the distributed-array subsystem of
// spec.md §4.4: a DistArray partitions a rank 1-2 numeric array into
// row-block tiles, one per participating locality, and the package's
// collectives (retile, all_gather, dot_d, cannon_product, the tiled
// reductions, conv1d) move and combine those tiles across
// internal/locality's Transport the same way the teacher's
// internal/network RPC layer moves framed payloads between peers —
// one-way Send calls joined on their reply futures, never a blocking
// global barrier. Single-process runs (tests, the REPL) use
// locality.LocalTransport, which the teacher-adapted transport.go
// itself documents as existing precisely to exercise this kind of
// collective without real sockets.
package distarray

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"sort"

	"phylanx/internal/array"
	"phylanx/internal/errors"
	"phylanx/internal/locality"
)

// DistArray is one program's view of a distributed numeric array: its
// global shape and dtype, the row-offset boundaries partitioning axis 0
// across localities (len(Offsets) == len(Tiles)+1), and this process's
// locally held tile per locality (single-process runs hold every tile;
// a genuinely multi-process deployment would hold only its own and
// fetch the rest through Transport, which is exactly what AllGather and
// Retile below do regardless of how many tiles happen to be local).
type DistArray struct {
	Shape   []int
	Dtype   array.Dtype
	Offsets []int
	Tiles   []*array.NDArray
}

// tilePayload is the wire shape of one tile, widened to double for
// transport and narrowed back on receipt; gob is used purely as
// internal wire plumbing between localities in the same program run,
// not a user-facing format, so the stdlib codec is the right tool
// (spec.md names no serialization library, and the teacher's own
// internal/network framing uses encoding/gob for the identical reason).
type tilePayload struct {
	Shape []int
	Dtype array.Dtype
	Data  []float64
}

func encodeTile(a *array.NDArray) []byte {
	var buf bytes.Buffer
	gob.NewEncoder(&buf).Encode(tilePayload{Shape: a.Shape, Dtype: a.Dtype, Data: a.AsDouble()})
	return buf.Bytes()
}

func decodeTile(b []byte) (*array.NDArray, error) {
	var p tilePayload
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&p); err != nil {
		return nil, err
	}
	return narrow(p.Data, p.Shape, p.Dtype)
}

func narrow(data []float64, shape []int, dt array.Dtype) (*array.NDArray, error) {
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

// NewFromRowBlocks builds a DistArray from exactly one row-block tile
// per locality, in locality order; Offsets is derived from each tile's
// axis-0 extent.
func NewFromRowBlocks(tiles []*array.NDArray) (*DistArray, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("shape-error: distributed array needs at least one tile")
	}
	dt := tiles[0].Dtype
	tail := tiles[0].Shape[1:]
	offsets := make([]int, len(tiles)+1)
	for i, t := range tiles {
		if !shapeEq(t.Shape[1:], tail) {
			return nil, errors.NewShapeError("distributed array tiles disagree past axis 0", "", 0, 0)
		}
		offsets[i+1] = offsets[i] + t.Shape[0]
		dt = array.Promote(dt, t.Dtype)
	}
	full := append([]int{offsets[len(offsets)-1]}, tail...)
	return &DistArray{Shape: full, Dtype: dt, Offsets: offsets, Tiles: tiles}, nil
}

func shapeEq(a, b []int) bool {
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

// registerTileHandlers installs (or replaces) the "fetch_tile" handler
// every locality answers with its own current tile bytes; collectives
// call this before issuing Send so the two sides agree on the tag.
func registerTileHandlers(t locality.Transport, da *DistArray) {
	for i, tile := range da.Tiles {
		tile := tile
		t.RegisterHandler(i, "fetch_tile", func(ctx context.Context, m locality.Message) locality.Reply {
			return locality.Reply{Payload: encodeTile(tile)}
		})
	}
}

// AllGather materializes the full array by fetching every locality's
// tile over transport and concatenating them in locality order
// (spec.md §4.4, §8: "all_gather is a fixpoint — gathering an
// already-gathered array returns the identical data").
func AllGather(ctx context.Context, da *DistArray, reg *locality.Registry, t locality.Transport) (*array.NDArray, error) {
	registerTileHandlers(t, da)
	var data []float64
	for i := range da.Tiles {
		reply := <-t.Send(ctx, locality.Message{From: -1, To: i, Tag: "fetch_tile"})
		if reply.Err != nil {
			return nil, reply.Err
		}
		tile, err := decodeTile(reply.Payload)
		if err != nil {
			return nil, err
		}
		data = append(data, tile.AsDouble()...)
	}
	return narrow(data, da.Shape, da.Dtype)
}

// Retile redistributes da's rows onto newOffsets (len(newOffsets) ==
// desired tile count + 1, newOffsets[0]==0, newOffsets[last]==total
// rows): every destination locality's new tile is carved out of the
// fully gathered array. Round-tripping through Retile with the original
// Offsets is the identity (spec.md §8 "retile round-trip" property).
func Retile(ctx context.Context, da *DistArray, newOffsets []int, reg *locality.Registry, t locality.Transport) (*DistArray, error) {
	full, err := AllGather(ctx, da, reg, t)
	if err != nil {
		return nil, err
	}
	if newOffsets[0] != 0 || newOffsets[len(newOffsets)-1] != da.Shape[0] {
		return nil, fmt.Errorf("shape-error: retile boundaries must span [0,%d], got %v", da.Shape[0], newOffsets)
	}
	rowSize := 1
	for _, d := range da.Shape[1:] {
		rowSize *= d
	}
	fullData := full.AsDouble()
	tiles := make([]*array.NDArray, len(newOffsets)-1)
	for i := 0; i < len(tiles); i++ {
		start, end := newOffsets[i]*rowSize, newOffsets[i+1]*rowSize
		shape := append([]int{newOffsets[i+1] - newOffsets[i]}, da.Shape[1:]...)
		tile, err := narrow(append([]float64{}, fullData[start:end]...), shape, da.Dtype)
		if err != nil {
			return nil, err
		}
		tiles[i] = tile
	}
	return &DistArray{Shape: da.Shape, Dtype: da.Dtype, Offsets: newOffsets, Tiles: tiles}, nil
}

// DotD computes a distributed dot product/matrix-multiply, dispatching
// on the rank pair (1,1)=inner product, (1,2)/(2,1)=matrix-vector,
// (2,2)=matrix-matrix (spec.md §4.4). It gathers both operands fully
// and computes directly — a simpler, correctness-first complement to
// CannonProduct's genuinely tiled algorithm below, used when a caller
// just wants dot's result without Cannon's 2-D process-grid machinery.
func DotD(ctx context.Context, a, b *DistArray, reg *locality.Registry, t locality.Transport) (*array.NDArray, error) {
	fa, err := AllGather(ctx, a, reg, t)
	if err != nil {
		return nil, err
	}
	fb, err := AllGather(ctx, b, reg, t)
	if err != nil {
		return nil, err
	}
	out, err := array.Dot(fa, fb)
	if err != nil {
		return nil, errors.NewShapeError(fmt.Sprintf("dot_d: %v", err), "", 0, 0)
	}
	return out, nil
}

// block is one locality's square sub-matrix in the Cannon process grid.
type block struct {
	data       []float64
	rows, cols int
}

// CannonProduct multiplies two square matrices distributed over a
// gridDim x gridDim process grid using Cannon's algorithm: each
// locality (r,c) starts holding A-block shifted left by r and B-block
// shifted up by c, then performs gridDim rounds of local multiply-
// accumulate followed by a left-shift of A and an up-shift of B over
// Transport (spec.md §4.4, §8 "Cannon equivalence" property: its result
// matches dot_d's on the same inputs). gridDim*blockSize must equal n.
func CannonProduct(ctx context.Context, a, b *DistArray, gridDim int, reg *locality.Registry, t locality.Transport) (*array.NDArray, error) {
	fa, err := AllGather(ctx, a, reg, t)
	if err != nil {
		return nil, err
	}
	fb, err := AllGather(ctx, b, reg, t)
	if err != nil {
		return nil, err
	}
	n := fa.Shape[0]
	if len(fa.Shape) != 2 || len(fb.Shape) != 2 || fa.Shape[1] != n || fb.Shape[0] != n || fb.Shape[1] != n {
		return nil, errors.NewShapeError("cannon_product requires two square matrices of equal size", "", 0, 0)
	}
	if n%gridDim != 0 {
		return nil, fmt.Errorf("shape-error: cannon_product: grid dimension %d does not evenly divide matrix size %d", gridDim, n)
	}
	bs := n / gridDim
	ad, bdd := fa.AsDouble(), fb.AsDouble()

	// Partition into gridDim*gridDim blocks, one per simulated locality.
	numLoc := gridDim * gridDim
	blocksA := make([]block, numLoc)
	blocksB := make([]block, numLoc)
	for r := 0; r < gridDim; r++ {
		for c := 0; c < gridDim; c++ {
			blocksA[r*gridDim+c] = extractBlock(ad, n, r*bs, c*bs, bs)
			blocksB[r*gridDim+c] = extractBlock(bdd, n, r*bs, c*bs, bs)
		}
	}

	// Initial skew: locality (r,c) holds A shifted left by r, B shifted
	// up by c, exchanged via Transport's fetch_block handlers so the
	// skew itself exercises locality-crossing Send, not a local slice
	// copy.
	registerBlockHandlers(t, blocksA, blocksB, gridDim)
	skewedA := make([]block, numLoc)
	skewedB := make([]block, numLoc)
	for r := 0; r < gridDim; r++ {
		for c := 0; c < gridDim; c++ {
			srcA := r*gridDim + mod(c+r, gridDim)
			srcB := mod(r+c, gridDim)*gridDim + c
			ablk, err := fetchBlock(ctx, t, srcA, "A")
			if err != nil {
				return nil, err
			}
			bblk, err := fetchBlock(ctx, t, srcB, "B")
			if err != nil {
				return nil, err
			}
			skewedA[r*gridDim+c] = ablk
			skewedB[r*gridDim+c] = bblk
		}
	}

	acc := make([]block, numLoc)
	for i := range acc {
		acc[i] = block{data: make([]float64, bs*bs), rows: bs, cols: bs}
	}
	curA, curB := skewedA, skewedB
	for step := 0; step < gridDim; step++ {
		for loc := 0; loc < numLoc; loc++ {
			multiplyAccumulate(acc[loc], curA[loc], curB[loc])
		}
		if step == gridDim-1 {
			break
		}
		registerBlockHandlers(t, curA, curB, gridDim)
		nextA := make([]block, numLoc)
		nextB := make([]block, numLoc)
		for r := 0; r < gridDim; r++ {
			for c := 0; c < gridDim; c++ {
				srcA := r*gridDim + mod(c+1, gridDim)
				srcB := mod(r+1, gridDim)*gridDim + c
				ablk, err := fetchBlock(ctx, t, srcA, "A")
				if err != nil {
					return nil, err
				}
				bblk, err := fetchBlock(ctx, t, srcB, "B")
				if err != nil {
					return nil, err
				}
				nextA[r*gridDim+c] = ablk
				nextB[r*gridDim+c] = bblk
			}
		}
		curA, curB = nextA, nextB
	}

	out := make([]float64, n*n)
	for r := 0; r < gridDim; r++ {
		for c := 0; c < gridDim; c++ {
			blk := acc[r*gridDim+c]
			for i := 0; i < bs; i++ {
				for j := 0; j < bs; j++ {
					out[(r*bs+i)*n+(c*bs+j)] = blk.data[i*bs+j]
				}
			}
		}
	}
	return array.NewDouble(out, []int{n, n})
}

func mod(x, m int) int {
	r := x % m
	if r < 0 {
		r += m
	}
	return r
}

func extractBlock(data []float64, n, rowStart, colStart, bs int) block {
	out := make([]float64, bs*bs)
	for i := 0; i < bs; i++ {
		for j := 0; j < bs; j++ {
			out[i*bs+j] = data[(rowStart+i)*n+(colStart+j)]
		}
	}
	return block{data: out, rows: bs, cols: bs}
}

func multiplyAccumulate(acc, x, y block) {
	bs := x.rows
	for i := 0; i < bs; i++ {
		for k := 0; k < bs; k++ {
			xv := x.data[i*bs+k]
			if xv == 0 {
				continue
			}
			for j := 0; j < bs; j++ {
				acc.data[i*bs+j] += xv * y.data[k*bs+j]
			}
		}
	}
}

func registerBlockHandlers(t locality.Transport, blocksA, blocksB []block, gridDim int) {
	for i := range blocksA {
		a, b := blocksA[i], blocksB[i]
		t.RegisterHandler(i, "fetch_block_A", func(ctx context.Context, m locality.Message) locality.Reply {
			return locality.Reply{Payload: encodeBlock(a)}
		})
		t.RegisterHandler(i, "fetch_block_B", func(ctx context.Context, m locality.Message) locality.Reply {
			return locality.Reply{Payload: encodeBlock(b)}
		})
	}
}

func fetchBlock(ctx context.Context, t locality.Transport, loc int, which string) (block, error) {
	tag := "fetch_block_A"
	if which == "B" {
		tag = "fetch_block_B"
	}
	reply := <-t.Send(ctx, locality.Message{From: -1, To: loc, Tag: tag})
	if reply.Err != nil {
		return block{}, reply.Err
	}
	return decodeBlock(reply.Payload), nil
}

// blockPayload is block's wire shape; gob only encodes exported fields,
// so the unexported block type needs this sibling to round-trip.
type blockPayload struct {
	Data       []float64
	Rows, Cols int
}

func encodeBlock(b block) []byte {
	var buf bytes.Buffer
	gob.NewEncoder(&buf).Encode(blockPayload{Data: b.data, Rows: b.rows, Cols: b.cols})
	return buf.Bytes()
}

func decodeBlock(p []byte) block {
	var bp blockPayload
	gob.NewDecoder(bytes.NewReader(p)).Decode(&bp)
	return block{data: bp.Data, rows: bp.Rows, cols: bp.Cols}
}

// ReduceKind selects the combine rule for the tiled reductions.
type ReduceKind int

const (
	ReduceSum ReduceKind = iota
	ReduceMean
	ReduceMax
	ReduceArgmin
	ReduceArgmax
)

// Reduce computes one of sum_d/mean_d/max_d/argmin_d/argmax_d: every
// locality reduces its own tile locally, then the partials are combined
// in locality order (spec.md §4.4). argmin_d/argmax_d return the
// flat global index as a rank-0 int64 array; the others return a rank-0
// double array.
func Reduce(ctx context.Context, da *DistArray, kind ReduceKind, reg *locality.Registry, t locality.Transport) (*array.NDArray, error) {
	registerTileHandlers(t, da)
	type partial struct {
		sum      float64
		max      float64
		maxIdx   int
		minIdx   int
		min      float64
		n        int
		hasValue bool
	}
	partials := make([]partial, len(da.Tiles))
	for i := range da.Tiles {
		reply := <-t.Send(ctx, locality.Message{From: -1, To: i, Tag: "fetch_tile"})
		if reply.Err != nil {
			return nil, reply.Err
		}
		tile, err := decodeTile(reply.Payload)
		if err != nil {
			return nil, err
		}
		d := tile.AsDouble()
		p := partial{}
		for j, v := range d {
			if !p.hasValue || v > p.max {
				p.max, p.maxIdx = v, da.Offsets[i]*rowSize(da)+j
			}
			if !p.hasValue || v < p.min {
				p.min, p.minIdx = v, da.Offsets[i]*rowSize(da)+j
			}
			p.sum += v
			p.hasValue = true
		}
		p.n = len(d)
		partials[i] = p
	}
	switch kind {
	case ReduceSum:
		var sum float64
		for _, p := range partials {
			sum += p.sum
		}
		return array.NewDouble([]float64{sum}, nil)
	case ReduceMean:
		var sum float64
		var n int
		for _, p := range partials {
			sum += p.sum
			n += p.n
		}
		if n == 0 {
			return array.NewDouble([]float64{0}, nil)
		}
		return array.NewDouble([]float64{sum / float64(n)}, nil)
	case ReduceMax:
		best := partials[0]
		for _, p := range partials[1:] {
			if p.hasValue && (!best.hasValue || p.max > best.max) {
				best = p
			}
		}
		return array.NewDouble([]float64{best.max}, nil)
	case ReduceArgmax:
		best := partials[0]
		for _, p := range partials[1:] {
			if p.hasValue && (!best.hasValue || p.max > best.max) {
				best = p
			}
		}
		return array.NewInt64([]int64{int64(best.maxIdx)}, nil)
	case ReduceArgmin:
		best := partials[0]
		for _, p := range partials[1:] {
			if p.hasValue && (!best.hasValue || p.min < best.min) {
				best = p
			}
		}
		return array.NewInt64([]int64{int64(best.minIdx)}, nil)
	default:
		return nil, fmt.Errorf("internal error: unknown reduce kind %d", kind)
	}
}

func rowSize(da *DistArray) int {
	n := 1
	for _, d := range da.Shape[1:] {
		n *= d
	}
	if n == 0 {
		n = 1
	}
	return n
}

// Conv1DMode names conv1d_d's boundary-handling mode.
type Conv1DMode string

const (
	ConvValid  Conv1DMode = "valid"
	ConvSame   Conv1DMode = "same"
	ConvCausal Conv1DMode = "causal"
)

// Conv1D convolves da (a distributed 1-D signal) with kernel, performing
// a halo exchange of kernel-width-1 boundary elements between
// neighboring tiles over Transport before each locality computes its
// local output slice, then gathers the pieces back into one result
// array (spec.md §4.4). VALID shrinks the output by len(kernel)-1;
// SAME centers the kernel, zero-padding both ends; CAUSAL left-pads
// only, so output[i] depends only on input[<=i].
//
// Every window is owned by the tile containing its start index, so
// only a forward (right) halo is ever fetched — pulling a left halo
// too would recompute the windows the previous tile's right halo
// already produced at the boundary.
func Conv1D(ctx context.Context, da *DistArray, kernel []float64, mode Conv1DMode, reg *locality.Registry, t locality.Transport) (*array.NDArray, error) {
	if len(da.Shape) != 1 {
		return nil, errors.NewShapeError("conv1d_d operates on a rank-1 distributed array", "", 0, 0)
	}
	halo := len(kernel) - 1
	if halo < 0 {
		halo = 0
	}
	registerTileHandlers(t, da)

	n := len(da.Tiles)
	rightHalo := make([][]float64, n)
	for i := 0; i < n-1; i++ {
		reply := <-t.Send(ctx, locality.Message{From: i, To: i + 1, Tag: "fetch_tile"})
		if reply.Err != nil {
			return nil, reply.Err
		}
		next, err := decodeTile(reply.Payload)
		if err != nil {
			return nil, err
		}
		d := next.AsDouble()
		if halo <= len(d) {
			rightHalo[i] = d[:halo]
		} else {
			rightHalo[i] = d
		}
	}

	var padLeft, padRight int
	switch mode {
	case ConvSame:
		padLeft = halo / 2
		padRight = halo - padLeft
	case ConvCausal:
		padLeft = halo
	case ConvValid:
	default:
		return nil, fmt.Errorf("shape-error: conv1d_d: unknown mode %q", mode)
	}

	var outData []float64
	for i, tile := range da.Tiles {
		local := tile.AsDouble()
		extended := append([]float64{}, zeros(padLeftFor(i, padLeft))...)
		extended = append(extended, local...)
		extended = append(extended, rightHalo[i]...)
		extended = append(extended, zeros(padRightFor(i, n, padRight))...)
		windows := len(extended) - len(kernel) + 1
		if windows < 0 {
			windows = 0
		}
		for w := 0; w < windows; w++ {
			var sum float64
			for k, kv := range kernel {
				sum += extended[w+k] * kv
			}
			outData = append(outData, sum)
		}
	}
	return array.NewDouble(outData, []int{len(outData)})
}

func padLeftFor(tileIdx, padLeft int) int {
	if tileIdx == 0 {
		return padLeft
	}
	return 0
}

func padRightFor(tileIdx, numTiles, padRight int) int {
	if tileIdx == numTiles-1 {
		return padRight
	}
	return 0
}

func zeros(n int) []float64 {
	if n <= 0 {
		return nil
	}
	return make([]float64, n)
}

// SortOffsets is a small helper exposed for callers (and tests) that
// build Retile boundaries from an unordered tile-count request.
func SortOffsets(offsets []int) []int {
	out := append([]int{}, offsets...)
	sort.Ints(out)
	return out
}
