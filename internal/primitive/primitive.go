// Package primitive defines the contract every graph node obeys
// (spec.md §4.2): eval, store, bind, and topology reporting, plus the
// evaluation context and name scheme shared by the compiler and the
// distributed-array engine.
package primitive

import (
	"context"
	"sync"

	"phylanx/internal/value"
)

// Result is the realized outcome of an asynchronous Eval: either a
// value or an error, never both.
type Result struct {
	Value value.Value
	Err   error
}

// Future is a single-use, single-value channel, matching the teacher's
// channel-based async idioms (internal/concurrency worker-pool jobs,
// internal/vm/network_http.go's response channels) rather than a
// bespoke promise abstraction. It is always sent to exactly once and
// closed immediately after, so a second receive reads the zero Result
// off a closed channel; callers should receive exactly once.
type Future = <-chan Result

// NewFuture returns a future already satisfied with v.
func NewFuture(v value.Value, err error) Future {
	ch := make(chan Result, 1)
	ch <- Result{Value: v, Err: err}
	close(ch)
	return ch
}

// Go runs fn on its own goroutine and returns a future for its result,
// the standard way non-direct primitives implement Eval.
func Go(fn func() (value.Value, error)) Future {
	ch := make(chan Result, 1)
	go func() {
		v, err := fn()
		ch <- Result{Value: v, Err: err}
		close(ch)
	}()
	return ch
}

// Await blocks the calling goroutine until f resolves or ctx is done.
// Primitives use this to compose child futures into their own body;
// per spec.md §5, this is the only permitted suspension point and must
// never occur while a node's mutex is held.
func Await(ctx context.Context, f Future) (value.Value, error) {
	select {
	case r := <-f:
		return r.Value, r.Err
	case <-ctx.Done():
		return value.Nil(), ctx.Err()
	}
}

// Node is the primitive graph vertex contract (spec.md §4.2).
type Node interface {
	// Name is this node's hierarchical identity.
	Name() Name

	// Eval asynchronously evaluates the node given the caller's
	// argument pack and an evaluation context; the returned future
	// completes once every dataflow dependency is satisfied.
	Eval(ctx context.Context, params []value.Value, ec EvalContext) Future

	// Store writes through the node; only meaningful on mutable kinds.
	// Non-mutable nodes return ErrNotMutable.
	Store(ctx context.Context, v value.Value, params []value.Value, ec EvalContext) error

	// Bind binds arguments to a function's parameter slots without
	// triggering evaluation, returning whether visible state changed.
	Bind(params []value.Value, ec EvalContext) bool

	// Topology returns a tree describing this node and transitively
	// reachable nodes, cutting function-reference cycles via the
	// functionsSeen set.
	Topology(functionsSeen map[string]bool, childrenResolved bool) Topology

	// DirectEvalOk reports whether this node supports the synchronous
	// fast path when all its arguments are already ready values.
	DirectEvalOk() bool

	// Operands returns the node's static, read-only-after-construction
	// operand vector.
	Operands() []value.Value
}

// ErrNotMutable is returned by Store on any primitive kind that does
// not support mutation (spec.md §4.2).
type ErrNotMutable struct{ Kind string }

func (e *ErrNotMutable) Error() string { return "mutation-error: " + e.Kind + " is not mutable" }

// Base provides the bookkeeping shared by every concrete primitive:
// its name, its read-only operand vector, and the spinlock scope used
// by mutable kinds (variable, function, synchronize). Concrete
// primitives embed Base and implement only the methods their kind
// actually supports; Store/Bind/Topology default to primitive-fabric
// defaults that most leaves never need to override.
type Base struct {
	name     Name
	operands []value.Value
	mu       sync.Mutex
}

func NewBase(name Name, operands []value.Value) Base {
	return Base{name: name, operands: operands}
}

func (b *Base) Name() Name               { return b.name }
func (b *Base) Operands() []value.Value  { return b.operands }
func (b *Base) DirectEvalOk() bool       { return false }

// Store's default implementation fails with not-mutable; the mutable
// kind (control.Variable, variable.go) overrides it.
func (b *Base) Store(context.Context, value.Value, []value.Value, EvalContext) error {
	return &ErrNotMutable{Kind: b.name.Kind}
}

// Bind's default implementation is a no-op that changed nothing.
func (b *Base) Bind([]value.Value, EvalContext) bool { return false }

// Topology's default implementation reports a leaf; BuildTopology (not
// this method) is what actually walks operands via the shared Table,
// since cycle-cutting needs table-wide visibility a single node lacks.
func (b *Base) Topology(functionsSeen map[string]bool, childrenResolved bool) Topology {
	return Topology{Name: b.name.String()}
}

// Lock/Unlock expose the node's spinlock scope to subtypes that need
// to serialize a synchronous state mutation (spec.md §4.2 concurrency
// guarantee 2). Never hold this across an Await.
func (b *Base) Lock()   { b.mu.Lock() }
func (b *Base) Unlock() { b.mu.Unlock() }

// AllReady reports whether every value in params is already a realized
// value.Value rather than a deferred handle awaiting evaluation. The
// engine uses this to decide whether a direct_eval_ok node may take the
// synchronous fast path (spec.md §4.2 "Direct vs. non-direct").
func AllReady(params []value.Value) bool {
	for _, p := range params {
		if p.Kind() == value.KindHandle {
			return false
		}
	}
	return true
}
