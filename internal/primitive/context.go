package primitive

import "phylanx/internal/value"

// Mode is the evaluation-context bitset described by spec.md §3.
type Mode uint8

const (
	ModeDirect Mode = 1 << iota
	ModeInstance
	ModeSnapshot
)

func (m Mode) Has(flag Mode) bool { return m&flag != 0 }

// Frame is one scope-level name→handle mapping. Frames are linked to
// their parent rather than copied, giving the "shared by shallow-copy
// semantics with copy-on-write" behavior spec.md §3 calls for: reading
// walks up the chain, writing always happens in the current frame
// (Define) or, for mutation through an existing binding, in whichever
// frame originally declared the name (handled by the variable primitive
// itself, not by the frame).
type Frame struct {
	parent *Frame
	names  map[string]value.Value
}

// NewFrame creates a root frame with no parent (the program scratchpad).
func NewFrame() *Frame {
	return &Frame{names: make(map[string]value.Value)}
}

// Push creates a child frame; lookups fall through to parent when the
// name is not locally bound.
func (f *Frame) Push() *Frame {
	return &Frame{parent: f, names: make(map[string]value.Value)}
}

// Define binds name in this frame. spec.md §3 invariant: "a variable
// frame never rebinds a name within its own scope" — Define enforces
// this only at the local level; redefinition pushes a new frame or goes
// through Store on an existing variable primitive.
func (f *Frame) Define(name string, v value.Value) error {
	if _, exists := f.names[name]; exists {
		return &RebindError{Name: name}
	}
	f.names[name] = v
	return nil
}

// Assign overwrites an existing binding reachable from this frame
// (used by store() on a variable's own cell); it does not create a new
// binding and reports ok=false if name is unbound anywhere in the chain.
func (f *Frame) Assign(name string, v value.Value) bool {
	for fr := f; fr != nil; fr = fr.parent {
		if _, exists := fr.names[name]; exists {
			fr.names[name] = v
			return true
		}
	}
	return false
}

// Lookup resolves name against the nearest enclosing binding.
func (f *Frame) Lookup(name string) (value.Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.names[name]; ok {
			return v, true
		}
	}
	return value.Nil(), false
}

// RebindError reports an attempt to redefine a name already bound in
// the same frame.
type RebindError struct{ Name string }

func (e *RebindError) Error() string {
	return "cannot redefine '" + e.Name + "' in the same scope"
}

// EvalContext carries a mode bitset, the current frame, and the
// caller's argument pack (spec.md §3). It is passed by value; Child
// pushes a new frame without mutating the receiver's, matching "the
// evaluation context is never shared mutably across sibling subtrees"
// (spec.md §4.2 concurrency guarantee 4).
type EvalContext struct {
	Mode   Mode
	Frame  *Frame
	Caller []value.Value
}

// NewEvalContext builds a root context over the given scratchpad frame.
func NewEvalContext(scratchpad *Frame) EvalContext {
	return EvalContext{Mode: ModeDirect, Frame: scratchpad}
}

// Child returns a context for a nested scope: a fresh pushed frame,
// same mode, and the given argument pack (often the child's own).
func (ec EvalContext) Child(args []value.Value) EvalContext {
	return EvalContext{Mode: ec.Mode, Frame: ec.Frame.Push(), Caller: args}
}

// WithFrame returns a copy of ec pointed at a different frame (used by
// target_reference / closures that must resolve names against the
// frame captured at definition time rather than the caller's frame).
func (ec EvalContext) WithFrame(f *Frame) EvalContext {
	ec.Frame = f
	return ec
}
