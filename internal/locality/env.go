package locality

import (
	"phylanx/internal/primitive"
	"phylanx/internal/registry"
)

// Environment attaches the default pattern bindings for one locality in
// a Registry: which locality this process is (Self, inherited from the
// Registry), the shared builtin pattern table an embedder's compiler
// calls compile against, and the root scratchpad frame top-level
// `define`s in that locality write into. It is the unit an embedding
// host builds once per locality and threads through every
// compiler.Compile/eval call, the same role the teacher's VM
// construction (`vm.NewVM(nil)`, a globals map plus a native-function
// table) plays for a single Sentra process — generalized here to carry
// a locality identity alongside the builtins, since PhySL programs can
// run across more than one.
type Environment struct {
	Locality   int
	Localities *Registry
	Builtins   *registry.Registry
	Scratchpad *primitive.Frame
}

// NewEnvironment builds the default Environment for locality loc inside
// localities, pre-populated with builtins and a fresh empty scratchpad.
func NewEnvironment(loc int, localities *Registry, builtins *registry.Registry) *Environment {
	return &Environment{
		Locality:   loc,
		Localities: localities,
		Builtins:   builtins,
		Scratchpad: primitive.NewFrame(),
	}
}

// Context returns the root EvalContext a top-level entry point in this
// environment evaluates against.
func (e *Environment) Context() primitive.EvalContext {
	return primitive.NewEvalContext(e.Scratchpad)
}
