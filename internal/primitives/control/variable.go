package control

import (
	"context"
	"fmt"

	"phylanx/internal/errors"
	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

type varState int

const (
	stateUnbound varState = iota
	stateEvaluating
	stateBound
)

// Variable is the mutable cell behind `define(name, body)` (spec.md
// §4.2.2): unbound -> evaluating -> bound, with further Eval calls
// returning the cached value and Store overwriting it in place.
// Construction happens at compile time; the spinlock (embedded via
// Base.Lock/Unlock) guards only the synchronous state transition, never
// the body's own Await.
type Variable struct {
	primitive.Base
	Body  value.Value // a handle to the lowered body expression
	Table *primitive.Table

	state  varState
	cached value.Value
}

func NewVariable(name primitive.Name, body value.Value, table *primitive.Table) *Variable {
	return &Variable{Base: primitive.NewBase(name, []value.Value{body}), Body: body, Table: table}
}

func (v *Variable) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	v.Lock()
	switch v.state {
	case stateBound:
		cached := v.cached
		v.Unlock()
		return primitive.NewFuture(cached, nil)
	case stateEvaluating:
		// Re-entrant eval while the first is in flight (e.g. a
		// recursive reference through target_reference before the
		// body has produced a value); fall through to re-run rather
		// than deadlock, matching "not memoized unless marked".
		v.Unlock()
	default:
		v.state = stateEvaluating
		v.Unlock()
	}

	return primitive.Go(func() (value.Value, error) {
		h, ok := v.Body.Handle()
		if !ok {
			return value.Nil(), fmt.Errorf("variable %s has a non-handle body", v.Name())
		}
		node, ok := v.Table.Get(h.Name)
		if !ok {
			return value.Nil(), fmt.Errorf("name-error: unresolved primitive %q", h.Name)
		}
		result, err := primitive.Await(ctx, node.Eval(ctx, nil, ec))
		if err != nil {
			v.Lock()
			v.state = stateUnbound
			v.Unlock()
			return value.Nil(), err
		}
		v.Lock()
		v.state = stateBound
		v.cached = result
		v.Unlock()
		return result, nil
	})
}

// Store overwrites the cached value directly, remaining bound (spec.md
// §4.2.2: "store(v) -> overwrite cached value, remain in bound").
func (v *Variable) Store(ctx context.Context, val value.Value, params []value.Value, ec primitive.EvalContext) error {
	v.Lock()
	defer v.Unlock()
	v.state = stateBound
	v.cached = val
	return nil
}

// Define is the node `define(name, body)` itself lowers to: on eval it
// binds name in the current frame to a handle for its Variable (once),
// then forces the variable's own state machine and returns its value.
type Define struct {
	primitive.Base
	VarName string
	Var     *Variable
}

func NewDefine(name primitive.Name, varName string, v *Variable) *Define {
	return &Define{Base: primitive.NewBase(name, []value.Value{value.HandleVal(value.Handle{Name: v.Name().String()})}), VarName: varName, Var: v}
}

func (d *Define) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	ec.Frame.Define(d.VarName, value.HandleVal(value.Handle{Name: d.Var.Name().String()}))
	return d.Var.Eval(ctx, nil, ec)
}

// DefineFunction is the named-function counterpart of Define: it binds
// VarName in the current frame to a handle for Closure (once) and
// returns a first-class function value referencing it, without
// invoking the body (spec.md §4.1: "define(name, p1,…,pn, body) binds
// name to a new function primitive").
type DefineFunction struct {
	primitive.Base
	VarName string
	Closure *Closure
}

func NewDefineFunction(name primitive.Name, varName string, closure *Closure) *DefineFunction {
	return &DefineFunction{Base: primitive.NewBase(name, []value.Value{value.HandleVal(value.Handle{Name: closure.Name().String()})}), VarName: varName, Closure: closure}
}

func (d *DefineFunction) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	h := value.Handle{Name: d.Closure.Name().String()}
	ec.Frame.Define(d.VarName, value.HandleVal(h))
	return primitive.NewFuture(value.FunctionVal(&value.Function{Target: h}), nil)
}

// AccessVariable looks `name` up in the current frame and forces the
// variable it points to (spec.md §4.3: "Identifiers lower to
// access_variable(name) nodes that look up name in the current
// context's frames at eval time").
type AccessVariable struct {
	primitive.Base
	VarName string
	Table   *primitive.Table
}

func NewAccessVariable(name primitive.Name, varName string, table *primitive.Table) *AccessVariable {
	return &AccessVariable{Base: primitive.NewBase(name, nil), VarName: varName, Table: table}
}

func (a *AccessVariable) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	bound, ok := ec.Frame.Lookup(a.VarName)
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewNameError(a.VarName, "", 0, 0))
	}
	h, ok := bound.Handle()
	if !ok {
		// Already a realized value (e.g. an access_argument result
		// re-exported under a name); return it as-is.
		return primitive.NewFuture(bound, nil)
	}
	node, ok := a.Table.Get(h.Name)
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewNameError(a.VarName, "", 0, 0))
	}
	return node.Eval(ctx, nil, ec)
}

// LookupTarget resolves a bare identifier target to the Node its current
// frame binding points at, used by the compiler-built generic Store node.
func LookupTarget(name string, ec primitive.EvalContext, table *primitive.Table) (primitive.Node, error) {
	bound, ok := ec.Frame.Lookup(name)
	if !ok {
		return nil, errors.NewNameError(name, "", 0, 0)
	}
	h, ok := bound.Handle()
	if !ok {
		return nil, errors.NewMutationError(name, "", 0, 0)
	}
	node, ok := table.Get(h.Name)
	if !ok {
		return nil, errors.NewNameError(name, "", 0, 0)
	}
	return node, nil
}
