package control

import (
	"context"
	"sync"

	"phylanx/internal/errors"
	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// Closure is the function representation shared by `function(body)`
// (named defines) and `lambda(p1,...,pn,body)` (anonymous); distinguished
// only by Name().Kind ("function" vs "lambda"). Its eval binds the
// caller's argument pack into a fresh child frame/Caller pack and
// evaluates Body there, so access_argument nodes inside Body read
// ec.Caller by ordinal position (spec.md §4.2.1).
type Closure struct {
	primitive.Base
	Params []string
	Body   value.Value
	Table  *primitive.Table

	mu    sync.Mutex
	bound []value.Value
}

func NewClosure(name primitive.Name, params []string, body value.Value, table *primitive.Table) *Closure {
	return &Closure{Base: primitive.NewBase(name, []value.Value{body}), Params: params, Body: body, Table: table}
}

func (c *Closure) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	args := params
	if len(args) == 0 {
		c.mu.Lock()
		args = c.bound
		c.mu.Unlock()
	}
	if len(args) != len(c.Params) {
		return primitive.NewFuture(value.Nil(), errors.NewArityError(c.Name().String(), len(c.Params), len(args), "", 0, 0))
	}
	h, ok := c.Body.Handle()
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewTypeError("closure body is not a handle", "", 0, 0))
	}
	node, ok := c.Table.Get(h.Name)
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewNameError(h.Name, "", 0, 0))
	}
	childEc := ec.Child(args)
	return node.Eval(ctx, nil, childEc)
}

// Bind pre-binds params without evaluating, used when a function is
// passed as a first-class value and invoked later with zero params
// (spec.md §4.2: "binds arguments to a function's parameter slots
// without triggering evaluation").
func (c *Closure) Bind(params []value.Value, ec primitive.EvalContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := len(params) != len(c.bound)
	c.bound = params
	return changed
}

// AccessArgument reads the i'th slot of the current call's argument
// pack (spec.md §4.2.1: "function(body) / lambda(body) /
// access-argument(i) — function representation and positional argument
// access").
type AccessArgument struct {
	primitive.Base
	Index int
}

func NewAccessArgument(name primitive.Name, index int) *AccessArgument {
	return &AccessArgument{Base: primitive.NewBase(name, nil), Index: index}
}

func (a *AccessArgument) DirectEvalOk() bool { return true }

func (a *AccessArgument) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	if a.Index < 0 || a.Index >= len(ec.Caller) {
		return primitive.NewFuture(value.Nil(), errors.NewArityError("access_argument", a.Index+1, len(ec.Caller), "", 0, 0))
	}
	return primitive.NewFuture(ec.Caller[a.Index], nil)
}

// AccessFunction yields a first-class function value for a name bound
// in the current frame, without invoking it — used when an identifier
// resolves to a function at a value position rather than a call
// position (spec.md §4.3). Like AccessVariable, resolution happens
// through ec.Frame at eval time rather than a name captured at compile
// time, so a function may be passed around before or after its
// enclosing `define` has run.
type AccessFunction struct {
	primitive.Base
	VarName string
}

func NewAccessFunction(name primitive.Name, varName string) *AccessFunction {
	return &AccessFunction{Base: primitive.NewBase(name, nil), VarName: varName}
}

func (a *AccessFunction) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	bound, ok := ec.Frame.Lookup(a.VarName)
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewNameError(a.VarName, "", 0, 0))
	}
	h, ok := bound.Handle()
	if !ok {
		return primitive.NewFuture(bound, nil)
	}
	return primitive.NewFuture(value.FunctionVal(&value.Function{Target: h}), nil)
}

// TargetReference is the explicit surface-level escape hatch
// `target_reference(name)`: it resolves name through ec.Frame at eval
// time and forwards params to whatever it finds, same as DynamicCall,
// but is spelled out by the user specifically to make a forward or
// mutually-recursive reference legible (spec.md §9: "target-reference
// exists precisely to break the cycle between a function name and its
// body — resolve the name lazily at eval time through the context
// frames rather than holding a back-pointer").
type TargetReference struct {
	primitive.Base
	VarName string
	Table   *primitive.Table
}

func NewTargetReference(name primitive.Name, varName string, table *primitive.Table) *TargetReference {
	return &TargetReference{Base: primitive.NewBase(name, nil), VarName: varName, Table: table}
}

func (t *TargetReference) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	bound, ok := ec.Frame.Lookup(t.VarName)
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewNameError(t.VarName, "", 0, 0))
	}
	h, ok := bound.Handle()
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewTypeError(t.VarName+" is not a callable reference", "", 0, 0))
	}
	node, ok := t.Table.Get(h.Name)
	if !ok {
		return primitive.NewFuture(value.Nil(), errors.NewNameError(h.Name, "", 0, 0))
	}
	return node.Eval(ctx, params, ec)
}

// DynamicCall is the direct-call lowering of `f(args...)` when `f`
// resolves (at compile time) to a user-defined function name or a
// bound argument slot, as opposed to a registry pattern call (spec.md
// §4.3: "at the call position compiles to a direct call_function").
// The callee is resolved through ec.Frame/ec.Caller at eval time, not
// captured as a fixed table name, so the same rules that let
// AccessVariable/AccessFunction see a binding regardless of
// construction order apply here too.
type DynamicCall struct {
	primitive.Base
	VarName     string // set when the callee is a frame-bound name
	ArgIndex    int    // set (VarName=="") when the callee is argument slot ArgIndex
	IsArgument  bool
	Table       *primitive.Table
	ArgHandles  []value.Value
}

func NewDynamicCall(name primitive.Name, varName string, argIndex int, isArgument bool, args []value.Value, table *primitive.Table) *DynamicCall {
	operands := append([]value.Value{}, args...)
	return &DynamicCall{Base: primitive.NewBase(name, operands), VarName: varName, ArgIndex: argIndex, IsArgument: isArgument, Table: table, ArgHandles: args}
}

func (c *DynamicCall) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		args := make([]value.Value, len(c.ArgHandles))
		for i, h := range c.ArgHandles {
			v, err := evalHandle(ctx, h, c.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			args[i] = v
		}
		if c.IsArgument {
			if c.ArgIndex < 0 || c.ArgIndex >= len(ec.Caller) {
				return value.Nil(), errors.NewArityError("access_argument", c.ArgIndex+1, len(ec.Caller), "", 0, 0)
			}
			return InvokeCallable(ctx, ec.Caller[c.ArgIndex], args, c.Table, ec)
		}
		bound, ok := ec.Frame.Lookup(c.VarName)
		if !ok {
			return value.Nil(), errors.NewNameError(c.VarName, "", 0, 0)
		}
		h, ok := bound.Handle()
		if !ok {
			return value.Nil(), errors.NewTypeError(c.VarName+" is not callable", "", 0, 0)
		}
		target, ok := c.Table.Get(h.Name)
		if !ok {
			return value.Nil(), errors.NewNameError(h.Name, "", 0, 0)
		}
		return primitive.Await(ctx, target.Eval(ctx, args, ec))
	})
}

// InvokeCallable applies a realized callable value (a handle to a
// Closure, or a bound value.Function) to args, used by apply/map/filter/
// fold/for_each to call their first-class function argument.
func InvokeCallable(ctx context.Context, callable value.Value, args []value.Value, table *primitive.Table, ec primitive.EvalContext) (value.Value, error) {
	switch callable.Kind() {
	case value.KindHandle:
		h, _ := callable.Handle()
		node, ok := table.Get(h.Name)
		if !ok {
			return value.Nil(), errors.NewNameError(h.Name, "", 0, 0)
		}
		return primitive.Await(ctx, node.Eval(ctx, args, ec))
	case value.KindFunction:
		fn, _ := callable.Function()
		node, ok := table.Get(fn.Target.Name)
		if !ok {
			return value.Nil(), errors.NewNameError(fn.Target.Name, "", 0, 0)
		}
		effective := append(append([]value.Value{}, fn.Bound...), args...)
		return primitive.Await(ctx, node.Eval(ctx, effective, ec))
	default:
		return value.Nil(), errors.NewTypeError("value is not callable", "", 0, 0)
	}
}

// evalHandle is the small helper every control node that owns handle
// operands (rather than a single pre-resolved body) uses to force a
// child and read its value; shared to keep DynamicCall/Block/etc.
// identical in how they dereference operands.
func evalHandle(ctx context.Context, v value.Value, table *primitive.Table, ec primitive.EvalContext) (value.Value, error) {
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
