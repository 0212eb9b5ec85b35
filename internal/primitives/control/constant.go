// Package control implements the control-flow and scoping primitives of
// spec.md §4.2.1: block, parallel_block, if, while, for, the list
// traversals, apply, variable/define/access_variable, function/lambda/
// access_argument, target_reference, synchronize, and timer. Adapted
// from the teacher's internal/vm tree-walking opcodes (control.go,
// closures.go) but retargeted from a bytecode-interpreter's operand
// stack to the graph-of-futures contract in internal/primitive.
package control

import (
	"context"

	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// Constant is the leaf every literal AST node lowers to (spec.md §4.3:
// "Literals lower to a variable-like constant node whose eval returns
// the literal"). Unlike Variable it carries no mutable state and always
// takes the direct path.
type Constant struct {
	primitive.Base
	Value value.Value
}

func NewConstant(name primitive.Name, v value.Value) *Constant {
	return &Constant{Base: primitive.NewBase(name, nil), Value: v}
}

func (c *Constant) DirectEvalOk() bool { return true }

func (c *Constant) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.NewFuture(c.Value, nil)
}
