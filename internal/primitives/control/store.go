package control

import (
	"context"

	"phylanx/internal/errors"
	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// Store lowers `store(target, value)`: TargetName is the source
// identifier, resolved through the current frame at eval time (not a
// fixed compile-time name, so a store inside a loop body always hits
// whichever frame is live) to whatever primitive it is bound to
// (spec.md §4.1: "dispatched on target's primitive kind"); any node
// that does not override Node.Store fails with not-mutable, so
// mutation-error propagation falls naturally out of primitive.Base's
// default rather than needing a type switch here.
type Store struct {
	primitive.Base
	TargetName string
	ValueExpr  value.Value
	Table      *primitive.Table
}

func NewStore(name primitive.Name, targetName string, valueExpr value.Value, table *primitive.Table) *Store {
	return &Store{Base: primitive.NewBase(name, []value.Value{valueExpr}), TargetName: targetName, ValueExpr: valueExpr, Table: table}
}

func (s *Store) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		v, err := evalHandle(ctx, s.ValueExpr, s.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		target, err := LookupTarget(s.TargetName, ec, s.Table)
		if err != nil {
			return value.Nil(), err
		}
		if err := target.Store(ctx, v, nil, ec); err != nil {
			return value.Nil(), err
		}
		return v, nil
	})
}

// AssertCondition implements `assert_condition(c)`: if c's boolean
// projection is false the eval fails with an assertion-failure, without
// terminating the process (spec.md §7).
type AssertCondition struct {
	primitive.Base
	Cond    value.Value
	Message string
	Table   *primitive.Table
}

func NewAssertCondition(name primitive.Name, cond value.Value, message string, table *primitive.Table) *AssertCondition {
	return &AssertCondition{Base: primitive.NewBase(name, []value.Value{cond}), Cond: cond, Message: message, Table: table}
}

func (a *AssertCondition) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		c, err := evalHandle(ctx, a.Cond, a.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		if !c.Truthy() {
			msg := a.Message
			if msg == "" {
				msg = "assertion failed"
			}
			return value.Nil(), errors.NewAssertionFailure(msg, "", 0, 0)
		}
		return value.Bool(true), nil
	})
}
