package control

import (
	"context"

	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// If evaluates Cond; only one of Then/Else is ever evaluated (spec.md
// §4.2.1). Else defaults to a Constant(nil) when the surface form
// omits the third argument.
type If struct {
	primitive.Base
	Cond, Then, Else value.Value
	Table            *primitive.Table
}

func NewIf(name primitive.Name, cond, then, els value.Value, table *primitive.Table) *If {
	return &If{Base: primitive.NewBase(name, []value.Value{cond, then, els}), Cond: cond, Then: then, Else: els, Table: table}
}

func (n *If) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		c, err := evalHandle(ctx, n.Cond, n.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		if c.Truthy() {
			return evalHandle(ctx, n.Then, n.Table, ec)
		}
		return evalHandle(ctx, n.Else, n.Table, ec)
	})
}

// While repeatedly evaluates Cond, running Body while it is truthy, one
// iteration at a time (spec.md §5). Returns the last Body value, or nil
// if the loop never ran.
type While struct {
	primitive.Base
	Cond, Body value.Value
	Table      *primitive.Table
}

func NewWhile(name primitive.Name, cond, body value.Value, table *primitive.Table) *While {
	return &While{Base: primitive.NewBase(name, []value.Value{cond, body}), Cond: cond, Body: body, Table: table}
}

func (w *While) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		last := value.Nil()
		for {
			c, err := evalHandle(ctx, w.Cond, w.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			if !c.Truthy() {
				return last, nil
			}
			v, err := evalHandle(ctx, w.Body, w.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			last = v
		}
	})
}

// For implements standard C-style loop semantics: Init runs once, Cond
// is checked before each iteration, Step runs after each Body (spec.md
// §4.2.1).
type For struct {
	primitive.Base
	Init, Cond, Step, Body value.Value
	Table                  *primitive.Table
}

func NewFor(name primitive.Name, initE, cond, step, body value.Value, table *primitive.Table) *For {
	return &For{Base: primitive.NewBase(name, []value.Value{initE, cond, step, body}), Init: initE, Cond: cond, Step: step, Body: body, Table: table}
}

func (f *For) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		if _, err := evalHandle(ctx, f.Init, f.Table, ec); err != nil {
			return value.Nil(), err
		}
		last := value.Nil()
		for {
			c, err := evalHandle(ctx, f.Cond, f.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			if !c.Truthy() {
				return last, nil
			}
			v, err := evalHandle(ctx, f.Body, f.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			last = v
			if _, err := evalHandle(ctx, f.Step, f.Table, ec); err != nil {
				return value.Nil(), err
			}
		}
	})
}
