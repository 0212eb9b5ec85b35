package control

import (
	"context"
	"sync"

	"phylanx/internal/errors"
	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

func evalList(ctx context.Context, v value.Value, table *primitive.Table, ec primitive.EvalContext) ([]value.Value, error) {
	realized, err := evalHandle(ctx, v, table, ec)
	if err != nil {
		return nil, err
	}
	items, ok := realized.List()
	if !ok {
		return nil, errors.NewTypeError("expected a list", "", 0, 0)
	}
	return items, nil
}

// List builds a value.List from its already-lowered element operands,
// evaluating each one (spec.md §8's `list(1,2,3)`), the list-valued
// sibling of array-literal lowering to hstack: a bracketed literal
// always means a numeric array, while `list(...)` is how a program
// builds the heterogeneous sequence map/filter/fold operate over.
type List struct {
	primitive.Base
	Elems []value.Value
	Table *primitive.Table
}

func NewList(name primitive.Name, elems []value.Value, table *primitive.Table) *List {
	return &List{Base: primitive.NewBase(name, elems), Elems: elems, Table: table}
}

func (l *List) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		out := make([]value.Value, len(l.Elems))
		for i, e := range l.Elems {
			v, err := evalHandle(ctx, e, l.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			out[i] = v
		}
		return value.List(out), nil
	})
}

// Map applies F to every element of L, in order (spec.md §4.2.1).
type Map struct {
	primitive.Base
	F, L  value.Value
	Table *primitive.Table
}

func NewMap(name primitive.Name, f, l value.Value, table *primitive.Table) *Map {
	return &Map{Base: primitive.NewBase(name, []value.Value{f, l}), F: f, L: l, Table: table}
}

func (m *Map) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		f, err := evalHandle(ctx, m.F, m.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		items, err := evalList(ctx, m.L, m.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		out := make([]value.Value, len(items))
		for i, item := range items {
			v, err := InvokeCallable(ctx, f, []value.Value{item}, m.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			out[i] = v
		}
		return value.List(out), nil
	})
}

// ParallelMap is Map's parallel_map variant: elements are computed
// concurrently and joined back in original order (spec.md §4.2.1, §5).
type ParallelMap struct {
	primitive.Base
	F, L  value.Value
	Table *primitive.Table
}

func NewParallelMap(name primitive.Name, f, l value.Value, table *primitive.Table) *ParallelMap {
	return &ParallelMap{Base: primitive.NewBase(name, []value.Value{f, l}), F: f, L: l, Table: table}
}

func (m *ParallelMap) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		f, err := evalHandle(ctx, m.F, m.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		items, err := evalList(ctx, m.L, m.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		out := make([]value.Value, len(items))
		errs := make([]error, len(items))
		var wg sync.WaitGroup
		wg.Add(len(items))
		for i, item := range items {
			i, item := i, item
			go func() {
				defer wg.Done()
				v, err := InvokeCallable(ctx, f, []value.Value{item}, m.Table, ec)
				out[i], errs[i] = v, err
			}()
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return value.Nil(), err
			}
		}
		return value.List(out), nil
	})
}

// Filter keeps elements of L for which P projects truthy.
type Filter struct {
	primitive.Base
	P, L  value.Value
	Table *primitive.Table
}

func NewFilter(name primitive.Name, p, l value.Value, table *primitive.Table) *Filter {
	return &Filter{Base: primitive.NewBase(name, []value.Value{p, l}), P: p, L: l, Table: table}
}

func (f *Filter) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		pred, err := evalHandle(ctx, f.P, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		items, err := evalList(ctx, f.L, f.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		var out []value.Value
		for _, item := range items {
			keep, err := InvokeCallable(ctx, pred, []value.Value{item}, f.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			if keep.Truthy() {
				out = append(out, item)
			}
		}
		return value.List(out), nil
	})
}

// FoldLeft folds F over L from the left, starting at Acc.
type FoldLeft struct {
	primitive.Base
	F, Acc, L value.Value
	Table     *primitive.Table
}

func NewFoldLeft(name primitive.Name, f, acc, l value.Value, table *primitive.Table) *FoldLeft {
	return &FoldLeft{Base: primitive.NewBase(name, []value.Value{f, acc, l}), F: f, Acc: acc, L: l, Table: table}
}

func (fl *FoldLeft) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		f, err := evalHandle(ctx, fl.F, fl.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		acc, err := evalHandle(ctx, fl.Acc, fl.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		items, err := evalList(ctx, fl.L, fl.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		for _, item := range items {
			acc, err = InvokeCallable(ctx, f, []value.Value{acc, item}, fl.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
		}
		return acc, nil
	})
}

// FoldRight folds F over L from the right, starting at Acc.
type FoldRight struct {
	primitive.Base
	F, L, Acc value.Value
	Table     *primitive.Table
}

func NewFoldRight(name primitive.Name, f, l, acc value.Value, table *primitive.Table) *FoldRight {
	return &FoldRight{Base: primitive.NewBase(name, []value.Value{f, l, acc}), F: f, L: l, Acc: acc, Table: table}
}

func (fr *FoldRight) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		f, err := evalHandle(ctx, fr.F, fr.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		acc, err := evalHandle(ctx, fr.Acc, fr.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		items, err := evalList(ctx, fr.L, fr.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		for i := len(items) - 1; i >= 0; i-- {
			acc, err = InvokeCallable(ctx, f, []value.Value{items[i], acc}, fr.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
		}
		return acc, nil
	})
}

// ForEach invokes F on every element of L for its side effects,
// returning nil.
type ForEach struct {
	primitive.Base
	F, L  value.Value
	Table *primitive.Table
}

func NewForEach(name primitive.Name, f, l value.Value, table *primitive.Table) *ForEach {
	return &ForEach{Base: primitive.NewBase(name, []value.Value{f, l}), F: f, L: l, Table: table}
}

func (fe *ForEach) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		f, err := evalHandle(ctx, fe.F, fe.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		items, err := evalList(ctx, fe.L, fe.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		for _, item := range items {
			if _, err := InvokeCallable(ctx, f, []value.Value{item}, fe.Table, ec); err != nil {
				return value.Nil(), err
			}
		}
		return value.Nil(), nil
	})
}

// ParallelForEach is for_each's parallel_for_each variant: no ordering
// guarantee among elements (spec.md §5).
type ParallelForEach struct {
	primitive.Base
	F, L  value.Value
	Table *primitive.Table
}

func NewParallelForEach(name primitive.Name, f, l value.Value, table *primitive.Table) *ParallelForEach {
	return &ParallelForEach{Base: primitive.NewBase(name, []value.Value{f, l}), F: f, L: l, Table: table}
}

func (fe *ParallelForEach) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		f, err := evalHandle(ctx, fe.F, fe.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		items, err := evalList(ctx, fe.L, fe.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		errs := make([]error, len(items))
		var wg sync.WaitGroup
		wg.Add(len(items))
		for i, item := range items {
			i, item := i, item
			go func() {
				defer wg.Done()
				_, err := InvokeCallable(ctx, f, []value.Value{item}, fe.Table, ec)
				errs[i] = err
			}()
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return value.Nil(), err
			}
		}
		return value.Nil(), nil
	})
}

// Apply invokes F with the arguments unpacked from ArgList, evaluating
// ArgList before F's body (spec.md §5: "apply(f, args) evaluates args
// before f's body").
type Apply struct {
	primitive.Base
	F, ArgList value.Value
	Table      *primitive.Table
}

func NewApply(name primitive.Name, f, argList value.Value, table *primitive.Table) *Apply {
	return &Apply{Base: primitive.NewBase(name, []value.Value{f, argList}), F: f, ArgList: argList, Table: table}
}

func (a *Apply) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		args, err := evalList(ctx, a.ArgList, a.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		f, err := evalHandle(ctx, a.F, a.Table, ec)
		if err != nil {
			return value.Nil(), err
		}
		return InvokeCallable(ctx, f, args, a.Table, ec)
	})
}
