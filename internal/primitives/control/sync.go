package control

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"phylanx/internal/array"
	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// Synchronize wraps E so concurrent callers share the first in-flight
// future rather than re-entering the body (spec.md §4.2.1). Grounded on
// golang.org/x/sync/singleflight, the same duplicate-suppression
// primitive the teacher's concurrency stack already depends on
// transitively through its worker-pool job dedupe path.
type Synchronize struct {
	primitive.Base
	E     value.Value
	Table *primitive.Table
	group singleflight.Group
}

func NewSynchronize(name primitive.Name, e value.Value, table *primitive.Table) *Synchronize {
	return &Synchronize{Base: primitive.NewBase(name, []value.Value{e}), E: e, Table: table}
}

func (s *Synchronize) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		v, err, _ := s.group.Do(s.Name().String(), func() (interface{}, error) {
			return evalHandle(ctx, s.E, s.Table, ec)
		})
		if err != nil {
			return value.Nil(), err
		}
		return v.(value.Value), nil
	})
}

// Timer evaluates E, measures wall-clock time, invokes Callback with the
// elapsed seconds as a rank-0 double array, and returns E's own value
// (spec.md §4.2.1).
type Timer struct {
	primitive.Base
	E, Callback value.Value
	Table       *primitive.Table
}

func NewTimer(name primitive.Name, e, callback value.Value, table *primitive.Table) *Timer {
	return &Timer{Base: primitive.NewBase(name, []value.Value{e, callback}), E: e, Callback: callback, Table: table}
}

func (t *Timer) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		start := time.Now()
		v, err := evalHandle(ctx, t.E, t.Table, ec)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			return value.Nil(), err
		}
		cb, cbErr := evalHandle(ctx, t.Callback, t.Table, ec)
		if cbErr != nil {
			return value.Nil(), cbErr
		}
		elapsedArr, arrErr := array.NewDouble([]float64{elapsed}, nil)
		if arrErr != nil {
			return value.Nil(), arrErr
		}
		if _, err := InvokeCallable(ctx, cb, []value.Value{value.Array(elapsedArr)}, t.Table, ec); err != nil {
			return value.Nil(), err
		}
		return v, nil
	})
}
