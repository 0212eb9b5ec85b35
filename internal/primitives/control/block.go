package control

import (
	"context"
	"sync"

	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// Block evaluates its children in source order and returns the last
// one's value; an earlier failure stops the block immediately (spec.md
// §4.2.1, §5: "a child sees the side effects of all preceding
// children").
type Block struct {
	primitive.Base
	Children []value.Value
	Table    *primitive.Table
}

func NewBlock(name primitive.Name, children []value.Value, table *primitive.Table) *Block {
	return &Block{Base: primitive.NewBase(name, children), Children: children, Table: table}
}

func (b *Block) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		var last value.Value
		for _, child := range b.Children {
			v, err := evalHandle(ctx, child, b.Table, ec)
			if err != nil {
				return value.Nil(), err
			}
			last = v
		}
		return last, nil
	})
}

// ParallelBlock evaluates all children concurrently, awaits every one,
// and returns the textually last child's value even if an earlier
// child failed — this is the load-bearing fire-and-forget contract
// spec.md §9 calls out explicitly and instructs to leave unchanged.
// Errors are collected and, if any child failed, the block fails with
// the first-by-index error only after every sibling has completed
// (spec.md §4.2.1, §7).
type ParallelBlock struct {
	primitive.Base
	Children []value.Value
	Table    *primitive.Table
}

func NewParallelBlock(name primitive.Name, children []value.Value, table *primitive.Table) *ParallelBlock {
	return &ParallelBlock{Base: primitive.NewBase(name, children), Children: children, Table: table}
}

func (p *ParallelBlock) Eval(ctx context.Context, params []value.Value, ec primitive.EvalContext) primitive.Future {
	return primitive.Go(func() (value.Value, error) {
		n := len(p.Children)
		if n == 0 {
			return value.Nil(), nil
		}
		results := make([]value.Value, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		wg.Add(n)
		for i, child := range p.Children {
			i, child := i, child
			go func() {
				defer wg.Done()
				v, err := evalHandle(ctx, child, p.Table, ec)
				results[i] = v
				errs[i] = err
			}()
		}
		wg.Wait()

		firstErrIdx := -1
		for i, err := range errs {
			if err != nil {
				firstErrIdx = i
				break
			}
		}
		if firstErrIdx != -1 {
			return results[n-1], errs[firstErrIdx]
		}
		return results[n-1], nil
	})
}
