package registry

import (
	"phylanx/internal/primitive"
	"phylanx/internal/primitives/arrayops"
	"phylanx/internal/primitives/control"
	"phylanx/internal/primitives/extkernel"
	"phylanx/internal/value"
)

// NewBuiltins returns a Registry pre-populated with every primitive
// named by spec.md §4.2.1/§4.4/§9 that does not need raw AST access
// (those four — define/lambda/store/target_reference — are lowered
// directly by the compiler instead). Grounded on the teacher's
// init-time stdlib-module registration (internal/module's
// RegisterBuiltins), generalized from Sentra's module namespaces to a
// single flat PhySL pattern table. table is the shared primitive.Table
// every factory's constructed node dereferences its operands against.
func NewBuiltins(table *primitive.Table) *Registry {
	r := NewRegistry()

	reg := func(name string, minArgs int, factory Factory) {
		r.Register(&Entry{Name: name, Templates: []Template{{MinArgs: minArgs}}, Factory: factory})
	}

	// Control flow and scoping (spec.md §4.2.1).
	r.Register(&Entry{
		Name:      "block",
		Templates: []Template{{MinArgs: 0, ListExpand: true}},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			children, _ := args[0].List()
			return control.NewBlock(name, children, table), nil
		},
	})
	r.Register(&Entry{
		Name:      "list",
		Templates: []Template{{MinArgs: 0, ListExpand: true}},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			elems, _ := args[0].List()
			return control.NewList(name, elems, table), nil
		},
	})
	r.Register(&Entry{
		Name:      "parallel_block",
		Templates: []Template{{MinArgs: 0, ListExpand: true}},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			children, _ := args[0].List()
			return control.NewParallelBlock(name, children, table), nil
		},
	})
	r.Register(&Entry{
		Name: "if",
		Templates: []Template{
			{MinArgs: 2, KeywordArgs: []KeywordArg{{Name: "else", Default: value.Nil()}}},
		},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			return control.NewIf(name, args[0], args[1], args[2], table), nil
		},
	})
	reg("while", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewWhile(name, args[0], args[1], table), nil
	})
	reg("for", 4, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewFor(name, args[0], args[1], args[2], args[3], table), nil
	})
	reg("map", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewMap(name, args[0], args[1], table), nil
	})
	reg("parallel_map", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewParallelMap(name, args[0], args[1], table), nil
	})
	reg("filter", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewFilter(name, args[0], args[1], table), nil
	})
	reg("fold_left", 3, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewFoldLeft(name, args[0], args[1], args[2], table), nil
	})
	reg("fold_right", 3, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewFoldRight(name, args[0], args[1], args[2], table), nil
	})
	reg("for_each", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewForEach(name, args[0], args[1], table), nil
	})
	reg("parallel_for_each", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewParallelForEach(name, args[0], args[1], table), nil
	})
	reg("apply", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewApply(name, args[0], args[1], table), nil
	})
	reg("synchronize", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewSynchronize(name, args[0], table), nil
	})
	reg("timer", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return control.NewTimer(name, args[0], args[1], table), nil
	})
	r.Register(&Entry{
		Name:      "assert_condition",
		Templates: []Template{{MinArgs: 1, KeywordArgs: []KeywordArg{{Name: "message", Default: value.String("assertion failed")}}}},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			msg, _ := args[1].String()
			return control.NewAssertCondition(name, args[0], msg, table), nil
		},
	})

	// Array construction and elementwise arithmetic/comparison/logical
	// ops (spec.md §4.4, §4.5); also the target of array-literal
	// lowering (spec.md §4.3).
	r.Register(&Entry{
		Name:      "hstack",
		Templates: []Template{{MinArgs: 0, ListExpand: true}},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			elems, _ := args[0].List()
			return arrayops.NewHStack(name, elems, table)
		},
	})

	reg("add", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewAdd(name, args, table) })
	reg("sub", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewSub(name, args, table) })
	reg("mul", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewMul(name, args, table) })
	reg("div", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewDiv(name, args, table) })
	reg("mod", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewMod(name, args, table) })
	reg("dot", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewDot(name, args, table) })
	reg("eq", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewEq(name, args, table) })
	reg("neq", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewNeq(name, args, table) })
	reg("lt", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewLt(name, args, table) })
	reg("le", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewLe(name, args, table) })
	reg("gt", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewGt(name, args, table) })
	reg("ge", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewGe(name, args, table) })
	reg("and", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewAnd(name, args, table) })
	reg("or", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewOr(name, args, table) })
	reg("neg", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewNeg(name, args, table) })
	reg("not", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) { return arrayops.NewNot(name, args, table) })
	reg("one_hot", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewOneHot(name, args, table)
	})
	reg("set_seed", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewSetSeed(name, args, table)
	})

	// Distributed-array collectives (spec.md §4.4): each takes an
	// explicit locality (or process-grid) count and simulates the
	// partition/exchange/gather cycle over a short-lived in-process
	// locality fabric (internal/distarray).
	reg("retile_d", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewRetileD(name, args, table)
	})
	reg("all_gather_d", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewAllGatherD(name, args, table)
	})
	reg("dot_d", 3, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewDotD(name, args, table)
	})
	reg("cannon_product_d", 3, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewCannonProductD(name, args, table)
	})
	reg("sum_d", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewSumD(name, args, table)
	})
	reg("mean_d", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewMeanD(name, args, table)
	})
	reg("max_d", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewMaxD(name, args, table)
	})
	reg("argmin_d", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewArgminD(name, args, table)
	})
	reg("argmax_d", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewArgmaxD(name, args, table)
	})
	reg("conv1d_d", 4, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return arrayops.NewConv1DD(name, args, table)
	})

	// External-collaborator leaves (spec.md §6): file/CSV/HDF5 I/O,
	// seeded RNG draws, timers/debug/format output, and SQL reads.
	reg("file_read", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewFileRead(name, args, table)
	})
	reg("file_write", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewFileWrite(name, args, table)
	})
	reg("file_read_csv", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewFileReadCSV(name, args, table)
	})
	reg("file_write_csv", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewFileWriteCSV(name, args, table)
	})
	reg("file_read_hdf5", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewFileReadHDF5(name, args, table)
	})
	reg("file_write_hdf5", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewFileWriteHDF5(name, args, table)
	})
	r.Register(&Entry{
		Name:      "random",
		Templates: []Template{{MinArgs: 0, ListExpand: true}},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			shape, _ := args[0].List()
			return extkernel.NewRandom(name, shape, table)
		},
	})
	reg("timer_now", 0, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewTimerKernel(name, args, table)
	})
	reg("debug", 1, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewDebug(name, args, table)
	})
	r.Register(&Entry{
		Name:      "format_string",
		Templates: []Template{{MinArgs: 1, ListExpand: true}},
		Factory: func(name primitive.Name, args []value.Value) (primitive.Node, error) {
			rest, _ := args[1].List()
			return extkernel.NewFormatString(name, append([]value.Value{args[0]}, rest...), table)
		},
	})
	reg("sql_read_mysql", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewSQLReadMySQL(name, args, table)
	})
	reg("sql_read_postgres", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewSQLReadPostgres(name, args, table)
	})
	reg("sql_read_mssql", 2, func(name primitive.Name, args []value.Value) (primitive.Node, error) {
		return extkernel.NewSQLReadMSSQL(name, args, table)
	})

	return r
}
