// Package compiler lowers a parsed PhySL program (internal/parser) into
// a primitive graph (internal/primitive, internal/primitives/control):
// name resolution walks a compile-time Scope mirroring the runtime
// Frame chain, and each AST node is turned into one or more registered
// primitive.Node values, exactly as spec.md §4.1/§4.3 describe. Adapted
// from the teacher's tree-walking Compiler (internal/compiler's
// VisitXxxExpr dispatch over a bytecode.Chunk) but emitting graph nodes
// into a primitive.Table instead of bytecode into a chunk, since the
// graph itself — not a flat instruction stream — is what evaluation
// walks at runtime.
package compiler

import (
	"phylanx/internal/array"
	"phylanx/internal/errors"
	"phylanx/internal/lexer"
	"phylanx/internal/parser"
	"phylanx/internal/primitive"
	"phylanx/internal/primitives/control"
	"phylanx/internal/registry"
	"phylanx/internal/value"
)

// Program is the compiler's emission (spec.md §4.1): the ordered list
// of top-level entry points, the shared table every entry point's
// operand handles resolve against, and the scratchpad root frame
// top-level `define`s write their bindings into.
type Program struct {
	EntryPoints []value.Value
	Table       *primitive.Table
	Scratchpad  *primitive.Frame
}

// Compiler holds the per-compile state: a name generator owned by this
// Compiler for as long as it lives (per spec.md §3's global-uniqueness
// invariant, a name must never repeat even across several Compile
// calls on the same Compiler), the shared table it populates, the root
// Scope and scratchpad Frame every Compile call accumulates into, and
// the read-only pattern registry it consults for every non-special-form
// call.
type Compiler struct {
	reg        *registry.Registry
	gen        primitive.NameGenerator
	table      *primitive.Table
	root       *Scope
	scratchpad *primitive.Frame
}

func New(reg *registry.Registry) *Compiler {
	return &Compiler{
		reg:        reg,
		table:      primitive.NewTable(),
		root:       newScope(nil),
		scratchpad: primitive.NewFrame(),
	}
}

// Compile lowers a fully parsed program into a graph. Every expression
// — whether from one Compile call's prog.Exprs or across several calls
// on the same Compiler — compiles against the one accumulating root
// Scope and table, so a `define` in an earlier call is visible (by
// name, not yet by value) to an expression compiled in a later call,
// matching the unbound -> evaluating -> bound lifecycle of the Variable
// it lowers to. This is what lets a REPL session (internal/repl) keep
// resolving names across lines using one long-lived Compiler.
func (c *Compiler) Compile(prog *parser.Program) (*Program, error) {
	entries := make([]value.Value, 0, len(prog.Exprs))
	for _, e := range prog.Exprs {
		h, err := c.compileExpr(e, c.root)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return &Program{EntryPoints: entries, Table: c.table, Scratchpad: c.scratchpad}, nil
}

// CompileSource lexes, parses, and compiles src against reg in one
// call — the embedding-API convenience wrapper spec.md §6 describes as
// `compiler.Compile(src, registry, env)`, here returning the full
// Program (table, scratchpad, entry points) rather than a single
// function handle, since a source file may hold more than one
// top-level expression.
func CompileSource(src string, reg *registry.Registry) (*Program, error) {
	tokens, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		return nil, err
	}
	prog, err := parser.NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}
	return New(reg).Compile(prog)
}

func (c *Compiler) compileExpr(e parser.Expr, scope *Scope) (value.Value, error) {
	switch n := e.(type) {
	case *parser.IntLit:
		return c.emitConstant(value.Int64(n.Value))
	case *parser.FloatLit:
		arr, err := array.NewDouble([]float64{n.Value}, nil)
		if err != nil {
			return value.Value{}, err
		}
		return c.emitConstant(value.Array(arr))
	case *parser.StringLit:
		return c.emitConstant(value.String(n.Value))
	case *parser.ArrayLit:
		return c.compileArrayLit(n, scope)
	case *parser.Ident:
		return c.compileIdent(n, scope)
	case *parser.Call:
		return c.compileCall(n, scope)
	case *parser.UnaryExpr:
		return c.compileUnary(n, scope)
	case *parser.BinaryExpr:
		return c.compileBinary(n, scope)
	default:
		pos := e.Position()
		return value.Value{}, errors.NewParseError("unsupported expression node", "", pos.Line, pos.Column)
	}
}

func (c *Compiler) emitConstant(v value.Value) (value.Value, error) {
	name := c.gen.Next("constant")
	node := control.NewConstant(name, v)
	c.table.Register(node)
	return value.HandleVal(value.Handle{Name: name.String()}), nil
}

// compileArrayLit lowers a bracketed literal to a call against the
// registered "hstack" primitive over its (already lowered) elements
// (spec.md §4.3: "Array literals lower to hstack over the element
// expressions").
func (c *Compiler) compileArrayLit(n *parser.ArrayLit, scope *Scope) (value.Value, error) {
	elems := make([]value.Value, len(n.Elements))
	for i, el := range n.Elements {
		h, err := c.compileExpr(el, scope)
		if err != nil {
			return value.Value{}, err
		}
		elems[i] = h
	}
	return c.callRegistry("hstack", elems)
}

// compileIdent lowers a bare identifier: a variable binding forces
// evaluation (access_variable), a function binding yields a first-class
// function value (access_function), an argument binding reads the
// caller's pack by position (access_argument); anything unresolved is a
// compile-time name-error (spec.md §4.1, §4.3).
func (c *Compiler) compileIdent(n *parser.Ident, scope *Scope) (value.Value, error) {
	b, ok := scope.lookup(n.Name)
	if !ok {
		pos := n.Position()
		return value.Value{}, errors.NewNameError(n.Name, "", pos.Line, pos.Column)
	}
	switch b.kind {
	case bindVariable:
		name := c.gen.Next("access_variable")
		node := control.NewAccessVariable(name, n.Name, c.table)
		c.table.Register(node)
		return value.HandleVal(value.Handle{Name: name.String()}), nil
	case bindFunction:
		name := c.gen.Next("access_function")
		node := control.NewAccessFunction(name, n.Name)
		c.table.Register(node)
		return value.HandleVal(value.Handle{Name: name.String()}), nil
	default: // bindArgument
		name := c.gen.Next("access_argument")
		node := control.NewAccessArgument(name, b.index)
		c.table.Register(node)
		return value.HandleVal(value.Handle{Name: name.String()}), nil
	}
}

func (c *Compiler) compileUnary(n *parser.UnaryExpr, scope *Scope) (value.Value, error) {
	operand, err := c.compileExpr(n.Operand, scope)
	if err != nil {
		return value.Value{}, err
	}
	return c.callRegistry(unaryPrimitiveName(n.Op), []value.Value{operand})
}

func (c *Compiler) compileBinary(n *parser.BinaryExpr, scope *Scope) (value.Value, error) {
	left, err := c.compileExpr(n.Left, scope)
	if err != nil {
		return value.Value{}, err
	}
	right, err := c.compileExpr(n.Right, scope)
	if err != nil {
		return value.Value{}, err
	}
	return c.callRegistry(binaryPrimitiveName(n.Op), []value.Value{left, right})
}

func unaryPrimitiveName(op string) string {
	switch op {
	case "-":
		return "neg"
	case "!":
		return "not"
	default:
		return op
	}
}

func binaryPrimitiveName(op string) string {
	switch op {
	case "+":
		return "add"
	case "-":
		return "sub"
	case "*":
		return "mul"
	case "/":
		return "div"
	case "%":
		return "mod"
	case "==":
		return "eq"
	case "!=":
		return "neq"
	case "<":
		return "lt"
	case "<=":
		return "le"
	case ">":
		return "gt"
	case ">=":
		return "ge"
	case "&&":
		return "and"
	case "||":
		return "or"
	default:
		return op
	}
}

// compileCall dispatches on the call's head name: the four scope-
// mutating special forms (define/lambda/store/target_reference) need
// raw identifier arguments rather than compiled expressions, so the
// compiler handles them directly; a name already bound in scope
// (shadowing a user-defined variable/function/argument) compiles to a
// direct call; everything else goes through the pattern registry
// (spec.md §4.1, §4.3).
func (c *Compiler) compileCall(n *parser.Call, scope *Scope) (value.Value, error) {
	switch n.Name {
	case "define":
		return c.compileDefine(n, scope)
	case "lambda":
		return c.compileLambda(n, scope)
	case "store":
		return c.compileStore(n, scope)
	case "target_reference":
		return c.compileTargetReference(n, scope)
	}

	if b, ok := scope.lookup(n.Name); ok {
		return c.compileScopedCall(n, b, scope)
	}

	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		h, err := c.compileExpr(a, scope)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = h
	}
	return c.callRegistry(n.Name, args)
}

// compileScopedCall lowers `f(args...)` when f resolves at compile time
// to a user-defined function, a plain variable holding a function
// value, or a bound argument slot (spec.md §4.3: "at the call position
// compiles to a direct call_function"); the callee itself is still
// resolved dynamically through ec.Frame/ec.Caller at eval time.
func (c *Compiler) compileScopedCall(n *parser.Call, b binding, scope *Scope) (value.Value, error) {
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		h, err := c.compileExpr(a, scope)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = h
	}
	name := c.gen.Next("call_function")
	var node primitive.Node
	if b.kind == bindArgument {
		node = control.NewDynamicCall(name, "", b.index, true, args, c.table)
	} else {
		node = control.NewDynamicCall(name, n.Name, 0, false, args, c.table)
	}
	c.table.Register(node)
	return value.HandleVal(value.Handle{Name: name.String()}), nil
}

// compileDefine disambiguates the two define shapes purely by argument
// count (spec.md §4.1): exactly 2 args is the variable form
// `define(name, body)`; 3 or more is the function form
// `define(name, p1,...,pn, body)`.
func (c *Compiler) compileDefine(n *parser.Call, scope *Scope) (value.Value, error) {
	if len(n.Args) < 2 {
		pos := n.Position()
		return value.Value{}, errors.NewArityError("define", 2, len(n.Args), "", pos.Line, pos.Column)
	}
	nameIdent, ok := n.Args[0].(*parser.Ident)
	if !ok {
		pos := n.Args[0].Position()
		return value.Value{}, errors.NewParseError("define's first argument must be a bare identifier", "", pos.Line, pos.Column)
	}
	if len(n.Args) == 2 {
		return c.compileDefineVariable(nameIdent.Name, n.Args[1], scope)
	}
	return c.compileDefineFunction(nameIdent.Name, n.Args[1:len(n.Args)-1], n.Args[len(n.Args)-1], scope)
}

func (c *Compiler) compileDefineVariable(name string, bodyExpr parser.Expr, scope *Scope) (value.Value, error) {
	body, err := c.compileExpr(bodyExpr, scope)
	if err != nil {
		return value.Value{}, err
	}
	varName := c.gen.Next("variable")
	v := control.NewVariable(varName, body, c.table)
	c.table.Register(v)
	defName := c.gen.Next("define")
	d := control.NewDefine(defName, name, v)
	c.table.Register(d)
	scope.define(name, binding{kind: bindVariable})
	return value.HandleVal(value.Handle{Name: defName.String()}), nil
}

// compileDefineFunction binds name to a function kind in scope before
// compiling the body, so a reference to name inside its own body (plain
// recursion) or inside a sibling define that follows it resolves
// without needing target_reference; actual resolution of the value
// still happens through ec.Frame at eval time, never a pointer captured
// here (spec.md §9).
func (c *Compiler) compileDefineFunction(name string, paramExprs []parser.Expr, bodyExpr parser.Expr, scope *Scope) (value.Value, error) {
	scope.define(name, binding{kind: bindFunction})
	child := newScope(scope)
	params := make([]string, len(paramExprs))
	for i, pe := range paramExprs {
		id, ok := pe.(*parser.Ident)
		if !ok {
			pos := pe.Position()
			return value.Value{}, errors.NewParseError("function parameter must be a bare identifier", "", pos.Line, pos.Column)
		}
		params[i] = id.Name
		child.define(id.Name, binding{kind: bindArgument, index: i})
	}
	body, err := c.compileExpr(bodyExpr, child)
	if err != nil {
		return value.Value{}, err
	}
	closureName := c.gen.Next("function")
	closure := control.NewClosure(closureName, params, body, c.table)
	c.table.Register(closure)
	defName := c.gen.Next("define_function")
	d := control.NewDefineFunction(defName, name, closure)
	c.table.Register(d)
	return value.HandleVal(value.Handle{Name: defName.String()}), nil
}

// compileLambda lowers an anonymous `lambda(p1,...,pn, body)` to its
// closure node plus a constant wrapping the already-known target handle
// as a first-class function value — unlike a named function, an
// anonymous one is never looked up by name, so its value can be fixed
// at compile time rather than resolved through ec.Frame.
func (c *Compiler) compileLambda(n *parser.Call, scope *Scope) (value.Value, error) {
	if len(n.Args) < 1 {
		pos := n.Position()
		return value.Value{}, errors.NewArityError("lambda", 1, len(n.Args), "", pos.Line, pos.Column)
	}
	child := newScope(scope)
	paramExprs := n.Args[:len(n.Args)-1]
	params := make([]string, len(paramExprs))
	for i, pe := range paramExprs {
		id, ok := pe.(*parser.Ident)
		if !ok {
			pos := pe.Position()
			return value.Value{}, errors.NewParseError("lambda parameter must be a bare identifier", "", pos.Line, pos.Column)
		}
		params[i] = id.Name
		child.define(id.Name, binding{kind: bindArgument, index: i})
	}
	body, err := c.compileExpr(n.Args[len(n.Args)-1], child)
	if err != nil {
		return value.Value{}, err
	}
	closureName := c.gen.Next("lambda")
	closure := control.NewClosure(closureName, params, body, c.table)
	c.table.Register(closure)
	return c.emitConstant(value.FunctionVal(&value.Function{Target: value.Handle{Name: closureName.String()}}))
}

// compileStore lowers `store(target, value)`: target must be a bare
// identifier already bound in scope (spec.md §4.1); the compile-time
// scope check rejects an obviously-unbound target early, but the actual
// dispatch to the bound primitive's Store method happens dynamically
// through ec.Frame at eval time (internal/primitives/control.Store).
func (c *Compiler) compileStore(n *parser.Call, scope *Scope) (value.Value, error) {
	if len(n.Args) != 2 {
		pos := n.Position()
		return value.Value{}, errors.NewArityError("store", 2, len(n.Args), "", pos.Line, pos.Column)
	}
	targetIdent, ok := n.Args[0].(*parser.Ident)
	if !ok {
		pos := n.Args[0].Position()
		return value.Value{}, errors.NewMutationError("<non-identifier>", "", pos.Line, pos.Column)
	}
	if _, ok := scope.lookup(targetIdent.Name); !ok {
		pos := targetIdent.Position()
		return value.Value{}, errors.NewNameError(targetIdent.Name, "", pos.Line, pos.Column)
	}
	valExpr, err := c.compileExpr(n.Args[1], scope)
	if err != nil {
		return value.Value{}, err
	}
	name := c.gen.Next("store")
	node := control.NewStore(name, targetIdent.Name, valExpr, c.table)
	c.table.Register(node)
	return value.HandleVal(value.Handle{Name: name.String()}), nil
}

// compileTargetReference lowers the explicit forward/mutual-recursion
// escape hatch `target_reference(name)` (spec.md §4.2.1, §9): name need
// not yet be bound at compile time in the ordinary sense, since
// resolution happens through ec.Frame at eval time, well after every
// top-level define has run; it still must be a bare identifier.
func (c *Compiler) compileTargetReference(n *parser.Call, scope *Scope) (value.Value, error) {
	if len(n.Args) != 1 {
		pos := n.Position()
		return value.Value{}, errors.NewArityError("target_reference", 1, len(n.Args), "", pos.Line, pos.Column)
	}
	id, ok := n.Args[0].(*parser.Ident)
	if !ok {
		pos := n.Args[0].Position()
		return value.Value{}, errors.NewParseError("target_reference's argument must be a bare identifier", "", pos.Line, pos.Column)
	}
	name := c.gen.Next("target_reference")
	node := control.NewTargetReference(name, id.Name, c.table)
	c.table.Register(node)
	return value.HandleVal(value.Handle{Name: name.String()}), nil
}

// callRegistry compiles a registry-dispatched call: look the name up,
// match its call-shape templates (padding keyword defaults / collecting
// a __list tail as the entry declares), and hand the expanded argument
// list to its factory (spec.md §4.1).
func (c *Compiler) callRegistry(name string, args []value.Value) (value.Value, error) {
	entry, ok := c.reg.Lookup(name)
	if !ok {
		return value.Value{}, errors.NewNameError(name, "", 0, 0)
	}
	expanded, err := entry.Match(args)
	if err != nil {
		expected := len(args)
		if len(entry.Templates) > 0 {
			expected = entry.Templates[0].MinArgs
		}
		return value.Value{}, errors.NewArityError(name, expected, len(args), "", 0, 0).WithCause(err)
	}
	nodeName := c.gen.Next(name)
	node, err := entry.Factory(nodeName, expanded)
	if err != nil {
		return value.Value{}, err
	}
	c.table.Register(node)
	return value.HandleVal(value.Handle{Name: nodeName.String()}), nil
}
