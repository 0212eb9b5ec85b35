// Package repl is an interactive PhySL read-eval-print loop: each line
// is lexed, parsed, and compiled on its own (sharing one compiler so
// earlier `define`s stay visible), then every entry point it produces
// is evaluated against a persistent scratchpad frame and printed.
// Adapted from the teacher's internal/repl.Start, generalized from its
// single fresh-chunk-per-line VM reset to PhySL's shared-table,
// shared-scratchpad primitive graph, where a later line must still be
// able to reference a name a previous line defined.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"phylanx/internal/compiler"
	"phylanx/internal/errors"
	"phylanx/internal/lexer"
	"phylanx/internal/parser"
	"phylanx/internal/primitive"
	"phylanx/internal/registry"
	"phylanx/internal/value"
)

// Session holds the state a REPL keeps across lines: one long-lived
// compiler, whose name generator, table, root scope, and scratchpad
// frame all persist across calls, so a `define` on one line is still
// visible — by name at compile time, by value at eval time — to
// whatever line references it next.
type Session struct {
	comp *compiler.Compiler
}

// NewSession builds a Session around reg, ready for repeated Eval calls.
func NewSession(reg *registry.Registry) *Session {
	return &Session{comp: compiler.New(reg)}
}

// Eval lexes, parses, and compiles src as one top-level program, then
// evaluates every entry point it produces, returning the last entry
// point's value (matching PhySL's block-value convention: a program's
// result is its last expression's result).
func (s *Session) Eval(ctx context.Context, src string) (string, error) {
	tokens, err := lexer.NewScanner(src).ScanTokens()
	if err != nil {
		return "", err
	}
	prog, err := parser.NewParser(tokens).Parse()
	if err != nil {
		return "", err
	}
	cprog, err := s.comp.Compile(prog)
	if err != nil {
		return "", err
	}

	ec := primitive.NewEvalContext(cprog.Scratchpad)
	last := value.Nil()
	for _, h := range cprog.EntryPoints {
		res, err := evalHandle(ctx, h, cprog.Table, ec)
		if err != nil {
			return "", err
		}
		last = res
	}
	if last.IsNil() {
		return "", nil
	}
	return last.GoString(), nil
}

// evalHandle dereferences a compiled entry point's handle against
// table and awaits its result, the same resolve-then-await pattern
// every arrayops/control primitive uses for its own operands.
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

// Start runs the interactive loop over stdin/stdout, printing a prompt
// only when stdin is a real terminal (github.com/mattn/go-isatty),
// mirroring how the teacher's own CLI layer elsewhere checks isatty
// before deciding whether to decorate its output.
func Start(reg *registry.Registry) {
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Println("phylanx REPL | type 'exit' to quit")
	}

	sess := NewSession(reg)
	in := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		if interactive {
			fmt.Print(">>> ")
		}
		if !in.Scan() {
			break
		}
		line := in.Text()
		if line == "exit" {
			break
		}
		if line == "" {
			continue
		}

		out, err := sess.Eval(ctx, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
	if err := in.Err(); err != nil && err != io.EOF {
		fmt.Fprintln(os.Stderr, err)
	}
}
