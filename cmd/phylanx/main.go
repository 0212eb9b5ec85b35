// cmd/phylanx/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"phylanx/internal/compiler"
	"phylanx/internal/errors"
	"phylanx/internal/primitive"
	"phylanx/internal/registry"
	"phylanx/internal/repl"
	"phylanx/internal/value"
)

const version = "0.1.0"

// commandAliases mirrors the teacher's short-form command aliases,
// trimmed to the subcommands PhySL actually has.
var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"b": "build",
	"t": "test",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run dispatches one CLI invocation and returns its exit code. Split
// out from main so cmd/phylanx's own tests can drive it in-process via
// github.com/rogpeppe/go-internal/testscript's RunMain, the same way
// the teacher's own test tooling exercises whole-process behavior
// without actually forking a binary per case.
func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 0
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		usage()
	case "--version", "-v", "version":
		fmt.Println("phylanx " + version)
	case "repl":
		repl.Start(registry.NewBuiltins(primitive.NewTable()))
	case "run":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: phylanx run <file.physl>")
			return 1
		}
		return runFile(args[1])
	case "build":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: phylanx build <file.physl>")
			return 1
		}
		return buildFile(args[1])
	case "test":
		path := "."
		if len(args) > 1 {
			path = args[1]
		}
		return runTests(path)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		usage()
		return 1
	}
	return 0
}

func usage() {
	fmt.Println(`phylanx — PhySL array-programming runtime

Usage:
  phylanx run <file>     compile and evaluate a .physl source file
  phylanx build <file>   compile-check a .physl source file without evaluating it
  phylanx repl           start an interactive session
  phylanx test [path]    run every .physl script under path, reporting pass/fail
  phylanx version        print the version
  phylanx help           print this message

PhySL has no compiled on-disk artifact: "build" only reports whether the
source compiles, the same guarantee an embedding host gets from
compiler.CompileSource.`)
}

// newRegistry builds a fresh primitive table each invocation; one
// process run of `phylanx run`/`build`/`test` never needs to share a
// table across separately loaded programs the way the REPL's single
// long-lived compiler does.
func newRegistry() *registry.Registry {
	return registry.NewBuiltins(primitive.NewTable())
}

func readSource(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	return string(src), nil
}

func runFile(path string) int {
	src, err := readSource(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	prog, err := compiler.CompileSource(src, newRegistry())
	if err != nil {
		reportError(path, err)
		return 1
	}

	ctx := context.Background()
	ec := primitive.NewEvalContext(prog.Scratchpad)
	var last value.Value
	for _, h := range prog.EntryPoints {
		v, err := evalHandle(ctx, h, prog.Table, ec)
		if err != nil {
			reportError(path, err)
			return 1
		}
		last = v
	}
	if !last.IsNil() {
		fmt.Println(last.GoString())
	}
	return 0
}

func buildFile(path string) int {
	src, err := readSource(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if _, err := compiler.CompileSource(src, newRegistry()); err != nil {
		reportError(path, err)
		return 1
	}
	fmt.Printf("%s: compiles cleanly\n", path)
	return 0
}

func reportError(path string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
}

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

// runTests discovers every *.physl file under root, compiles and
// evaluates each as its own program, and reports pass/fail — a single
// file "passes" if it compiles and evaluates without an
// errors.PhylanxError of kind AssertionFailure (or any other error)
// escaping to the top level. Adapted from the teacher's
// internal/testing.TestRunner/TestResult shape, trimmed to PhySL's one
// real test primitive (assert_condition); there is no suite/before-each
// DSL to carry over since spec.md names no such construct.
func runTests(root string) int {
	var files []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(p, ".physl") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "walking %s: %v\n", root, err)
		return 1
	}
	if len(files) == 0 {
		fmt.Printf("no .physl files found under %s\n", root)
		return 0
	}

	passed, failed := 0, 0
	start := time.Now()
	for _, f := range files {
		t0 := time.Now()
		src, err := readSource(f)
		if err != nil {
			fmt.Println("FAIL", f, err)
			failed++
			continue
		}
		ctx := context.Background()
		ok := func() bool {
			prog, err := compiler.CompileSource(src, newRegistry())
			if err != nil {
				fmt.Printf("FAIL %s (%v): %v\n", f, time.Since(t0), err)
				return false
			}
			ec := primitive.NewEvalContext(prog.Scratchpad)
			for _, h := range prog.EntryPoints {
				if _, err := evalHandle(ctx, h, prog.Table, ec); err != nil {
					fmt.Printf("FAIL %s (%v): %v\n", f, time.Since(t0), err)
					return false
				}
			}
			return true
		}()
		if ok {
			fmt.Printf("PASS %s (%v)\n", f, time.Since(t0))
			passed++
		} else {
			failed++
		}
	}
	fmt.Printf("\n%d passed, %d failed in %v\n", passed, failed, time.Since(start))
	if failed > 0 {
		return 1
	}
	return 0
}
