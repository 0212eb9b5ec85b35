package repl_test

import (
	"context"
	"testing"

	"phylanx/internal/primitive"
	"phylanx/internal/registry"
	"phylanx/internal/repl"
)

func TestEvalReturnsLastExpressionValue(t *testing.T) {
	sess := repl.NewSession(registry.NewBuiltins(primitive.NewTable()))
	out, err := sess.Eval(context.Background(), "add(1, 1)")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if out == "" {
		t.Fatal("Eval returned an empty rendering for a non-nil result")
	}
}

// TestEvalPersistsDefinitionsAcrossLines is the REPL's whole reason for
// existing: a `define` on one line must still be visible, by name at
// compile time and by value at eval time, to a later line.
func TestEvalPersistsDefinitionsAcrossLines(t *testing.T) {
	sess := repl.NewSession(registry.NewBuiltins(primitive.NewTable()))
	ctx := context.Background()

	if _, err := sess.Eval(ctx, "define(x, 41)"); err != nil {
		t.Fatalf("Eval (define): %v", err)
	}
	out, err := sess.Eval(ctx, "add(x, 1)")
	if err != nil {
		t.Fatalf("Eval (reference x): %v", err)
	}
	if out != "42" {
		t.Errorf("add(x, 1) after define(x, 41) = %q, want %q", out, "42")
	}
}

func TestEvalPersistsFunctionDefinitionsAcrossLines(t *testing.T) {
	sess := repl.NewSession(registry.NewBuiltins(primitive.NewTable()))
	ctx := context.Background()

	if _, err := sess.Eval(ctx, "define(inc, lambda(a, add(a, 1)))"); err != nil {
		t.Fatalf("Eval (define function): %v", err)
	}
	out, err := sess.Eval(ctx, "inc(10)")
	if err != nil {
		t.Fatalf("Eval (call inc): %v", err)
	}
	if out != "11" {
		t.Errorf("inc(10) = %q, want %q", out, "11")
	}
}

func TestEvalReferencingUnboundNameErrors(t *testing.T) {
	sess := repl.NewSession(registry.NewBuiltins(primitive.NewTable()))
	if _, err := sess.Eval(context.Background(), "never_defined"); err == nil {
		t.Error("expected an error referencing a name no prior line defined")
	}
}

func TestEvalEachSessionIsIndependent(t *testing.T) {
	ctx := context.Background()
	a := repl.NewSession(registry.NewBuiltins(primitive.NewTable()))
	b := repl.NewSession(registry.NewBuiltins(primitive.NewTable()))

	if _, err := a.Eval(ctx, "define(x, 1)"); err != nil {
		t.Fatalf("Eval on session a: %v", err)
	}
	if _, err := b.Eval(ctx, "x"); err == nil {
		t.Error("a define() on session a should not leak into session b")
	}
}
