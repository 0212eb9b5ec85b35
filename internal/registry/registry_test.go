package registry_test

import (
	"testing"

	"phylanx/internal/primitive"
	"phylanx/internal/registry"
	"phylanx/internal/value"
)

func TestTemplateMatchPlainArity(t *testing.T) {
	e := &registry.Entry{Name: "add", Templates: []registry.Template{{MinArgs: 2}}}
	if _, err := e.Match([]value.Value{value.Int64(1)}); err == nil {
		t.Error("expected an arity error for 1 argument against MinArgs:2")
	}
	out, err := e.Match([]value.Value{value.Int64(1), value.Int64(2)})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d args, want 2", len(out))
	}
}

func TestTemplateMatchKeywordDefault(t *testing.T) {
	e := &registry.Entry{
		Name: "if",
		Templates: []registry.Template{
			{MinArgs: 2, KeywordArgs: []registry.KeywordArg{{Name: "else", Default: value.Nil()}}},
		},
	}

	// Caller omits the else branch: the default fills the third slot.
	out, err := e.Match([]value.Value{value.Bool(true), value.Int64(1)})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d args, want 3 (else defaulted)", len(out))
	}
	if !out[2].IsNil() {
		t.Errorf("defaulted else = %s, want nil", out[2].GoString())
	}

	// Caller supplies all three: nothing is defaulted.
	out, err = e.Match([]value.Value{value.Bool(true), value.Int64(1), value.Int64(2)})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d args, want 3", len(out))
	}
	if n, ok := out[2].Int64(); !ok || n != 2 {
		t.Errorf("explicit else = %s, want 2", out[2].GoString())
	}
}

func TestTemplateMatchListExpand(t *testing.T) {
	e := &registry.Entry{Name: "list", Templates: []registry.Template{{MinArgs: 0, ListExpand: true}}}

	out, err := e.Match([]value.Value{value.Int64(1), value.Int64(2), value.Int64(3)})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d args, want 1 (all collected into a single list)", len(out))
	}
	items, ok := out[0].List()
	if !ok || len(items) != 3 {
		t.Fatalf("collected list = %s, want a 3-element list", out[0].GoString())
	}
}

func TestTemplateMatchNoTemplateFits(t *testing.T) {
	e := &registry.Entry{Name: "while", Templates: []registry.Template{{MinArgs: 2}}}
	if _, err := e.Match([]value.Value{value.Int64(1), value.Int64(2), value.Int64(3)}); err == nil {
		t.Error("expected an arity error when too many args are given and no template tolerates it")
	}
}

func TestNewBuiltinsRegistersCorePrimitives(t *testing.T) {
	reg := registry.NewBuiltins(primitive.NewTable())
	for _, name := range []string{
		"block", "list", "if", "while", "for", "map", "filter",
		"add", "sub", "mul", "div", "dot", "one_hot", "hstack",
		"dot_d", "all_gather_d", "file_read", "random", "sql_read_mysql",
	} {
		if _, ok := reg.Lookup(name); !ok {
			t.Errorf("NewBuiltins: expected %q to be registered", name)
		}
	}
	if _, ok := reg.Lookup("no_such_primitive"); ok {
		t.Error("Lookup unexpectedly found an unregistered name")
	}
}
