package snippet_test

import (
	"path/filepath"
	"testing"

	"phylanx/internal/primitive"
	"phylanx/internal/registry"
	"phylanx/internal/snippet"
)

func TestLoadCachesAndReusesCompiledProgram(t *testing.T) {
	reg := registry.NewBuiltins(primitive.NewTable())
	r := snippet.New(reg)

	prog1, err := r.Load("greet", "block(define(x, 1), x)")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	prog2, err := r.Load("greet", "block(define(x, 1), x)")
	if err != nil {
		t.Fatalf("Load (cached): %v", err)
	}
	if prog1 != prog2 {
		t.Error("a second Load under the same name should return the cached Program, not recompile")
	}

	got, ok := r.Get("greet")
	if !ok || got != prog1 {
		t.Error("Get should return the same cached Program Load populated")
	}
}

func TestLoadWithDifferentSourceRecompiles(t *testing.T) {
	reg := registry.NewBuiltins(primitive.NewTable())
	r := snippet.New(reg)

	first, err := r.Load("s", "block(define(x, 1), x)")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	second, err := r.Load("s", "block(define(x, 2), x)")
	if err != nil {
		t.Fatalf("Load (recompile): %v", err)
	}
	if first == second {
		t.Error("Load with different source under the same name should recompile, not reuse the old Program")
	}
}

func TestForgetDropsFromCache(t *testing.T) {
	reg := registry.NewBuiltins(primitive.NewTable())
	r := snippet.New(reg)
	if _, err := r.Load("s", "block(define(x, 1), x)"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r.Forget("s")
	if _, ok := r.Get("s"); ok {
		t.Error("Get should miss after Forget")
	}
}

func TestLoadCompileErrorIsNotCached(t *testing.T) {
	reg := registry.NewBuiltins(primitive.NewTable())
	r := snippet.New(reg)
	if _, err := r.Load("bad", "block(define(x, 1), y)"); err == nil {
		t.Fatal("expected a compile error for an unbound identifier")
	}
	if _, ok := r.Get("bad"); ok {
		t.Error("a failed Load should not populate the cache")
	}
}

func TestStoreRoundTripsThroughRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippets.db")
	store, err := snippet.OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	reg := registry.NewBuiltins(primitive.NewTable())
	r := snippet.NewWithStore(reg, store)
	if _, err := r.Load("persisted", "block(define(x, 9), x)"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// A fresh Registry backed by the same store simulates resuming in a
	// new process: the snippet must not be in its in-memory cache yet.
	r2 := snippet.NewWithStore(registry.NewBuiltins(primitive.NewTable()), store)
	if _, ok := r2.Get("persisted"); ok {
		t.Fatal("a fresh Registry should not already have the snippet cached")
	}
	prog, err := r2.Restore("persisted")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if prog == nil {
		t.Fatal("Restore returned a nil Program")
	}
	if _, ok := r2.Get("persisted"); !ok {
		t.Error("Restore should populate the in-memory cache")
	}
}

func TestRestoreWithoutStoreErrors(t *testing.T) {
	r := snippet.New(registry.NewBuiltins(primitive.NewTable()))
	if _, err := r.Restore("anything"); err == nil {
		t.Error("expected Restore to fail when no persistence Store is configured")
	}
}

func TestStoreGetMissingNameReportsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippets.db")
	store, err := snippet.OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	_, ok, err := store.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get should report ok=false for a name never Put")
	}
}
