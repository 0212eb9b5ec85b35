package primitive

import "sync"

// Table is the per-program map from a primitive's name to its live
// instance, letting a value.Handle be resolved to the Node it
// references at eval time. Adapted from the teacher's
// internal/module.ModuleLoader cache (a sync.RWMutex-guarded map
// written once per entry, read many times during evaluation).
type Table struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{nodes: make(map[string]Node)}
}

// Register installs n under its own name. The compiler calls this once
// per lowered AST node; the name uniqueness invariant (spec.md §3)
// means a second Register under the same name indicates a compiler bug,
// so it replaces rather than erroring — primitives are destroyed when
// their parent's last holding value drops, and a legitimate re-register
// only happens after that (e.g. hot-reloading a snippet).
func (t *Table) Register(n Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[n.Name().String()] = n
}

// Get resolves a handle name to its live Node.
func (t *Table) Get(name string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[name]
	return n, ok
}

// Remove destroys the table's reference to name (primitive lifecycle:
// destroyed when the last holding value drops).
func (t *Table) Remove(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, name)
}
