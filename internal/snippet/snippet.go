// Package snippet holds named, compiled PhySL programs in memory and,
// optionally, the source text they were compiled from on disk. Adapted
// from the teacher's internal/module.ModuleLoader (a name-keyed,
// mutex-guarded cache that checks the cache, then loads-and-compiles on
// a miss, then stores the result) but generalized from file-backed
// Sentra modules to PhySL snippets that may arrive as raw source text
// from any caller (embedder, REPL, CLI) rather than only from disk.
package snippet

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"phylanx/internal/compiler"
	"phylanx/internal/errors"
	"phylanx/internal/registry"
)

// Registry holds compiled compiler.Programs by name, compiling lazily
// on first reference and reusing the result on every later lookup —
// the same check-cache-then-compile-then-cache flow as the teacher's
// ModuleLoader.LoadModule, minus its search-path/builtin-module
// machinery (PhySL has no module namespaces; spec.md §4.1 is a single
// flat pattern table, so there is nothing analogous to "import math").
type Registry struct {
	reg   *registry.Registry
	mu    sync.RWMutex
	cache map[string]*compiler.Program
	srcs  map[string]string
	store *Store
}

// New returns a Registry that compiles against reg and caches results
// in memory only.
func New(reg *registry.Registry) *Registry {
	return &Registry{reg: reg, cache: make(map[string]*compiler.Program)}
}

// NewWithStore returns a Registry backed by a persistence Store: a
// Load miss first asks the store for previously saved source text
// before compiling, and a successful Put also persists the source.
func NewWithStore(reg *registry.Registry, store *Store) *Registry {
	return &Registry{reg: reg, cache: make(map[string]*compiler.Program), store: store}
}

// Load returns the compiled Program registered under name, compiling
// it from src on first reference. A second Load with a different src
// under the same name recompiles and replaces the cached entry — a
// snippet name is a cache key, not an immutability promise.
func (r *Registry) Load(name, src string) (*compiler.Program, error) {
	r.mu.RLock()
	if prog, ok := r.cache[name]; ok && r.srcs[name] == src {
		r.mu.RUnlock()
		return prog, nil
	}
	r.mu.RUnlock()

	prog, err := r.compile(src)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = prog
	if r.srcs == nil {
		r.srcs = make(map[string]string)
	}
	r.srcs[name] = src
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Put(name, src); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

// Get returns the already-cached Program for name, if any. It does not
// consult the persistence Store — callers that want to resume a saved
// snippet must call Restore first.
func (r *Registry) Get(name string) (*compiler.Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prog, ok := r.cache[name]
	return prog, ok
}

// Restore loads name's source text back from the persistence Store (if
// one is configured) and compiles it into the in-memory cache, as when
// resuming a session against snippets saved by an earlier process.
func (r *Registry) Restore(name string) (*compiler.Program, error) {
	if r.store == nil {
		return nil, errors.NewUserError("snippet: no persistence store configured", "", 0, 0)
	}
	src, ok, err := r.store.Get(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNameError(name, "", 0, 0)
	}
	return r.Load(name, src)
}

// Forget drops name from the in-memory cache; it leaves any persisted
// source text in the Store untouched.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, name)
}

func (r *Registry) compile(src string) (*compiler.Program, error) {
	return compiler.CompileSource(src, r.reg)
}

// Store persists snippet source text — only source text, never a
// compiled Program or primitive graph — under a name, so a later
// process can Restore and recompile it itself rather than trusting a
// serialized graph from disk. Backed by github.com/mattn/go-sqlite3,
// the same embedded-database driver the teacher's internal/database
// wires up for its sqlite3 connection string case.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if necessary) a sqlite3-backed snippet
// source store at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.NewUserError("snippet: opening store: "+err.Error(), path, 0, 0)
	}
	const schema = `CREATE TABLE IF NOT EXISTS snippets (
		name TEXT PRIMARY KEY,
		source TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewUserError("snippet: preparing store: "+err.Error(), path, 0, 0)
	}
	return &Store{db: db}, nil
}

// Put upserts name's source text.
func (s *Store) Put(name, src string) error {
	_, err := s.db.Exec(
		`INSERT INTO snippets (name, source) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET source = excluded.source`,
		name, src,
	)
	if err != nil {
		return errors.NewUserError("snippet: saving "+name+": "+err.Error(), "", 0, 0)
	}
	return nil
}

// Get returns name's stored source text, if present.
func (s *Store) Get(name string) (string, bool, error) {
	var src string
	err := s.db.QueryRow(`SELECT source FROM snippets WHERE name = ?`, name).Scan(&src)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewUserError("snippet: loading "+name+": "+err.Error(), "", 0, 0)
	}
	return src, true, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
