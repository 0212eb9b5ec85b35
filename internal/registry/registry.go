// Package registry implements the pattern registry of spec.md §4.1: a
// process-wide, write-once-at-startup map from a primitive's surface
// name to the call-shape templates and factory that build its graph
// node. Adapted from the teacher's internal/module package-registration
// map (a name -> constructor table populated by init-time Register
// calls) but keyed on PhySL call patterns instead of Sentra stdlib
// module names.
package registry

import (
	"fmt"

	"phylanx/internal/primitive"
	"phylanx/internal/value"
)

// Factory builds the primitive node for one matched call, given its
// freshly allocated Name and the (already-lowered, not yet evaluated)
// operand handles. Keyword defaults named by a Template's KeywordArgs
// have already been appended positionally by Match before Factory runs.
type Factory func(name primitive.Name, args []value.Value) (primitive.Node, error)

// KeywordArg is one `__arg(name, default)` slot in a template: a
// trailing positional argument that may be omitted by the caller, in
// which case Default is used.
type KeywordArg struct {
	Name    string
	Default value.Value
}

// Template is one call-shape a pattern may match: exactly MinArgs..len
// (required positional args) followed by zero or more KeywordArgs
// (each individually optional, matched left to right), and optionally a
// trailing __list expansion collecting any further arguments into a
// single list argument appended after the keyword args (spec.md §4.1,
// §4.3).
type Template struct {
	MinArgs     int
	KeywordArgs []KeywordArg
	ListExpand  bool
}

func (t Template) maxPositional() int { return t.MinArgs + len(t.KeywordArgs) }

// matches reports whether callArgc satisfies this template.
func (t Template) matches(callArgc int) bool {
	if callArgc < t.MinArgs {
		return false
	}
	if t.ListExpand {
		return true
	}
	return callArgc <= t.maxPositional()
}

// Entry is one registered primitive: its surface name, candidate
// templates (tried in registration order, first match wins), factory,
// and doc string.
type Entry struct {
	Name      string
	Templates []Template
	Factory   Factory
	Doc       string
	// Raw marks a primitive whose arguments are not lowered expressions
	// but literal AST data. No built-in entry sets it and the compiler
	// does not read it: every registered primitive's arguments are
	// lowered like any other call's.
	Raw bool
}

// Registry is the process-wide pattern table: written once at startup,
// read-only thereafter (spec.md §5 "Shared-resource policy").
type Registry struct {
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register installs e under e.Name. Called only during startup
// (package init / main wiring); a second Register for the same name
// overwrites, matching the teacher's module-registration idiom of
// letting the last-loaded plugin win.
func (r *Registry) Register(e *Entry) {
	r.entries[e.Name] = e
}

// Lookup returns the entry for name, if any.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Match resolves a call's argument count against e's templates in
// registration order, padding any unsupplied keyword args with their
// declared defaults, and returns the fully-expanded argument list ready
// to hand to Factory. __list expansion wraps every argument past the
// declared positional/keyword prefix into a single value.List appended
// at the end.
func (e *Entry) Match(args []value.Value) ([]value.Value, error) {
	for _, t := range e.Templates {
		if !t.matches(len(args)) {
			continue
		}
		out := make([]value.Value, 0, t.maxPositional()+1)
		prefix := t.MinArgs
		if !t.ListExpand {
			// Non-list templates must also tolerate fewer args than
			// maxPositional (keyword defaults fill the gap), so cap
			// prefix consumption at len(args).
		}
		consumed := 0
		for i := 0; i < t.MinArgs; i++ {
			out = append(out, args[i])
			consumed++
		}
		for _, kw := range t.KeywordArgs {
			if consumed < len(args) && (!t.ListExpand || consumed < prefix+len(t.KeywordArgs)) {
				out = append(out, args[consumed])
				consumed++
			} else {
				out = append(out, kw.Default)
			}
		}
		if t.ListExpand {
			rest := append([]value.Value{}, args[consumed:]...)
			out = append(out, value.List(rest))
		}
		return out, nil
	}
	return nil, fmt.Errorf("arity-error: %s accepts no template matching %d argument(s)", e.Name, len(args))
}
