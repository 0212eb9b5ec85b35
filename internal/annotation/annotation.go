// Package annotation implements the serializable metadata tree attached
// to values: locality annotations and tile annotations (spec.md §3).
package annotation

import (
	"fmt"
	"sort"
)

// Annotation is a nested key/value tree. Two annotations are equal iff
// their key/value trees agree, regardless of insertion order (spec.md
// §3). It is intentionally a thin, generic tree rather than a sealed
// struct so that locality and tile annotations (and any future shape)
// can share one serializable representation.
type Annotation struct {
	Name     string
	Value    interface{} // scalar leaf payload, nil for interior nodes
	Children map[string]*Annotation
}

// Leaf builds a terminal annotation node carrying a scalar value.
func Leaf(name string, v interface{}) *Annotation {
	return &Annotation{Name: name, Value: v}
}

// Node builds an interior annotation node with named children.
func Node(name string, children map[string]*Annotation) *Annotation {
	return &Annotation{Name: name, Children: children}
}

// Equal compares two annotation trees structurally; map iteration order
// never affects the result since Go map equality-by-key lookup already
// ignores insertion order.
func (a *Annotation) Equal(b *Annotation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	if a.Value != nil || b.Value != nil {
		if a.Value != b.Value {
			return false
		}
	}
	for k, av := range a.Children {
		bv, ok := b.Children[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// Locality describes which participant produced/owns a value.
type Locality struct {
	LocalityID     int
	NumLocalities  int
}

// ToAnnotation renders a locality descriptor as a generic annotation tree.
func (l Locality) ToAnnotation() *Annotation {
	return Node("locality", map[string]*Annotation{
		"locality_id":    Leaf("locality_id", l.LocalityID),
		"num_localities": Leaf("num_localities", l.NumLocalities),
	})
}

// Span is a half-open interval [Start, Stop) along one array axis.
type Span struct {
	Start, Stop int
}

// Size returns the number of elements spanned; zero for an empty span.
func (s Span) Size() int {
	if s.Stop <= s.Start {
		return 0
	}
	return s.Stop - s.Start
}

// Intersect returns the overlap of two spans along the same axis.
// Per spec.md §4.4, overlap geometry is max(start)..min(stop).
func (s Span) Intersect(o Span) (Span, bool) {
	start := s.Start
	if o.Start > start {
		start = o.Start
	}
	stop := s.Stop
	if o.Stop < stop {
		stop = o.Stop
	}
	if stop <= start {
		return Span{}, false
	}
	return Span{Start: start, Stop: stop}, true
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.Stop)
}

// axisOrder names the labeled axes a tile annotation may use; order of
// entries is irrelevant to equality (spec.md §3), but a fixed name list
// keeps Newick/debug rendering deterministic.
var axisOrder = []string{"rows", "columns", "pages"}

// Tile names each dimension's half-open slab that one locality owns.
// Axes are labeled so that order of entries is irrelevant to equality.
type Tile struct {
	Axes map[string]Span
}

// NewTile builds a tile annotation from axis name to span.
func NewTile(axes map[string]Span) Tile {
	return Tile{Axes: axes}
}

// ToAnnotation renders the tile as a generic annotation tree, nested
// under the "tile" key per spec.md §3's `{"tile", {axis_name, start,
// stop}…}` shape.
func (t Tile) ToAnnotation() *Annotation {
	children := make(map[string]*Annotation, len(t.Axes))
	for axis, span := range t.Axes {
		children[axis] = Node(axis, map[string]*Annotation{
			"start": Leaf("start", span.Start),
			"stop":  Leaf("stop", span.Stop),
		})
	}
	return Node("tile", children)
}

// Equal compares two tile annotations by axis name, independent of the
// order axes were inserted.
func (t Tile) Equal(o Tile) bool {
	if len(t.Axes) != len(o.Axes) {
		return false
	}
	for axis, span := range t.Axes {
		os, ok := o.Axes[axis]
		if !ok || os != span {
			return false
		}
	}
	return true
}

// OrderedAxes returns the tile's axes in the canonical rows/columns/pages
// order (any axis not in that list is appended after, sorted by name for
// determinism), used when spans must be iterated predictably (retile,
// Cannon shifts, Newick rendering).
func (t Tile) OrderedAxes() []string {
	var out []string
	seen := make(map[string]bool, len(t.Axes))
	for _, a := range axisOrder {
		if _, ok := t.Axes[a]; ok {
			out = append(out, a)
			seen[a] = true
		}
	}
	var extra []string
	for a := range t.Axes {
		if !seen[a] {
			extra = append(extra, a)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
