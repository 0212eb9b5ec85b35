package primitive

import "strings"

// Topology is the tree returned by Node.Topology: this node plus its
// transitively reachable children, excluding cycles (spec.md §4.2).
// Used for visualisation/debugging and serialized in Newick form on
// request.
type Topology struct {
	Name     string
	Children []Topology
}

// Newick renders the topology tree in Newick format, e.g.
// "(child1,child2)name;" for an interior node and "name" for a leaf.
func (t Topology) Newick() string {
	return t.newick() + ";"
}

func (t Topology) newick() string {
	if len(t.Children) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Children))
	for i, c := range t.Children {
		parts[i] = c.newick()
	}
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(strings.Join(parts, ","))
	b.WriteByte(')')
	b.WriteString(t.Name)
	return b.String()
}

// BuildTopology walks operands recursively, consulting a Table to
// resolve handle operands into their owning Node, and using
// functionsSeen to cut cycles introduced by recursive function
// references (target_reference primitives resolve lazily, so a naive
// walk would recurse forever on `define(f, a, f(a-1))`-style bodies).
func BuildTopology(n Node, table *Table, functionsSeen map[string]bool) Topology {
	if functionsSeen == nil {
		functionsSeen = make(map[string]bool)
	}
	name := n.Name().String()
	if functionsSeen[name] {
		return Topology{Name: name}
	}
	if n.Name().Kind == "function" || n.Name().Kind == "lambda" {
		functionsSeen[name] = true
	}

	var children []Topology
	for _, op := range n.Operands() {
		h, ok := op.Handle()
		if !ok {
			continue
		}
		child, ok := table.Get(h.Name)
		if !ok {
			children = append(children, Topology{Name: h.Name})
			continue
		}
		children = append(children, BuildTopology(child, table, functionsSeen))
	}
	return Topology{Name: name, Children: children}
}
