package primitive

import (
	"fmt"
	"strconv"
	"strings"
)

// Name is the hierarchical identity of a primitive node:
//
//	/phylanx[$loc]/kind$seq[$instance]/compile_id$tag1[$tag2]
//
// It uniquely locates the node within the program, encodes its
// originating source position (via CompileID/Tag1/Tag2), and survives
// serialization (spec.md §3).
type Name struct {
	Locality  int
	HasLoc    bool
	Kind      string
	Seq       int
	Instance  string
	HasInst   bool
	CompileID int
	Tag1      int
	Tag2      int
	HasTag2   bool
}

// String renders the canonical name form.
func (n Name) String() string {
	var b strings.Builder
	b.WriteString("/phylanx")
	if n.HasLoc {
		fmt.Fprintf(&b, "$%d", n.Locality)
	}
	b.WriteString("/")
	fmt.Fprintf(&b, "%s$%d", n.Kind, n.Seq)
	if n.HasInst {
		fmt.Fprintf(&b, "$%s", n.Instance)
	}
	b.WriteString("/")
	fmt.Fprintf(&b, "%d$%d", n.CompileID, n.Tag1)
	if n.HasTag2 {
		fmt.Fprintf(&b, "$%d", n.Tag2)
	}
	return b.String()
}

// ParseName parses the canonical form back into a Name, the round-trip
// required by the Name-uniqueness testable property (spec.md §8):
// parsing compose(parse(n)) is the identity.
func ParseName(s string) (Name, error) {
	s = strings.TrimPrefix(s, "/phylanx")
	parts := strings.Split(strings.TrimPrefix(s, "/"), "/")
	var n Name
	if len(parts) != 2 && len(parts) != 3 {
		return Name{}, fmt.Errorf("malformed primitive name %q", s)
	}
	idx := 0
	if len(parts) == 3 {
		// locality segment is embedded as "$N" directly following
		// "/phylanx" with no separating slash in String(); ParseName
		// also accepts it pre-split for round-trip symmetry when the
		// caller has already separated it.
		if strings.HasPrefix(parts[0], "$") {
			loc, err := strconv.Atoi(parts[0][1:])
			if err != nil {
				return Name{}, err
			}
			n.Locality = loc
			n.HasLoc = true
			idx = 1
		}
	}
	kindSeq := parts[idx]
	idx++
	compileTag := parts[idx]

	ksParts := strings.Split(kindSeq, "$")
	if len(ksParts) < 2 {
		return Name{}, fmt.Errorf("malformed kind/seq segment %q", kindSeq)
	}
	n.Kind = ksParts[0]
	seq, err := strconv.Atoi(ksParts[1])
	if err != nil {
		return Name{}, err
	}
	n.Seq = seq
	if len(ksParts) >= 3 {
		n.Instance = ksParts[2]
		n.HasInst = true
	}

	ctParts := strings.Split(compileTag, "$")
	if len(ctParts) < 2 {
		return Name{}, fmt.Errorf("malformed compile_id/tag segment %q", compileTag)
	}
	cid, err := strconv.Atoi(ctParts[0])
	if err != nil {
		return Name{}, err
	}
	tag1, err := strconv.Atoi(ctParts[1])
	if err != nil {
		return Name{}, err
	}
	n.CompileID = cid
	n.Tag1 = tag1
	if len(ctParts) >= 3 {
		tag2, err := strconv.Atoi(ctParts[2])
		if err != nil {
			return Name{}, err
		}
		n.Tag2 = tag2
		n.HasTag2 = true
	}
	return n, nil
}

// NameGenerator hands out globally-unique, monotonically increasing
// (compile_id, tag1, tag2) triples during compilation. A name issued
// during compilation is globally unique across all localities
// participating in a program (spec.md §3 invariant); the generator is
// therefore owned by one compiler.Compiler for its whole lifetime (all
// of its Compile calls), never shared across concurrent compiles.
type NameGenerator struct {
	next int
}

// Next returns the next (compileID, tag1) pair; tag2 is left unset
// (HasTag2 false) unless the caller explicitly disambiguates a name
// collision at the same source position (e.g. two lowered nodes from
// one AST node, such as a literal's implicit constant wrapper).
func (g *NameGenerator) Next(kind string) Name {
	g.next++
	return Name{
		Kind:      kind,
		Seq:       g.next,
		CompileID: g.next,
		Tag1:      0,
	}
}

// NextTagged is like Next but assigns an explicit tag1/tag2 pair, used
// when lowering produces more than one node for a single AST position.
func (g *NameGenerator) NextTagged(kind string, tag1, tag2 int) Name {
	g.next++
	return Name{
		Kind:      kind,
		Seq:       g.next,
		CompileID: g.next,
		Tag1:      tag1,
		Tag2:      tag2,
		HasTag2:   true,
	}
}
