package graph

import (
	"errors"
	"fmt"
)

// Builder assembles a Graph. Mistakes made while declaring nodes and links
// are collected rather than returned call-by-call, so a topology reads as
// a clean sequence of declarations and Build reports everything at once.
type Builder struct {
	name  string
	nodes []*Node
	index map[string]*Node
	edges []Edge
	errs  []error
}

func NewBuilder(name string) *Builder {
	return &Builder{
		name:  name,
		index: make(map[string]*Node),
	}
}

// Prop is a single node property for AddNode.
type Prop struct {
	Key   string
	Value any
}

// P is shorthand for a Prop literal.
func P(key string, value any) Prop { return Prop{Key: key, Value: value} }

// AddNode declares a node and returns its name so call sites can link it
// without repeating string literals.
func (b *Builder) AddNode(name string, kind Kind, props ...Prop) string {
	if name == "" {
		b.errs = append(b.errs, fmt.Errorf("node of kind %q has no name", kind))
		return name
	}
	if _, dup := b.index[name]; dup {
		b.errs = append(b.errs, fmt.Errorf("duplicate node name %q", name))
		return name
	}
	n := &Node{Name: name, Kind: kind}
	if len(props) > 0 {
		n.Props = make(map[string]any, len(props))
		for _, p := range props {
			if _, dup := n.Props[p.Key]; dup {
				b.errs = append(b.errs, fmt.Errorf("node %q: property %q set twice", name, p.Key))
				continue
			}
			n.Props[p.Key] = p.Value
		}
	}
	b.nodes = append(b.nodes, n)
	b.index[name] = n
	return name
}

// Link chains nodes in order using their default pads, mirroring how a
// linear stretch of pipeline is written down.
func (b *Builder) Link(names ...string) *Builder {
	if len(names) < 2 {
		b.errs = append(b.errs, errors.New("link needs at least two nodes"))
		return b
	}
	for i := 0; i < len(names)-1; i++ {
		b.edges = append(b.edges, Edge{From: names[i], To: names[i+1]})
	}
	return b
}

// LinkPads links one specific pad pair. Empty pad names fall back to the
// default pad on that side.
func (b *Builder) LinkPads(from, fromPad, to, toPad string) *Builder {
	b.edges = append(b.edges, Edge{From: from, FromPad: fromPad, To: to, ToPad: toPad})
	return b
}

// Build validates the accumulated topology and returns it. On failure the
// returned error is a *ConstructionError carrying every problem found, both
// the ones collected during declaration and the structural ones.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		name:  b.name,
		nodes: b.nodes,
		index: b.index,
		edges: b.edges,
	}
	errs := append([]error{}, b.errs...)
	errs = append(errs, g.validate()...)
	if len(errs) > 0 {
		return nil, &ConstructionError{Graph: b.name, Errs: errs}
	}
	return g, nil
}
