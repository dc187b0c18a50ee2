package graph

import (
	"fmt"
	"strings"
)

// ConstructionError reports every structural problem found in a topology.
type ConstructionError struct {
	Graph string
	Errs  []error
}

func (e *ConstructionError) Error() string {
	if len(e.Errs) == 1 {
		return fmt.Sprintf("graph %q: %v", e.Graph, e.Errs[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %q: %d problems:", e.Graph, len(e.Errs))
	for _, err := range e.Errs {
		sb.WriteString("\n  - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

func (e *ConstructionError) Unwrap() []error { return e.Errs }

// validate runs the structural checks and, when the graph is acyclic,
// records the topological build order. All problems are returned, not just
// the first.
func (g *Graph) validate() []error {
	var errs []error

	if len(g.nodes) == 0 {
		return []error{fmt.Errorf("graph has no nodes")}
	}

	for _, n := range g.nodes {
		ki, known := Lookup(n.Kind)
		if !known {
			errs = append(errs, fmt.Errorf("node %q: unknown kind %q", n.Name, n.Kind))
			continue
		}
		for key := range n.Props {
			if !ki.knowsProp(key) {
				errs = append(errs, fmt.Errorf("node %q: kind %q has no property %q", n.Name, n.Kind, key))
			}
		}
	}

	// Edge endpoints must exist before arity or ordering mean anything.
	brokenEdge := false
	for _, e := range g.edges {
		if _, ok := g.index[e.From]; !ok {
			errs = append(errs, fmt.Errorf("edge %v: source node %q does not exist", e, e.From))
			brokenEdge = true
		}
		if _, ok := g.index[e.To]; !ok {
			errs = append(errs, fmt.Errorf("edge %v: target node %q does not exist", e, e.To))
			brokenEdge = true
		}
	}
	if brokenEdge {
		return errs
	}

	errs = append(errs, g.checkPads()...)
	errs = append(errs, g.checkTerminals()...)
	orderErrs := g.computeOrder()
	errs = append(errs, orderErrs...)
	return errs
}

// checkTerminals enforces the overall shape: exactly one node produces
// data from nothing and exactly one consumes it terminally. Together with
// the cycle check this also rules out disconnected pieces, since every
// acyclic component contributes at least one source.
func (g *Graph) checkTerminals() []error {
	inCount := map[string]int{}
	outCount := map[string]int{}
	for _, e := range g.edges {
		outCount[e.From]++
		inCount[e.To]++
	}

	var sources, sinks []string
	for _, n := range g.nodes {
		if inCount[n.Name] == 0 {
			sources = append(sources, n.Name)
		}
		if outCount[n.Name] == 0 {
			sinks = append(sinks, n.Name)
		}
	}

	var errs []error
	if len(sources) != 1 {
		errs = append(errs, fmt.Errorf("graph needs exactly one source node, found %d (%s)",
			len(sources), strings.Join(sources, ", ")))
	}
	if len(sinks) != 1 {
		errs = append(errs, fmt.Errorf("graph needs exactly one terminal sink, found %d (%s)",
			len(sinks), strings.Join(sinks, ", ")))
	}
	return errs
}

// checkPads verifies per-node pad arity against the catalog and that no
// named pad is linked twice.
func (g *Graph) checkPads() []error {
	var errs []error

	type padUse struct {
		node, pad string
	}
	usedOut := map[padUse]bool{}
	usedIn := map[padUse]bool{}
	inCount := map[string]int{}
	outCount := map[string]int{}

	for _, e := range g.edges {
		outCount[e.From]++
		inCount[e.To]++
		if e.FromPad != "" {
			u := padUse{e.From, e.FromPad}
			if usedOut[u] {
				errs = append(errs, fmt.Errorf("output pad %s.%s linked twice", e.From, e.FromPad))
			}
			usedOut[u] = true
		}
		if e.ToPad != "" {
			u := padUse{e.To, e.ToPad}
			if usedIn[u] {
				errs = append(errs, fmt.Errorf("input pad %s.%s linked twice", e.To, e.ToPad))
			}
			usedIn[u] = true
		}
	}

	for _, n := range g.nodes {
		ki, known := Lookup(n.Kind)
		if !known {
			continue
		}
		if in := inCount[n.Name]; !ki.In.contains(in) {
			errs = append(errs, fmt.Errorf("node %q (%s): %d input links, kind allows %s",
				n.Name, n.Kind, in, ki.In))
		}
		if out := outCount[n.Name]; !ki.Out.contains(out) {
			errs = append(errs, fmt.Errorf("node %q (%s): %d output links, kind allows %s",
				n.Name, n.Kind, out, ki.Out))
		}
	}
	return errs
}

// computeOrder fills g.order with a Kahn topological sort. Ties resolve in
// node insertion order so the build order is stable run to run. Nodes left
// over after the sort sit on a cycle and are reported by name.
func (g *Graph) computeOrder() []error {
	indeg := make(map[string]int, len(g.nodes))
	succ := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n.Name] = 0
	}
	for _, e := range g.edges {
		indeg[e.To]++
		succ[e.From] = append(succ[e.From], e.To)
	}

	var ready []string
	for _, n := range g.nodes {
		if indeg[n.Name] == 0 {
			ready = append(ready, n.Name)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, next := range succ[name] {
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var cyclic []string
		for _, n := range g.nodes {
			if indeg[n.Name] > 0 {
				cyclic = append(cyclic, n.Name)
			}
		}
		return []error{fmt.Errorf("cycle through nodes %s", strings.Join(cyclic, ", "))}
	}

	g.order = order
	return nil
}
