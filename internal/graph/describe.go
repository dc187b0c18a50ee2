package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Describe renders the graph for logs and error reports: every node with
// its kind and properties, then every link. The output is deterministic.
func (g *Graph) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %q: %d nodes, %d links\n", g.name, len(g.nodes), len(g.edges))
	for _, n := range g.nodes {
		fmt.Fprintf(&sb, "  [%s] %s%s\n", n.Kind, n.Name, formatProps(n.Props))
	}
	for _, e := range g.edges {
		fmt.Fprintf(&sb, "  %v\n", e)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatProps(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return " {" + strings.Join(parts, " ") + "}"
}
