// Package graph defines the typed processing-graph model the pipelines are
// built from: a catalog of node kinds, nodes with properties, and pad-level
// links. Topologies are assembled with Builder and checked by Validate
// before any engine is asked to realize them, so structural mistakes fail
// fast with every problem reported instead of surfacing one at a time
// deep inside a running pipeline.
package graph

import "fmt"

// Kind identifies a catalog entry. Kinds are engine-agnostic: each engine
// maps them onto its own primitives.
type Kind string

const (
	KindFileSource    Kind = "file-source"
	KindDecode        Kind = "decode"
	KindConvert       Kind = "convert"
	KindScale         Kind = "scale"
	KindCaps          Kind = "caps"
	KindQueue         Kind = "queue"
	KindTee           Kind = "tee"
	KindInference     Kind = "inference"
	KindPostprocess   Kind = "postprocess"
	KindMerge         Kind = "merge"
	KindTileCrop      Kind = "tile-crop"
	KindTileAggregate Kind = "tile-aggregate"
	KindOverlay       Kind = "overlay"
	KindEncodeH264    Kind = "encode-h264"
	KindParseH264     Kind = "parse-h264"
	KindMuxMP4        Kind = "mux-mp4"
	KindFileSink      Kind = "file-sink"
	KindDisplaySink   Kind = "display-sink"
	KindFakeSink      Kind = "fake-sink"
)

// PadRange bounds how many pads of one direction a kind accepts.
// Max < 0 means unbounded.
type PadRange struct {
	Min, Max int
}

func (r PadRange) contains(n int) bool {
	if n < r.Min {
		return false
	}
	return r.Max < 0 || n <= r.Max
}

func (r PadRange) String() string {
	if r.Max < 0 {
		return fmt.Sprintf(">=%d", r.Min)
	}
	if r.Min == r.Max {
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("%d..%d", r.Min, r.Max)
}

// KindInfo is one catalog entry: pad arity per direction and the property
// keys the kind understands.
type KindInfo struct {
	Kind  Kind
	In    PadRange
	Out   PadRange
	Props []string
}

func (ki KindInfo) knowsProp(key string) bool {
	for _, p := range ki.Props {
		if p == key {
			return true
		}
	}
	return false
}

func one() PadRange          { return PadRange{Min: 1, Max: 1} }
func none() PadRange         { return PadRange{} }
func exactly(n int) PadRange { return PadRange{Min: n, Max: n} }
func atLeast(n int) PadRange { return PadRange{Min: n, Max: -1} }

var catalog = map[Kind]KindInfo{
	KindFileSource: {Kind: KindFileSource, In: none(), Out: one(),
		Props: []string{"location"}},
	KindDecode:  {Kind: KindDecode, In: one(), Out: one()},
	KindConvert: {Kind: KindConvert, In: one(), Out: one()},
	KindScale:   {Kind: KindScale, In: one(), Out: one()},
	KindCaps: {Kind: KindCaps, In: one(), Out: one(),
		Props: []string{"caps"}},
	KindQueue: {Kind: KindQueue, In: one(), Out: one(),
		Props: []string{"leaky", "max-size-buffers", "max-size-bytes", "max-size-time"}},
	KindTee: {Kind: KindTee, In: one(), Out: atLeast(1)},
	KindInference: {Kind: KindInference, In: one(), Out: one(),
		Props: []string{"hef-path", "batch-size", "nms-score-threshold", "nms-iou-threshold", "output-format-type"}},
	KindPostprocess: {Kind: KindPostprocess, In: one(), Out: one(),
		Props: []string{"so-path", "function-name", "qos"}},
	KindMerge: {Kind: KindMerge, In: exactly(2), Out: one()},
	KindTileCrop: {Kind: KindTileCrop, In: one(), Out: exactly(2),
		Props: []string{"tiles-along-x-axis", "tiles-along-y-axis", "overlap-x-axis", "overlap-y-axis", "tiling-mode"}},
	KindTileAggregate: {Kind: KindTileAggregate, In: exactly(2), Out: one(),
		Props: []string{"iou-threshold", "border-threshold", "remove-large-landscape", "flatten-detections"}},
	KindOverlay: {Kind: KindOverlay, In: one(), Out: one(),
		Props: []string{"qos"}},
	KindEncodeH264: {Kind: KindEncodeH264, In: one(), Out: one(),
		Props: []string{"bitrate", "speed-preset", "tune", "key-int-max"}},
	KindParseH264: {Kind: KindParseH264, In: one(), Out: one()},
	KindMuxMP4:    {Kind: KindMuxMP4, In: one(), Out: one()},
	KindFileSink: {Kind: KindFileSink, In: one(), Out: none(),
		Props: []string{"location", "sync"}},
	KindDisplaySink: {Kind: KindDisplaySink, In: one(), Out: none(),
		Props: []string{"sync", "text-overlay"}},
	KindFakeSink: {Kind: KindFakeSink, In: one(), Out: none(),
		Props: []string{"sync"}},
}

// Lookup returns the catalog entry for a kind.
func Lookup(k Kind) (KindInfo, bool) {
	ki, ok := catalog[k]
	return ki, ok
}

// Kinds returns every kind the catalog knows, for diagnostics.
func Kinds() []Kind {
	out := make([]Kind, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	return out
}

// Node is one processing element of a graph.
type Node struct {
	Name  string
	Kind  Kind
	Props map[string]any
}

// Prop returns a property value, nil when unset.
func (n *Node) Prop(key string) any {
	if n.Props == nil {
		return nil
	}
	return n.Props[key]
}

// Edge links FromPad of node From to ToPad of node To. Empty pad names
// mean "whatever single/next pad the element offers"; explicit names pin
// a specific pad on elements with several.
type Edge struct {
	From    string
	FromPad string
	To      string
	ToPad   string
}

func (e Edge) String() string {
	from, to := e.From, e.To
	if e.FromPad != "" {
		from += "." + e.FromPad
	}
	if e.ToPad != "" {
		to += "." + e.ToPad
	}
	return from + " -> " + to
}

// PadRef names one pad of one node, used to point engines at observation
// points such as frame-counting probes.
type PadRef struct {
	Node string
	Pad  string // output pad name, empty for the element's single output
}

func (r PadRef) String() string {
	if r.Pad == "" {
		return r.Node + ".src"
	}
	return r.Node + "." + r.Pad
}

// Graph is an immutable, validated-on-Build processing topology. Nodes
// keep builder insertion order, which Validate also uses to produce a
// deterministic topological order.
type Graph struct {
	name  string
	nodes []*Node
	index map[string]*Node
	edges []Edge
	order []string // topological, filled by Validate
}

func (g *Graph) Name() string { return g.name }

// Nodes returns the nodes in insertion order. The slice is shared; callers
// must not mutate it.
func (g *Graph) Nodes() []*Node { return g.nodes }

func (g *Graph) Edges() []Edge { return g.edges }

// Node looks a node up by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.index[name]
	return n, ok
}

// BuildOrder returns node names in dependency order: every node appears
// after all nodes feeding into it. Valid only after a successful Validate.
func (g *Graph) BuildOrder() []string { return g.order }

// Inputs returns the edges terminating at the named node.
func (g *Graph) Inputs(name string) []Edge {
	var in []Edge
	for _, e := range g.edges {
		if e.To == name {
			in = append(in, e)
		}
	}
	return in
}

// Outputs returns the edges originating at the named node.
func (g *Graph) Outputs(name string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == name {
			out = append(out, e)
		}
	}
	return out
}
