package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuilderLinearChain(t *testing.T) {
	b := NewBuilder("linear")
	src := b.AddNode("src", KindFileSource, P("location", "/data/in.mp4"))
	dec := b.AddNode("dec", KindDecode)
	conv := b.AddNode("conv", KindConvert)
	sink := b.AddNode("sink", KindFakeSink, P("sync", false))
	b.Link(src, dec, conv, sink)

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []string{"src", "dec", "conv", "sink"}
	if diff := cmp.Diff(want, g.BuildOrder()); diff != "" {
		t.Errorf("build order mismatch (-want +got):\n%s", diff)
	}

	n, ok := g.Node("src")
	if !ok {
		t.Fatal("node src not found")
	}
	if got := n.Prop("location"); got != "/data/in.mp4" {
		t.Errorf("src location = %v", got)
	}
	if n.Prop("missing") != nil {
		t.Error("unset property is not nil")
	}
}

func TestBuilderBranchedTopology(t *testing.T) {
	// A tee fanning out to two branches that rejoin at a merge, the shape
	// of the split-merge pipeline's core.
	b := NewBuilder("branched")
	src := b.AddNode("src", KindFileSource, P("location", "/data/in.mp4"))
	tee := b.AddNode("tee", KindTee)
	qa := b.AddNode("q-bypass", KindQueue)
	qb := b.AddNode("q-infer", KindQueue)
	inf := b.AddNode("infer", KindInference, P("hef-path", "/m.hef"))
	merge := b.AddNode("merge", KindMerge)
	sink := b.AddNode("sink", KindFakeSink)

	b.Link(src, tee)
	b.LinkPads(tee, "src_0", qa, "")
	b.LinkPads(tee, "src_1", qb, "")
	b.Link(qb, inf)
	b.LinkPads(qa, "", merge, "sink_0")
	b.LinkPads(inf, "", merge, "sink_1")
	b.Link(merge, sink)

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	order := g.BuildOrder()
	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	for _, e := range g.Edges() {
		if pos[e.From] >= pos[e.To] {
			t.Errorf("edge %v violates build order %v", e, order)
		}
	}

	if got := len(g.Outputs("tee")); got != 2 {
		t.Errorf("tee has %d outputs, want 2", got)
	}
	if got := len(g.Inputs("merge")); got != 2 {
		t.Errorf("merge has %d inputs, want 2", got)
	}
}

func TestBuildReportsEveryProblem(t *testing.T) {
	b := NewBuilder("broken")
	b.AddNode("src", KindFileSource)
	b.AddNode("src", KindFileSource)             // duplicate name
	b.AddNode("mystery", Kind("warp-core"))      // unknown kind
	b.AddNode("q", KindQueue, P("color", "red")) // unknown property
	b.Link(b.AddNode("sink", KindFakeSink))      // single-node link

	g, err := b.Build()
	if err == nil {
		t.Fatal("Build accepted a broken graph")
	}
	if g != nil {
		t.Error("Build returned a graph alongside an error")
	}

	var ce *ConstructionError
	if !errors.As(err, &ce) {
		t.Fatalf("error is %T, want *ConstructionError", err)
	}
	if ce.Graph != "broken" {
		t.Errorf("error names graph %q", ce.Graph)
	}
	if len(ce.Errs) < 4 {
		t.Errorf("expected at least 4 problems, got %d:\n%v", len(ce.Errs), err)
	}

	for _, want := range []string{"duplicate node name", "unknown kind", "no property", "at least two nodes"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q:\n%v", want, err)
		}
	}
}

func TestBuildRejectsStructuralProblems(t *testing.T) {
	cases := []struct {
		name string
		make func() *Builder
		want string
	}{
		{
			name: "dangling edge target",
			make: func() *Builder {
				b := NewBuilder("g")
				b.AddNode("src", KindFileSource)
				b.Link("src", "ghost")
				return b
			},
			want: "does not exist",
		},
		{
			name: "source with input",
			make: func() *Builder {
				b := NewBuilder("g")
				b.AddNode("a", KindFileSource)
				b.AddNode("b", KindFileSource)
				b.AddNode("sink", KindFakeSink)
				b.Link("a", "b", "sink")
				return b
			},
			want: "input links",
		},
		{
			name: "merge with one input",
			make: func() *Builder {
				b := NewBuilder("g")
				b.AddNode("src", KindFileSource)
				b.AddNode("merge", KindMerge)
				b.AddNode("sink", KindFakeSink)
				b.Link("src", "merge", "sink")
				return b
			},
			want: "1 input links",
		},
		{
			name: "cycle",
			make: func() *Builder {
				b := NewBuilder("g")
				b.AddNode("a", KindConvert)
				b.AddNode("b", KindConvert)
				b.Link("a", "b")
				b.Link("b", "a")
				return b
			},
			want: "cycle",
		},
		{
			name: "two sources",
			make: func() *Builder {
				b := NewBuilder("g")
				b.AddNode("a", KindFileSource)
				b.AddNode("b", KindFileSource)
				b.AddNode("merge", KindMerge)
				b.AddNode("sink", KindFakeSink)
				b.LinkPads("a", "", "merge", "sink_0")
				b.LinkPads("b", "", "merge", "sink_1")
				b.Link("merge", "sink")
				return b
			},
			want: "exactly one source",
		},
		{
			name: "two terminal sinks",
			make: func() *Builder {
				b := NewBuilder("g")
				b.AddNode("src", KindFileSource)
				b.AddNode("tee", KindTee)
				b.AddNode("qa", KindQueue)
				b.AddNode("qb", KindQueue)
				b.AddNode("sa", KindFakeSink)
				b.AddNode("sb", KindFakeSink)
				b.Link("src", "tee")
				b.LinkPads("tee", "src_0", "qa", "")
				b.LinkPads("tee", "src_1", "qb", "")
				b.Link("qa", "sa")
				b.Link("qb", "sb")
				return b
			},
			want: "exactly one terminal sink",
		},
		{
			name: "pad linked twice",
			make: func() *Builder {
				b := NewBuilder("g")
				b.AddNode("src", KindFileSource)
				b.AddNode("tee", KindTee)
				b.AddNode("qa", KindQueue)
				b.AddNode("qb", KindQueue)
				b.AddNode("sa", KindFakeSink)
				b.AddNode("sb", KindFakeSink)
				b.Link("src", "tee")
				b.LinkPads("tee", "src_0", "qa", "")
				b.LinkPads("tee", "src_0", "qb", "")
				b.Link("qa", "sa")
				b.Link("qb", "sb")
				return b
			},
			want: "linked twice",
		},
		{
			name: "empty graph",
			make: func() *Builder { return NewBuilder("g") },
			want: "no nodes",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.make().Build()
			if err == nil {
				t.Fatal("Build accepted the graph")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDescribeIsDeterministic(t *testing.T) {
	build := func() string {
		b := NewBuilder("demo")
		b.AddNode("src", KindFileSource, P("location", "/in.mp4"))
		b.AddNode("q", KindQueue, P("max-size-buffers", 30), P("leaky", "no"))
		b.AddNode("sink", KindFakeSink)
		b.Link("src", "q", "sink")
		g, err := b.Build()
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return g.Describe()
	}

	d1, d2 := build(), build()
	if d1 != d2 {
		t.Errorf("Describe output differs between runs:\n%s\n---\n%s", d1, d2)
	}
	for _, want := range []string{"[file-source] src", "leaky=no max-size-buffers=30", "src -> q"} {
		if !strings.Contains(d1, want) {
			t.Errorf("Describe output missing %q:\n%s", want, d1)
		}
	}
}

func TestPadRefString(t *testing.T) {
	if got := (PadRef{Node: "merge"}).String(); got != "merge.src" {
		t.Errorf("PadRef.String() = %q, want merge.src", got)
	}
	if got := (PadRef{Node: "tee", Pad: "src_1"}).String(); got != "tee.src_1" {
		t.Errorf("PadRef.String() = %q, want tee.src_1", got)
	}
}
