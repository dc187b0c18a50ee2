package topology

import (
	"testing"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/config"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

func splitMergeConfig() config.SplitMerge {
	cfg := config.DefaultSplitMerge()
	cfg.Input = "/data/in.mp4"
	return cfg
}

func tileAggregateConfig() config.TileAggregate {
	cfg := config.DefaultTileAggregate()
	cfg.Input = "/data/in.mp4"
	return cfg
}

func mustKind(t *testing.T, g *graph.Graph, name string, kind graph.Kind) *graph.Node {
	t.Helper()
	n, ok := g.Node(name)
	if !ok {
		t.Fatalf("node %q missing", name)
	}
	if n.Kind != kind {
		t.Fatalf("node %q has kind %q, want %q", name, n.Kind, kind)
	}
	return n
}

func TestSplitMergeShape(t *testing.T) {
	plan, err := SplitMerge(splitMergeConfig())
	if err != nil {
		t.Fatalf("SplitMerge failed: %v", err)
	}
	g := plan.Graph

	mustKind(t, g, "split", graph.KindTee)
	merge := mustKind(t, g, "merge", graph.KindMerge)
	net := mustKind(t, g, "net", graph.KindInference)
	mustKind(t, g, "sink", graph.KindFakeSink)

	if got := len(g.Outputs("split")); got != 2 {
		t.Errorf("tee has %d branches, want 2", got)
	}
	if got := len(g.Inputs("merge")); got != 2 {
		t.Errorf("merge has %d inputs, want 2", got)
	}

	// The bypass branch reaches the merge without passing inference.
	for _, e := range g.Inputs("merge") {
		if e.ToPad == "sink_0" && e.From != "q-bypass" {
			t.Errorf("bypass input comes from %q, want q-bypass", e.From)
		}
	}

	if net.Prop("hef-path") != config.DefaultHEFPath {
		t.Errorf("net hef-path = %v", net.Prop("hef-path"))
	}
	if net.Prop("nms-score-threshold") != 0.3 {
		t.Errorf("net score threshold = %v, want 0.3", net.Prop("nms-score-threshold"))
	}

	if plan.Monitor != (graph.PadRef{Node: merge.Name}) {
		t.Errorf("monitor pad = %v, want merge.src", plan.Monitor)
	}
	if plan.TilesPerFrame != 0 {
		t.Errorf("TilesPerFrame = %d, want 0 for split-merge", plan.TilesPerFrame)
	}
}

func TestSplitMergeOutputTail(t *testing.T) {
	cfg := splitMergeConfig()
	cfg.Output = "/data/out/result.mp4"
	cfg.BitrateKbps = 6000

	plan, err := SplitMerge(cfg)
	if err != nil {
		t.Fatalf("SplitMerge failed: %v", err)
	}
	g := plan.Graph

	enc := mustKind(t, g, "encoder", graph.KindEncodeH264)
	mustKind(t, g, "mux", graph.KindMuxMP4)
	sink := mustKind(t, g, "sink", graph.KindFileSink)

	if enc.Prop("bitrate") != 6000 {
		t.Errorf("encoder bitrate = %v, want 6000", enc.Prop("bitrate"))
	}
	if enc.Prop("speed-preset") != config.DefaultEncoderPreset {
		t.Errorf("encoder preset = %v", enc.Prop("speed-preset"))
	}
	if sink.Prop("location") != "/data/out/result.mp4" {
		t.Errorf("sink location = %v", sink.Prop("location"))
	}
}

func TestSplitMergeDisplayTail(t *testing.T) {
	cfg := splitMergeConfig()
	cfg.Display = true

	plan, err := SplitMerge(cfg)
	if err != nil {
		t.Fatalf("SplitMerge failed: %v", err)
	}
	mustKind(t, plan.Graph, "sink", graph.KindDisplaySink)
}

func TestTileAggregateShape(t *testing.T) {
	cfg := tileAggregateConfig()
	plan, err := TileAggregate(cfg)
	if err != nil {
		t.Fatalf("TileAggregate failed: %v", err)
	}
	g := plan.Graph

	cropper := mustKind(t, g, "cropper", graph.KindTileCrop)
	agg := mustKind(t, g, "aggregate", graph.KindTileAggregate)
	mustKind(t, g, "net", graph.KindInference)

	// The cropper input is pinned to RGB.
	rgb := mustKind(t, g, "caps-rgb", graph.KindCaps)
	if rgb.Prop("caps") != "video/x-raw,format=RGB" {
		t.Errorf("caps-rgb = %v", rgb.Prop("caps"))
	}

	if cropper.Prop("tiles-along-x-axis") != 2 || cropper.Prop("tiles-along-y-axis") != 2 {
		t.Errorf("cropper grid = %vx%v, want 2x2",
			cropper.Prop("tiles-along-x-axis"), cropper.Prop("tiles-along-y-axis"))
	}
	if cropper.Prop("overlap-x-axis") != 0.2 {
		t.Errorf("cropper overlap = %v, want 0.2", cropper.Prop("overlap-x-axis"))
	}
	if agg.Prop("iou-threshold") != 0.3 || agg.Prop("border-threshold") != 0.1 {
		t.Errorf("aggregator thresholds = %v/%v, want 0.3/0.1",
			agg.Prop("iou-threshold"), agg.Prop("border-threshold"))
	}
	if agg.Prop("flatten-detections") != true {
		t.Errorf("flatten-detections = %v, want true", agg.Prop("flatten-detections"))
	}

	// The frame branch bypasses inference, the tile branch carries it.
	for _, e := range g.Inputs("aggregate") {
		switch e.ToPad {
		case "sink_0":
			if e.From != "q-frames" {
				t.Errorf("frame input comes from %q, want q-frames", e.From)
			}
		case "sink_1":
			if e.From != "postprocess" {
				t.Errorf("tile input comes from %q, want postprocess", e.From)
			}
		}
	}

	if plan.Monitor != (graph.PadRef{Node: "aggregate"}) {
		t.Errorf("monitor pad = %v, want aggregate.src", plan.Monitor)
	}
	if plan.TilesPerFrame != 4 {
		t.Errorf("TilesPerFrame = %d, want 4", plan.TilesPerFrame)
	}
}

func TestTileAggregateModePassthrough(t *testing.T) {
	cfg := tileAggregateConfig()
	cfg.TilingMode = config.TilingModeMultiScale

	plan, err := TileAggregate(cfg)
	if err != nil {
		t.Fatalf("TileAggregate failed: %v", err)
	}
	cropper := mustKind(t, plan.Graph, "cropper", graph.KindTileCrop)
	if cropper.Prop("tiling-mode") != config.TilingModeMultiScale {
		t.Errorf("tiling-mode = %v, want %d", cropper.Prop("tiling-mode"), config.TilingModeMultiScale)
	}
}

func TestQueuesAreBoundedAndNonLeaking(t *testing.T) {
	for _, build := range []func() (*Plan, error){
		func() (*Plan, error) { return SplitMerge(splitMergeConfig()) },
		func() (*Plan, error) { return TileAggregate(tileAggregateConfig()) },
	} {
		plan, err := build()
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		queues := 0
		for _, n := range plan.Graph.Nodes() {
			if n.Kind != graph.KindQueue {
				continue
			}
			queues++
			if n.Prop("leaky") != "no" {
				t.Errorf("%s: queue %q leaks", plan.Graph.Name(), n.Name)
			}
			if n.Prop("max-size-buffers") != config.DefaultQueueDepth {
				t.Errorf("%s: queue %q depth = %v, want %d",
					plan.Graph.Name(), n.Name, n.Prop("max-size-buffers"), config.DefaultQueueDepth)
			}
		}
		if queues == 0 {
			t.Errorf("%s: no queues in graph", plan.Graph.Name())
		}
	}
}
