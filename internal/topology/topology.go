// Package topology turns a validated run configuration into one of the two
// supported processing graphs. The shapes differ only in their middle: the
// split-merge shape tees full frames around inference and rejoins them,
// while the tile-aggregate shape crops frames into an overlapping grid and
// folds per-tile results back together. Source head and output tail are
// shared.
package topology

import (
	"fmt"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/config"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

// Plan is a buildable pipeline: the graph plus the details the controller
// needs that are not part of the topology itself.
type Plan struct {
	Graph *graph.Graph

	// Monitor is the output pad where merged frames are counted for
	// progress reporting and the end-of-run total.
	Monitor graph.PadRef

	// TilesPerFrame is the number of tile tokens the aggregation stage
	// expects per frame, 0 for the split-merge shape.
	TilesPerFrame int
}

// addQueue declares a bounded, non-leaking queue. Queues are the only
// buffering in the graph: a full queue blocks its producer instead of
// dropping frames.
func addQueue(b *graph.Builder, name string, depth int) string {
	return b.AddNode(name, graph.KindQueue,
		graph.P("leaky", "no"),
		graph.P("max-size-buffers", depth),
		graph.P("max-size-bytes", 0),
		graph.P("max-size-time", 0),
	)
}

// addHead declares the source and decode stages and returns the node
// producing raw full-resolution frames.
func addHead(b *graph.Builder, cfg config.Common) string {
	src := b.AddNode("src", graph.KindFileSource, graph.P("location", cfg.Input))
	dec := b.AddNode("decode", graph.KindDecode)
	conv := b.AddNode("convert-pre", graph.KindConvert)
	b.Link(src, dec, conv)
	return conv
}

// addInference declares the scale/net/postprocess stretch shared by both
// shapes and returns its first and last node. Frames entering are scaled
// to the network input size; detections leave attached to the buffers.
func addInference(b *graph.Builder, cfg config.Common) (first, last string) {
	scale := b.AddNode("infer-scale", graph.KindScale)
	caps := b.AddNode("infer-caps", graph.KindCaps,
		graph.P("caps", fmt.Sprintf("video/x-raw,width=%d,height=%d", cfg.InferenceWidth, cfg.InferenceHeight)))
	qNet := addQueue(b, "q-net", cfg.QueueDepth)
	net := b.AddNode("net", graph.KindInference,
		graph.P("hef-path", cfg.HEFPath),
		graph.P("nms-score-threshold", cfg.ScoreThreshold),
		graph.P("nms-iou-threshold", cfg.NMSIOU),
	)
	qPost := addQueue(b, "q-post", cfg.QueueDepth)
	postProps := []graph.Prop{
		graph.P("so-path", cfg.PostprocessSO),
		graph.P("qos", false),
	}
	if cfg.PostprocessFn != "" {
		postProps = append(postProps, graph.P("function-name", cfg.PostprocessFn))
	}
	post := b.AddNode("postprocess", graph.KindPostprocess, postProps...)
	b.Link(scale, caps, qNet, net, qPost, post)
	return scale, post
}

// addTail declares everything downstream of the merged stream: overlay,
// then either the MP4 writer, a display sink, or a frame-discarding sink.
func addTail(b *graph.Builder, cfg config.Common, from string) {
	qOverlay := addQueue(b, "q-overlay", cfg.QueueDepth)
	overlay := b.AddNode("overlay", graph.KindOverlay, graph.P("qos", false))
	qOut := addQueue(b, "q-out", cfg.QueueDepth)
	conv := b.AddNode("convert-out", graph.KindConvert)
	b.Link(from, qOverlay, overlay, qOut, conv)

	switch {
	case cfg.Output != "":
		enc := b.AddNode("encoder", graph.KindEncodeH264,
			graph.P("bitrate", cfg.BitrateKbps),
			graph.P("speed-preset", cfg.EncoderPreset),
			graph.P("tune", "zerolatency"),
			graph.P("key-int-max", 60),
		)
		parse := b.AddNode("parse-out", graph.KindParseH264)
		mux := b.AddNode("mux", graph.KindMuxMP4)
		sink := b.AddNode("sink", graph.KindFileSink,
			graph.P("location", cfg.Output),
			graph.P("sync", false),
		)
		b.Link(conv, enc, parse, mux, sink)
	case cfg.Display:
		sink := b.AddNode("sink", graph.KindDisplaySink,
			graph.P("sync", false),
			graph.P("text-overlay", false),
		)
		b.Link(conv, sink)
	default:
		sink := b.AddNode("sink", graph.KindFakeSink, graph.P("sync", false))
		b.Link(conv, sink)
	}
}
