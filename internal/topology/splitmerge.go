package topology

import (
	"github.com/anhle-uet/hailo-detection-pipelines/internal/config"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

// SplitMerge builds the preserve-resolution shape. Decoded frames tee into
// a full-resolution bypass branch and a scaled inference branch; the merge
// stage reattaches the detections to the untouched frames, so the output
// keeps the source resolution no matter what the network input size is.
//
//	src -> decode -> tee -> q-bypass ------------------> merge -> tail
//	                  \-> q-infer -> scale -> net -> postprocess -^
func SplitMerge(cfg config.SplitMerge) (*Plan, error) {
	b := graph.NewBuilder("split-merge")

	head := addHead(b, cfg.Common)
	tee := b.AddNode("split", graph.KindTee)
	b.Link(head, tee)

	qBypass := addQueue(b, "q-bypass", cfg.QueueDepth)
	qInfer := addQueue(b, "q-infer", cfg.QueueDepth)
	b.LinkPads(tee, "src_0", qBypass, "")
	b.LinkPads(tee, "src_1", qInfer, "")

	inferFirst, inferLast := addInference(b, cfg.Common)
	b.Link(qInfer, inferFirst)

	merge := b.AddNode("merge", graph.KindMerge)
	b.LinkPads(qBypass, "", merge, "sink_0")
	b.LinkPads(inferLast, "", merge, "sink_1")

	addTail(b, cfg.Common, merge)

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &Plan{
		Graph:   g,
		Monitor: graph.PadRef{Node: merge},
	}, nil
}
