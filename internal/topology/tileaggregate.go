package topology

import (
	"github.com/anhle-uet/hailo-detection-pipelines/internal/config"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

// TileAggregate builds the tiling shape. The cropper emits the untouched
// frame on one pad and the overlapping tile grid, one buffer per tile, on
// the other; tiles run inference at native detail and the aggregator
// translates, filters and deduplicates their detections back onto the full
// frame.
//
//	src -> decode -> cropper -> q-frames ------------------> aggregate -> tail
//	                    \-> q-tiles -> scale -> net -> postprocess -^
func TileAggregate(cfg config.TileAggregate) (*Plan, error) {
	b := graph.NewBuilder("tile-aggregate")

	head := addHead(b, cfg.Common)
	// The cropper slices raw planes; pin RGB so it never sees a packed or
	// hardware-specific format.
	rgb := b.AddNode("caps-rgb", graph.KindCaps,
		graph.P("caps", "video/x-raw,format=RGB"))
	cropper := b.AddNode("cropper", graph.KindTileCrop,
		graph.P("tiles-along-x-axis", cfg.Tiling.TilesX),
		graph.P("tiles-along-y-axis", cfg.Tiling.TilesY),
		graph.P("overlap-x-axis", cfg.Tiling.OverlapX),
		graph.P("overlap-y-axis", cfg.Tiling.OverlapY),
		graph.P("tiling-mode", cfg.TilingMode),
	)
	b.Link(head, rgb, cropper)

	qFrames := addQueue(b, "q-frames", cfg.QueueDepth)
	qTiles := addQueue(b, "q-tiles", cfg.QueueDepth)
	b.LinkPads(cropper, "src_0", qFrames, "")
	b.LinkPads(cropper, "src_1", qTiles, "")

	inferFirst, inferLast := addInference(b, cfg.Common)
	b.Link(qTiles, inferFirst)

	agg := b.AddNode("aggregate", graph.KindTileAggregate,
		graph.P("iou-threshold", cfg.Aggregation.IOUThreshold),
		graph.P("border-threshold", cfg.Aggregation.BorderThreshold),
		graph.P("remove-large-landscape", cfg.Aggregation.RemoveLargeLandscape),
		graph.P("flatten-detections", cfg.Aggregation.FlattenDetections),
	)
	b.LinkPads(qFrames, "", agg, "sink_0")
	b.LinkPads(inferLast, "", agg, "sink_1")

	addTail(b, cfg.Common, agg)

	g, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &Plan{
		Graph:         g,
		Monitor:       graph.PadRef{Node: agg},
		TilesPerFrame: cfg.Tiling.Tiles(),
	}, nil
}
