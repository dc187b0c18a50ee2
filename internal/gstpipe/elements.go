package gstpipe

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

// factories maps graph kinds to the GStreamer element factories that
// realize them.
var factories = map[graph.Kind]string{
	graph.KindFileSource:    "filesrc",
	graph.KindDecode:        "decodebin",
	graph.KindConvert:       "videoconvert",
	graph.KindScale:         "videoscale",
	graph.KindCaps:          "capsfilter",
	graph.KindQueue:         "queue",
	graph.KindTee:           "tee",
	graph.KindInference:     "hailonet",
	graph.KindPostprocess:   "hailofilter",
	graph.KindMerge:         "hailomuxer",
	graph.KindTileCrop:      "hailotilecropper",
	graph.KindTileAggregate: "hailotileaggregator",
	graph.KindOverlay:       "hailooverlay",
	graph.KindEncodeH264:    "x264enc",
	graph.KindParseH264:     "h264parse",
	graph.KindMuxMP4:        "mp4mux",
	graph.KindFileSink:      "filesink",
	graph.KindDisplaySink:   "fpsdisplaysink",
	graph.KindFakeSink:      "fakesink",
}

// dynamicSrc marks factories whose source pads only exist once the stream
// has been probed. Their downstream links are made in a pad-added
// callback instead of at assembly time.
var dynamicSrc = map[string]bool{
	"decodebin": true,
}

// makeElement creates and configures the element for one graph node. The
// element takes the node's name, so bus messages and probe events map
// back to the graph that was built.
func makeElement(n *graph.Node) (*gst.Element, error) {
	factory, ok := factories[n.Kind]
	if !ok {
		return nil, fmt.Errorf("no element factory for kind %q", n.Kind)
	}
	el, err := gst.NewElement(factory)
	if err != nil {
		return nil, fmt.Errorf("create %s for node %q: %w", factory, n.Name, err)
	}
	el.SetProperty("name", n.Name)
	for key, val := range n.Props {
		if err := applyProp(el, key, val); err != nil {
			return nil, fmt.Errorf("node %q: set %s: %w", n.Name, key, err)
		}
	}
	return el, nil
}

// applyProp sets one element property. String values go through SetArg,
// which parses enums, flags and similar typed values the same way
// gst-launch does; caps descriptions become real caps; everything else
// is set as a typed value directly.
func applyProp(el *gst.Element, key string, val any) error {
	switch v := val.(type) {
	case string:
		if key == "caps" {
			return el.SetProperty(key, gst.NewCapsFromString(v))
		}
		el.SetArg(key, v)
		return nil
	default:
		return el.SetProperty(key, val)
	}
}

// linkEdges wires every graph edge. Unnamed pads link element to element,
// named pads are resolved individually (requesting them from the template
// when they are not static, as with tee outputs), and elements with
// stream-dependent outputs link once decoding exposes the pad.
func linkEdges(g *graph.Graph, els map[string]*gst.Element, log *slog.Logger) error {
	for _, edge := range g.Edges() {
		from, to := els[edge.From], els[edge.To]
		fromNode, ok := g.Node(edge.From)
		if !ok {
			return fmt.Errorf("link %s: unknown node %q", edge, edge.From)
		}

		if dynamicSrc[factories[fromNode.Kind]] {
			linkWhenReady(from, to, padNameOr(edge.ToPad, "sink"), log)
			continue
		}

		if edge.FromPad == "" && edge.ToPad == "" {
			if err := from.Link(to); err != nil {
				return fmt.Errorf("link %s: %w", edge, err)
			}
			continue
		}

		srcName := padNameOr(edge.FromPad, "src")
		srcPad := padOn(from, srcName)
		if srcPad == nil {
			return fmt.Errorf("link %s: no pad %q on %q", edge, srcName, edge.From)
		}
		sinkName := padNameOr(edge.ToPad, "sink")
		sinkPad := padOn(to, sinkName)
		if sinkPad == nil {
			return fmt.Errorf("link %s: no pad %q on %q", edge, sinkName, edge.To)
		}
		if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
			return fmt.Errorf("link %s: pad link failed: %v", edge, ret)
		}
	}
	return nil
}

// padOn returns the named pad, requesting it from the element's template
// when it is not static.
func padOn(el *gst.Element, name string) *gst.Pad {
	if p := el.GetStaticPad(name); p != nil {
		return p
	}
	return el.GetRequestPad(name)
}

func padNameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// linkWhenReady connects an element with stream-dependent source pads to
// the downstream sink pad as soon as it appears.
func linkWhenReady(from, to *gst.Element, sinkName string, log *slog.Logger) {
	from.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		sinkPad := to.GetStaticPad(sinkName)
		if sinkPad == nil {
			log.Error("gst: downstream sink pad missing",
				"element", to.GetName(),
				"pad", sinkName,
			)
			return
		}
		if sinkPad.IsLinked() {
			return
		}
		if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
			log.Error("gst: pad link failed",
				"src_pad", srcPad.GetName(),
				"sink_pad", sinkPad.GetName(),
				"ret", ret,
			)
			return
		}
		log.Debug("gst: pads linked",
			"element", self.GetName(),
			"src_pad", srcPad.GetName(),
		)
	})
}
