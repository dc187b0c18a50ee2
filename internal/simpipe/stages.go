package simpipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/engine"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/tiling"
)

// runStage is one node's goroutine: wait for Start, interpret the kind,
// close the output links on the way out so end-of-stream cascades.
func (in *instance) runStage(n *graph.Node, ins, outs []chan item) error {
	select {
	case <-in.gate:
	case <-in.ctx.Done():
		closeAll(outs)
		return nil
	}

	in.post(engine.Event{Kind: engine.KindStreamStatus, Source: n.Name, Message: "enter"})

	defer closeAll(outs)

	var err error
	switch n.Kind {
	case graph.KindFileSource:
		err = in.runSource(outs)
	case graph.KindTee:
		err = in.runTee(n, ins, outs)
	case graph.KindInference:
		err = in.runInference(n, ins, outs)
	case graph.KindMerge:
		err = in.runMerge(n, ins, outs)
	case graph.KindTileCrop:
		err = in.runTileCrop(n, ins, outs)
	case graph.KindTileAggregate:
		err = in.runTileAggregate(n, ins, outs)
	case graph.KindFileSink:
		err = in.runFileSink(n, ins)
	case graph.KindDisplaySink, graph.KindFakeSink:
		err = in.runDrain(ins)
	default:
		err = in.runForward(n, ins, outs)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return &stageError{node: n.Name, err: err}
	}
	return nil
}

func closeAll(chs []chan item) {
	for _, ch := range chs {
		close(ch)
	}
}

func (in *instance) recvItem(ch <-chan item) (item, bool, error) {
	select {
	case it, ok := <-ch:
		if !ok {
			return item{}, false, nil
		}
		return it, true, nil
	case <-in.ctx.Done():
		return item{}, false, in.ctx.Err()
	}
}

func (in *instance) sendItem(ch chan<- item, it item) error {
	select {
	case ch <- it:
		return nil
	case <-in.ctx.Done():
		return in.ctx.Err()
	}
}

// runSource emits the synthetic frame sequence. An end-of-stream request
// stops it early; frames already emitted keep flowing downstream.
func (in *instance) runSource(outs []chan item) error {
	for f := 0; f < in.eng.frames; f++ {
		if in.eng.interval > 0 {
			t := time.NewTimer(in.eng.interval)
			select {
			case <-t.C:
			case <-in.stop:
				t.Stop()
				return nil
			case <-in.ctx.Done():
				t.Stop()
				return in.ctx.Err()
			}
		} else {
			select {
			case <-in.stop:
				return nil
			case <-in.ctx.Done():
				return in.ctx.Err()
			default:
			}
		}
		it := item{frame: tiling.FrameID(f), width: in.eng.width, height: in.eng.height}
		if err := in.sendItem(outs[0], it); err != nil {
			return err
		}
	}
	return nil
}

// runForward is every plain 1-in 1-out stage: decode, convert, scale,
// caps, queue, overlay, encoder, parser, muxer, postprocess. They shape
// real video; for tokens they only relay.
func (in *instance) runForward(n *graph.Node, ins, outs []chan item) error {
	for {
		it, ok, err := in.recvItem(ins[0])
		if err != nil || !ok {
			return err
		}
		if err := in.sendItem(outs[0], it); err != nil {
			return err
		}
		in.observedSend(n.Name)
	}
}

func (in *instance) runTee(n *graph.Node, ins, outs []chan item) error {
	for {
		it, ok, err := in.recvItem(ins[0])
		if err != nil || !ok {
			return err
		}
		for _, out := range outs {
			if err := in.sendItem(out, it); err != nil {
				return err
			}
		}
		in.observedSend(n.Name)
	}
}

func (in *instance) runInference(n *graph.Node, ins, outs []chan item) error {
	for {
		it, ok, err := in.recvItem(ins[0])
		if err != nil || !ok {
			return err
		}
		if in.eng.detector != nil {
			it.dets = in.eng.detector(it.frame, it.tile)
		}
		if err := in.sendItem(outs[0], it); err != nil {
			return err
		}
		in.observedSend(n.Name)
	}
}

// runMerge pairs the bypass and inference branches frame by frame and
// reattaches the detections to the full-resolution token.
func (in *instance) runMerge(n *graph.Node, ins, outs []chan item) error {
	bypass, inferred := ins[0], ins[1]
	for {
		a, ok, err := in.recvItem(bypass)
		if err != nil {
			return err
		}
		if !ok {
			b, extra, err := in.recvItem(inferred)
			if err != nil {
				return err
			}
			if extra {
				return fmt.Errorf("branches out of balance: inference still holds frame %d", b.frame)
			}
			return nil
		}
		b, ok, err := in.recvItem(inferred)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("inference branch ended early, bypass at frame %d", a.frame)
		}
		if a.frame != b.frame {
			return fmt.Errorf("frame pairing broke: bypass %d, inference %d", a.frame, b.frame)
		}

		m := tiling.MergedFrame{ID: a.frame, Width: a.width, Height: a.height, Detections: b.dets}
		out := item{frame: a.frame, width: a.width, height: a.height, dets: b.dets, merged: &m}
		if err := in.sendItem(outs[0], out); err != nil {
			return err
		}
		in.observedSend(n.Name)
	}
}

// runTileCrop emits the untouched frame on src_0 and one token per grid
// tile on src_1, offsets attached.
func (in *instance) runTileCrop(n *graph.Node, ins, outs []chan item) error {
	var layout []tiling.Tile
	for {
		it, ok, err := in.recvItem(ins[0])
		if err != nil || !ok {
			return err
		}
		if layout == nil {
			layout, err = tiling.Layout(it.width, it.height, in.tileSpec)
			if err != nil {
				return err
			}
		}
		if err := in.sendItem(outs[0], it); err != nil {
			return err
		}
		for k := range layout {
			if in.eng.dropTile[dropKey{it.frame, k}] {
				continue
			}
			tile := layout[k]
			tok := item{frame: it.frame, width: it.width, height: it.height, tile: &tile}
			if err := in.sendItem(outs[1], tok); err != nil {
				return err
			}
		}
		in.observedSend(n.Name)
	}
}

// runTileAggregate feeds both token streams into the assembler and emits
// exactly one merged token per completed frame. Assembly failures are
// fatal for the whole pipeline.
func (in *instance) runTileAggregate(n *graph.Node, ins, outs []chan item) error {
	agg := tiling.AggregationSpec{
		IOUThreshold:         propFloat(n, "iou-threshold", 0.3),
		BorderThreshold:      propFloat(n, "border-threshold", 0.1),
		RemoveLargeLandscape: propBool(n, "remove-large-landscape", false),
		FlattenDetections:    propBool(n, "flatten-detections", true),
	}
	asm := tiling.NewAssembler(in.tileSpec, agg)

	emit := func(m *tiling.MergedFrame) error {
		if m == nil {
			return nil
		}
		out := item{frame: m.ID, width: m.Width, height: m.Height, dets: m.Detections, merged: m}
		if err := in.sendItem(outs[0], out); err != nil {
			return err
		}
		in.observedSend(n.Name)
		return nil
	}

	whole, tiles := ins[0], ins[1]
	for whole != nil || tiles != nil {
		select {
		case it, ok := <-whole:
			if !ok {
				whole = nil
				continue
			}
			m, err := asm.AddWhole(tiling.FrameToken{ID: it.frame, Width: it.width, Height: it.height})
			if err != nil {
				return err
			}
			if err := emit(m); err != nil {
				return err
			}
		case it, ok := <-tiles:
			if !ok {
				tiles = nil
				continue
			}
			if it.tile == nil {
				return fmt.Errorf("tile stream delivered frame %d without tile geometry", it.frame)
			}
			m, err := asm.AddTile(tiling.TileToken{Frame: it.frame, Tile: *it.tile, Detections: it.dets})
			if err != nil {
				return err
			}
			if err := emit(m); err != nil {
				return err
			}
		case <-in.ctx.Done():
			return in.ctx.Err()
		}
	}
	return asm.Flush()
}

// runFileSink consumes the merged stream and finalizes the artifact only
// when end-of-stream arrives, mirroring how the container muxer writes
// its index: a torn-down pipeline leaves no finalized file.
func (in *instance) runFileSink(n *graph.Node, ins []chan item) error {
	location := propString(n, "location", "")
	var count uint64
	for {
		_, ok, err := in.recvItem(ins[0])
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		count++
	}
	if location == "" {
		return nil
	}
	payload := fmt.Sprintf("frames=%d\n", count)
	if err := os.WriteFile(location, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}

func (in *instance) runDrain(ins []chan item) error {
	for {
		_, ok, err := in.recvItem(ins[0])
		if err != nil || !ok {
			return err
		}
	}
}

func propInt(n *graph.Node, key string, def int) int {
	switch v := n.Prop(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func propFloat(n *graph.Node, key string, def float64) float64 {
	switch v := n.Prop(key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func propBool(n *graph.Node, key string, def bool) bool {
	if v, ok := n.Prop(key).(bool); ok {
		return v
	}
	return def
}

func propString(n *graph.Node, key string, def string) string {
	if v, ok := n.Prop(key).(string); ok {
		return v
	}
	return def
}
