package tiling

import (
	"fmt"
	"sort"
)

// FrameID identifies a source frame. IDs are assigned by the splitting
// stage in presentation order and are strictly increasing.
type FrameID uint64

// FrameToken is the whole-frame branch's token for one frame.
type FrameToken struct {
	ID            FrameID
	Width, Height int
}

// TileToken is one tile's worth of inference output for one frame.
type TileToken struct {
	Frame      FrameID
	Tile       Tile
	Detections []Detection
}

// MissingTileError reports a frame that could not be completed because at
// least one of its expected tokens never arrived. A missing token means
// the split/crop stage dropped data, which the aggregation contract treats
// as fatal rather than papering over with a partial merge.
type MissingTileError struct {
	Frame     FrameID
	TilesGot  int
	TilesWant int
	WholeSeen bool
}

func (e *MissingTileError) Error() string {
	whole := "whole frame present"
	if !e.WholeSeen {
		whole = "whole frame missing"
	}
	return fmt.Sprintf("tiling: frame %d incomplete: %d/%d tiles, %s",
		e.Frame, e.TilesGot, e.TilesWant, whole)
}

type pendingFrame struct {
	whole     bool
	width     int
	height    int
	tiles     []TileDetections
	tileSeen  []bool
	tileCount int
}

// Assembler regroups the interleaved whole-frame and tile token streams
// back into complete frames. Exactly one MergedFrame is produced per input
// frame, in frame order; a frame completing while an older frame is still
// pending proves the older frame lost a token and fails the assembly.
//
// Not safe for concurrent use; the aggregation stage owns it exclusively.
type Assembler struct {
	spec    Spec
	agg     AggregationSpec
	expect  int
	pending map[FrameID]*pendingFrame
}

func NewAssembler(spec Spec, agg AggregationSpec) *Assembler {
	return &Assembler{
		spec:    spec,
		agg:     agg,
		expect:  spec.Tiles(),
		pending: make(map[FrameID]*pendingFrame),
	}
}

// Pending returns the number of frames with at least one token collected
// but not yet merged.
func (a *Assembler) Pending() int { return len(a.pending) }

// AddWhole records the whole-frame token. It returns the merged frame when
// this token completes it, nil otherwise.
func (a *Assembler) AddWhole(tok FrameToken) (*MergedFrame, error) {
	if tok.Width <= 0 || tok.Height <= 0 {
		return nil, fmt.Errorf("tiling: frame %d has invalid size %dx%d", tok.ID, tok.Width, tok.Height)
	}
	p := a.frame(tok.ID)
	if p.whole {
		return nil, fmt.Errorf("tiling: duplicate whole-frame token for frame %d", tok.ID)
	}
	p.whole = true
	p.width = tok.Width
	p.height = tok.Height
	return a.tryComplete(tok.ID, p)
}

// AddTile records one tile token. It returns the merged frame when this
// token completes it, nil otherwise.
func (a *Assembler) AddTile(tok TileToken) (*MergedFrame, error) {
	if tok.Tile.Index < 0 || tok.Tile.Index >= a.expect {
		return nil, fmt.Errorf("tiling: frame %d tile index %d outside grid of %d",
			tok.Frame, tok.Tile.Index, a.expect)
	}
	p := a.frame(tok.Frame)
	if p.tileSeen[tok.Tile.Index] {
		return nil, fmt.Errorf("tiling: duplicate tile %d for frame %d", tok.Tile.Index, tok.Frame)
	}
	p.tileSeen[tok.Tile.Index] = true
	p.tileCount++
	p.tiles = append(p.tiles, TileDetections{Tile: tok.Tile, Detections: tok.Detections})
	return a.tryComplete(tok.Frame, p)
}

// Flush verifies nothing is left half-assembled at end of stream.
func (a *Assembler) Flush() error {
	if len(a.pending) == 0 {
		return nil
	}
	return a.missing(a.oldest())
}

func (a *Assembler) frame(id FrameID) *pendingFrame {
	p, ok := a.pending[id]
	if !ok {
		p = &pendingFrame{tileSeen: make([]bool, a.expect)}
		a.pending[id] = p
	}
	return p
}

func (a *Assembler) tryComplete(id FrameID, p *pendingFrame) (*MergedFrame, error) {
	if !p.whole || p.tileCount != a.expect {
		return nil, nil
	}
	// A younger frame never completes before an older one unless the older
	// one lost a token: the stream delivers tokens in frame order.
	if oldest := a.oldest(); oldest != id {
		return nil, a.missing(oldest)
	}
	delete(a.pending, id)
	m := Merge(id, p.width, p.height, p.tiles, a.spec, a.agg)
	return &m, nil
}

func (a *Assembler) oldest() FrameID {
	ids := make([]FrameID, 0, len(a.pending))
	for id := range a.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids[0]
}

func (a *Assembler) missing(id FrameID) *MissingTileError {
	p := a.pending[id]
	return &MissingTileError{
		Frame:     id,
		TilesGot:  p.tileCount,
		TilesWant: a.expect,
		WholeSeen: p.whole,
	}
}
