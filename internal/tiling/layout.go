package tiling

import (
	"fmt"
	"math"
)

// Mode selects the tiling strategy of the cropper stage.
type Mode int

const (
	// SingleScale crops only the configured grid of tiles.
	SingleScale Mode = iota
	// MultiScale additionally crops coarser pyramid levels; detections from
	// the coarse levels tend to produce the wide low-quality boxes that the
	// large-landscape filter exists to remove.
	MultiScale
)

func (m Mode) String() string {
	switch m {
	case SingleScale:
		return "single-scale"
	case MultiScale:
		return "multi-scale"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Spec describes the tile grid applied to every frame.
type Spec struct {
	TilesX int // columns, >= 1
	TilesY int // rows, >= 1

	// Overlap fractions per axis, in [0,1]. The overlap in pixels is the
	// fraction of the base (pre-inflation) tile span, rounded to the
	// nearest pixel, and is uniform along its axis.
	OverlapX float64
	OverlapY float64

	Mode Mode
}

// Tiles returns the number of tiles the grid produces per frame.
func (s Spec) Tiles() int { return s.TilesX * s.TilesY }

// Tile is one cell of the computed layout. X/Y/W/H describe the inflated
// rectangle actually cropped from the frame; Core* describe the base
// partition cell before overlap inflation.
type Tile struct {
	Index int // row-major: Row*TilesX + Col
	Col   int
	Row   int

	X, Y int
	W, H int

	CoreX, CoreY int
	CoreW, CoreH int

	// Shared edges: true when a neighboring tile exists on that side and
	// the axis has a positive overlap, i.e. the edge region is seen by
	// more than one tile. Border filtering applies only to these edges.
	SharedLeft   bool
	SharedRight  bool
	SharedTop    bool
	SharedBottom bool
}

// Layout computes the tile grid for a frame. Base cells are frameW/TilesX
// by frameH/TilesY with the remainder pixels distributed one each to the
// leading columns and rows, so the base cells partition the frame exactly.
// Each cell is then inflated by the per-axis overlap on every edge shared
// with a neighbor and clamped to the frame bounds.
func Layout(frameW, frameH int, spec Spec) ([]Tile, error) {
	if frameW <= 0 || frameH <= 0 {
		return nil, fmt.Errorf("tiling: frame %dx%d is not a valid size", frameW, frameH)
	}
	if spec.TilesX < 1 || spec.TilesY < 1 {
		return nil, fmt.Errorf("tiling: grid %dx%d is not a valid grid", spec.TilesX, spec.TilesY)
	}
	if frameW < spec.TilesX || frameH < spec.TilesY {
		return nil, fmt.Errorf("tiling: frame %dx%d too small for a %dx%d grid",
			frameW, frameH, spec.TilesX, spec.TilesY)
	}
	if spec.OverlapX < 0 || spec.OverlapX > 1 || spec.OverlapY < 0 || spec.OverlapY > 1 {
		return nil, fmt.Errorf("tiling: overlap %.3f/%.3f outside [0,1]", spec.OverlapX, spec.OverlapY)
	}

	colOff, colSpan := axisSpans(frameW, spec.TilesX)
	rowOff, rowSpan := axisSpans(frameH, spec.TilesY)

	ovX := overlapPixels(frameW, spec.TilesX, spec.OverlapX)
	ovY := overlapPixels(frameH, spec.TilesY, spec.OverlapY)

	tiles := make([]Tile, 0, spec.TilesX*spec.TilesY)
	for row := 0; row < spec.TilesY; row++ {
		for col := 0; col < spec.TilesX; col++ {
			t := Tile{
				Index: row*spec.TilesX + col,
				Col:   col,
				Row:   row,
				CoreX: colOff[col],
				CoreY: rowOff[row],
				CoreW: colSpan[col],
				CoreH: rowSpan[row],

				SharedLeft:   col > 0 && ovX > 0,
				SharedRight:  col < spec.TilesX-1 && ovX > 0,
				SharedTop:    row > 0 && ovY > 0,
				SharedBottom: row < spec.TilesY-1 && ovY > 0,
			}

			x0, x1 := t.CoreX, t.CoreX+t.CoreW
			if col > 0 {
				x0 -= ovX
			}
			if col < spec.TilesX-1 {
				x1 += ovX
			}
			y0, y1 := t.CoreY, t.CoreY+t.CoreH
			if row > 0 {
				y0 -= ovY
			}
			if row < spec.TilesY-1 {
				y1 += ovY
			}

			x0, x1 = clampSpan(x0, x1, frameW)
			y0, y1 = clampSpan(y0, y1, frameH)

			t.X, t.Y = x0, y0
			t.W, t.H = x1-x0, y1-y0
			tiles = append(tiles, t)
		}
	}
	return tiles, nil
}

// axisSpans splits dim into n base cells. The remainder dim%n is handed
// out one pixel at a time to the leading cells so the spans sum to dim.
func axisSpans(dim, n int) (offsets, spans []int) {
	base := dim / n
	rem := dim % n
	offsets = make([]int, n)
	spans = make([]int, n)
	off := 0
	for i := 0; i < n; i++ {
		span := base
		if i < rem {
			span++
		}
		offsets[i] = off
		spans[i] = span
		off += span
	}
	return offsets, spans
}

// overlapPixels converts an overlap fraction to pixels. The fraction is
// applied to the floating-point base span dim/n, not to a single integer
// cell, so the overlap is identical for every tile along the axis.
func overlapPixels(dim, n int, frac float64) int {
	return int(math.Round(frac * float64(dim) / float64(n)))
}

func clampSpan(lo, hi, dim int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > dim {
		hi = dim
	}
	return lo, hi
}
