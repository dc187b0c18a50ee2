package tiling

import "sort"

// AggregationSpec tunes the merge step that folds per-tile detections back
// into one frame-level result.
type AggregationSpec struct {
	// IOUThreshold controls cross-tile deduplication: two same-class boxes
	// whose IOU strictly exceeds the threshold are duplicates and only the
	// higher-ranked one survives. 0 collapses any overlap, 1 disables the
	// pass.
	IOUThreshold float64

	// BorderThreshold drops detections closer than this fraction of the
	// tile span to an edge shared with a neighboring tile. Such boxes are
	// partial views; the neighbor sees the object whole. 0 disables the
	// filter.
	BorderThreshold float64

	// RemoveLargeLandscape drops implausibly wide boxes spanning most of a
	// tile. Only meaningful in multi-scale mode, where coarse pyramid
	// levels produce them.
	RemoveLargeLandscape bool

	// FlattenDetections merges everything into one flat list; otherwise
	// the merged frame keeps the per-tile grouping alongside it.
	FlattenDetections bool
}

// TileDetections couples a tile's geometry with the detections inference
// produced on it, in tile-local coordinates.
type TileDetections struct {
	Tile       Tile
	Detections []Detection
}

// TileGroup is the per-tile view of a merged frame when flattening is off.
type TileGroup struct {
	Tile       int
	Detections []Detection
}

// MergedFrame is the single aggregated result for one frame.
type MergedFrame struct {
	ID            FrameID
	Width, Height int

	// Detections is the final frame-global, filtered, deduplicated set.
	Detections []Detection

	// Groups holds the same detections keyed by source tile. Nil when
	// FlattenDetections is set.
	Groups []TileGroup
}

// largeLandscapeWidthFrac is the fraction of the tile width at or above
// which a wider-than-tall box counts as a large landscape artifact.
const largeLandscapeWidthFrac = 0.9

// Merge translates per-tile detections into frame coordinates, applies the
// border and large-landscape filters, deduplicates across tiles and returns
// the merged frame. The tile slice order does not matter; the result is
// deterministic for a given multiset of inputs.
func Merge(id FrameID, width, height int, tiles []TileDetections, spec Spec, agg AggregationSpec) MergedFrame {
	var all []Detection
	for _, td := range tiles {
		for _, d := range td.Detections {
			if dropAtBorder(d.Box, td.Tile, agg.BorderThreshold) {
				continue
			}
			if dropLargeLandscape(d.Box, td.Tile, spec.Mode, agg.RemoveLargeLandscape) {
				continue
			}
			d.Box = d.Box.Offset(float64(td.Tile.X), float64(td.Tile.Y))
			d.SourceTile = td.Tile.Index
			all = append(all, d)
		}
	}

	kept := dedupIOU(all, agg.IOUThreshold)

	out := MergedFrame{ID: id, Width: width, Height: height, Detections: kept}
	if !agg.FlattenDetections {
		out.Groups = groupByTile(kept)
	}
	return out
}

// dropAtBorder reports whether the box sits within the border margin of an
// edge that a neighboring tile also covers. Outer frame edges and edges on
// an axis without overlap never drop anything.
func dropAtBorder(b Box, t Tile, frac float64) bool {
	if frac <= 0 {
		return false
	}
	mx := frac * float64(t.W)
	my := frac * float64(t.H)
	if t.SharedLeft && b.XMin < mx {
		return true
	}
	if t.SharedRight && b.XMax > float64(t.W)-mx {
		return true
	}
	if t.SharedTop && b.YMin < my {
		return true
	}
	if t.SharedBottom && b.YMax > float64(t.H)-my {
		return true
	}
	return false
}

func dropLargeLandscape(b Box, t Tile, mode Mode, enabled bool) bool {
	if !enabled || mode != MultiScale {
		return false
	}
	return b.Width() >= largeLandscapeWidthFrac*float64(t.W) && b.Width() >= b.Height()
}

// dedupIOU keeps at most one detection per group of same-class boxes whose
// pairwise IOU exceeds the threshold. Candidates are ranked by score, then
// area, then box coordinates, then source tile, so ties resolve the same
// way on every run regardless of input order.
func dedupIOU(dets []Detection, threshold float64) []Detection {
	if len(dets) < 2 {
		return dets
	}
	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if aa, ba := a.Box.Area(), b.Box.Area(); aa != ba {
			return aa > ba
		}
		if a.Box.XMin != b.Box.XMin {
			return a.Box.XMin < b.Box.XMin
		}
		if a.Box.YMin != b.Box.YMin {
			return a.Box.YMin < b.Box.YMin
		}
		if a.Box.XMax != b.Box.XMax {
			return a.Box.XMax < b.Box.XMax
		}
		if a.Box.YMax != b.Box.YMax {
			return a.Box.YMax < b.Box.YMax
		}
		return a.SourceTile < b.SourceTile
	})

	kept := sorted[:0:0]
	for _, d := range sorted {
		dup := false
		for _, k := range kept {
			if k.Class == d.Class && IOU(k.Box, d.Box) > threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, d)
		}
	}
	return kept
}

func groupByTile(dets []Detection) []TileGroup {
	byTile := map[int][]Detection{}
	for _, d := range dets {
		byTile[d.SourceTile] = append(byTile[d.SourceTile], d)
	}
	idx := make([]int, 0, len(byTile))
	for i := range byTile {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	groups := make([]TileGroup, 0, len(idx))
	for _, i := range idx {
		groups = append(groups, TileGroup{Tile: i, Detections: byTile[i]})
	}
	return groups
}
