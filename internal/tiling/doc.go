// Package tiling implements the spatial tiling contract used by the
// tile-aggregate pipeline shape: how a frame is partitioned into an
// overlapping grid of tiles, and how per-tile detections are translated
// back into frame coordinates, filtered and deduplicated into a single
// merged result per frame.
//
// The package is pure data and math; it never touches pixels. The cropper
// and aggregator stages of a running pipeline (hardware or simulated) are
// expected to honor exactly the geometry and merge semantics defined here.
//
// Usage:
//
//	tiles, err := tiling.Layout(1920, 1080, tiling.Spec{
//	    TilesX: 2, TilesY: 2, OverlapX: 0.2, OverlapY: 0.2,
//	})
//
//	asm := tiling.NewAssembler(spec, agg)
//	merged, err := asm.AddTile(tok) // nil until the frame is complete
//
// Geometry invariants:
//   - Base cells partition the frame exactly (remainder pixels spread over
//     the leading columns/rows), so the sum of tile spans minus overlaps
//     always reconstructs the frame dimension.
//   - With overlap > 0 every pixel is covered by at least one tile; with
//     overlap = 0 every pixel is covered by exactly one tile.
//   - Tile offsets are computed once by Layout and carried on every tile
//     token; aggregation never re-derives them.
package tiling
