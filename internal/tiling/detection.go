package tiling

// Box is an axis-aligned rectangle in pixel coordinates. Min is inclusive,
// Max exclusive; coordinates are floats because inference emits sub-pixel
// boxes.
type Box struct {
	XMin, YMin float64
	XMax, YMax float64
}

func (b Box) Width() float64  { return b.XMax - b.XMin }
func (b Box) Height() float64 { return b.YMax - b.YMin }

func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Offset returns the box translated by (dx, dy).
func (b Box) Offset(dx, dy float64) Box {
	return Box{
		XMin: b.XMin + dx,
		YMin: b.YMin + dy,
		XMax: b.XMax + dx,
		YMax: b.YMax + dy,
	}
}

// IOU returns the intersection-over-union of two boxes, 0 when they are
// disjoint or degenerate.
func IOU(a, b Box) float64 {
	ix := min(a.XMax, b.XMax) - max(a.XMin, b.XMin)
	iy := min(a.YMax, b.YMax) - max(a.YMin, b.YMin)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is one classified box with a confidence score. Coordinates are
// local to whatever surface produced the detection: tile-local on a tile
// token, frame-global after aggregation.
type Detection struct {
	Class string
	Score float64
	Box   Box

	// SourceTile is the index of the tile the detection came from, or -1
	// for detections produced on the whole frame.
	SourceTile int
}
