// Package simpipe is an in-process engine that realizes processing graphs
// with one goroutine per node and bounded channels for links. It carries
// no video: items are frame and tile tokens with detections attached,
// which is exactly enough to execute the orchestration semantics for real,
// with real concurrency, real backpressure and the real aggregation path.
// Tests and dry runs use it on machines without the GStreamer stack; its
// behavior at the engine boundary matches the hardware engine event for
// event.
package simpipe

import (
	"log/slog"
	"time"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/tiling"
)

// Defaults for the synthetic source when options leave them unset.
const (
	DefaultFrames = 30
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// Detector produces the detections "inference" reports for one surface.
// tile is nil when the surface is a whole frame (the split-merge inference
// branch) and non-nil for tile surfaces, in which case the detections are
// in tile-local coordinates.
type Detector func(frame tiling.FrameID, tile *tiling.Tile) []tiling.Detection

// Engine builds simulated pipeline instances.
type Engine struct {
	frames   int
	width    int
	height   int
	interval time.Duration
	detector Detector
	dropTile map[dropKey]bool
	log      *slog.Logger
}

type dropKey struct {
	frame tiling.FrameID
	tile  int
}

// Option configures the Engine.
type Option func(*Engine)

// WithFrames sets how many frames the synthetic source produces.
func WithFrames(n int) Option {
	return func(e *Engine) { e.frames = n }
}

// WithGeometry sets the synthetic source's frame size.
func WithGeometry(w, h int) Option {
	return func(e *Engine) { e.width, e.height = w, h }
}

// WithFrameInterval paces the source, one frame per interval. Zero runs
// flat out.
func WithFrameInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithDetector injects the synthetic inference results.
func WithDetector(d Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// WithDroppedTile makes the cropper lose one specific tile token, for
// exercising the aggregation stage's missing-tile handling.
func WithDroppedTile(frame tiling.FrameID, tileIndex int) Option {
	return func(e *Engine) {
		if e.dropTile == nil {
			e.dropTile = make(map[dropKey]bool)
		}
		e.dropTile[dropKey{frame, tileIndex}] = true
	}
}

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		frames: DefaultFrames,
		width:  DefaultWidth,
		height: DefaultHeight,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "sim" }
