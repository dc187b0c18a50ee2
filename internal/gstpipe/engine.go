// Package gstpipe realizes processing graphs as GStreamer pipelines with
// the Hailo plugin set: hailonet for on-chip inference, hailofilter for
// postprocessing, the muxer/cropper/aggregator family for the two
// topology shapes, and the stock video elements around them. Graph node
// names become element names, so bus messages and frame probes map
// straight back to the topology that was built.
package gstpipe

import (
	"log/slog"
	"time"
)

// busPollInterval is how often the bus watch wakes to check for shutdown
// between messages.
const busPollInterval = 50 * time.Millisecond

const closeTimeout = 5 * time.Second

// Engine builds GStreamer-backed pipeline instances.
type Engine struct {
	log *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func New(opts ...Option) *Engine {
	e := &Engine{log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "gst" }
