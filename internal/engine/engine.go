// Package engine defines the boundary between the pipeline controller and
// the engines that realize a graph: the GStreamer engine driving real
// Hailo hardware, and the in-process simulation engine used in tests and
// on machines without the plugin stack. The controller only ever talks to
// these interfaces; everything engine-specific stays behind them.
package engine

import (
	"context"
	"strings"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

// EventKind classifies the asynchronous events an instance reports.
type EventKind int

const (
	// KindError is a fatal pipeline failure; the instance will not make
	// further progress.
	KindError EventKind = iota
	// KindWarning is a non-fatal condition worth logging.
	KindWarning
	// KindEOS reports that the end of stream reached the sinks. Emitted
	// at most once.
	KindEOS
	// KindStateChanged reports a top-level pipeline state transition.
	KindStateChanged
	// KindStreamStatus reports streaming-thread lifecycle notices.
	KindStreamStatus
	// KindFrame reports one frame passing an observed pad.
	KindFrame
)

func (k EventKind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindWarning:
		return "warning"
	case KindEOS:
		return "eos"
	case KindStateChanged:
		return "state-changed"
	case KindStreamStatus:
		return "stream-status"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Event is one asynchronous notification from a running instance.
type Event struct {
	Kind EventKind

	// Err carries the failure for KindError events.
	Err error

	// Source names the node or element the event originated at, when
	// known.
	Source string

	// Message holds warning text or stream status detail.
	Message string

	// Debug holds engine-specific diagnostic detail accompanying errors
	// and warnings.
	Debug string

	// Old and New are the state names of a KindStateChanged event.
	Old, New string

	// Pad is the observed pad a KindFrame event fired at, and Frames the
	// cumulative count seen there.
	Pad    graph.PadRef
	Frames uint64
}

// Active reports whether the event marks the top-level pipeline reaching
// its active processing state. State names are compared case-insensitively
// because engines differ in casing.
func (e Event) Active() bool {
	return e.Kind == KindStateChanged && strings.EqualFold(e.New, "playing")
}

// BuildOptions tunes how an engine realizes a graph.
type BuildOptions struct {
	// Observe lists output pads to install frame counters on. Each frame
	// passing an observed pad produces one KindFrame event.
	Observe []graph.PadRef
}

// Instance is one realized pipeline. Instances are single-use: Start at
// most once, then Close exactly once. Close is idempotent.
type Instance interface {
	// Start moves the pipeline into its running state. A failure here
	// means the pipeline never produced data.
	Start() error

	// SendEOS injects end-of-stream at the sources so in-flight data
	// drains through the sinks, which then emit a KindEOS event. Returns
	// false if the injection could not be performed.
	SendEOS() bool

	// Events is the instance's event stream. The channel closes after
	// Close, once the terminal event has been delivered.
	Events() <-chan Event

	// Close tears the instance down and releases its resources. Safe to
	// call regardless of how far Start got.
	Close() error
}

// Engine realizes validated graphs.
type Engine interface {
	// Name identifies the engine in logs.
	Name() string

	// Build realizes the graph. The context bounds construction only,
	// not the lifetime of the returned instance.
	Build(ctx context.Context, g *graph.Graph, opts BuildOptions) (Instance, error)
}
