package control

import (
	"errors"
	"log/slog"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/engine"
)

// Outcome is the router's verdict on one event.
type Outcome int

const (
	// Continue means the run proceeds.
	Continue Outcome = iota
	// StopClean means the stream finished; the run ends successfully.
	StopClean
	// StopFailed means a fatal error was recorded; the run ends failed.
	StopFailed
)

// Router classifies the asynchronous event stream of a running instance:
// it logs each event at the appropriate level, tracks the frame count from
// the monitor pad, records the first fatal error and tells the controller
// when the run is over. Later errors are logged but never displace the
// first one, which is the one that explains the failure.
//
// Router is not safe for concurrent use; the controller routes from a
// single goroutine.
type Router struct {
	log           *slog.Logger
	progressEvery int

	frames uint64
	err    error
}

func NewRouter(log *slog.Logger, progressEvery int) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{log: log, progressEvery: progressEvery}
}

// Frames returns the latest count observed at the monitor pad.
func (r *Router) Frames() uint64 { return r.frames }

// Err returns the first fatal error routed, nil if none.
func (r *Router) Err() error { return r.err }

// Route processes one event.
func (r *Router) Route(ev engine.Event) Outcome {
	switch ev.Kind {
	case engine.KindFrame:
		r.frames = ev.Frames
		if r.progressEvery > 0 && ev.Frames%uint64(r.progressEvery) == 0 {
			r.log.Info("control: frames processed", "pad", ev.Pad.String(), "frames", ev.Frames)
		}
		return Continue

	case engine.KindError:
		err := ev.Err
		if err == nil {
			err = errors.New(ev.Message)
		}
		r.recordError(&RuntimeError{Source: ev.Source, Debug: ev.Debug, Err: err})
		r.log.Error("control: pipeline error",
			"source", ev.Source, "error", err, "debug", ev.Debug)
		return StopFailed

	case engine.KindEOS:
		r.log.Info("control: end of stream", "frames", r.frames)
		return StopClean

	case engine.KindWarning:
		r.log.Warn("control: pipeline warning",
			"source", ev.Source, "warning", ev.Message, "debug", ev.Debug)
		return Continue

	case engine.KindStateChanged:
		r.log.Debug("control: pipeline state changed",
			"from", ev.Old, "to", ev.New)
		return Continue

	case engine.KindStreamStatus:
		r.log.Debug("control: stream status",
			"source", ev.Source, "status", ev.Message)
		return Continue

	default:
		r.log.Debug("control: unhandled event", "kind", ev.Kind.String())
		return Continue
	}
}

// recordError keeps the first error and logs the rest.
func (r *Router) recordError(err error) {
	if r.err == nil {
		r.err = err
		return
	}
	r.log.Debug("control: additional error after first failure", "error", err)
}
