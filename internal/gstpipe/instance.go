package gstpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/engine"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

type instance struct {
	log      *slog.Logger
	pipeline *gst.Pipeline

	events  chan engine.Event
	stop    chan struct{}
	busDone chan struct{}

	startOnce sync.Once
	eosOnce   sync.Once
	closeOnce sync.Once
	closing   atomic.Bool
	startErr  error
	eosOK     bool
	closeErr  error
}

// Build assembles the graph into a GStreamer pipeline, left in the NULL
// state until Start. The context bounds construction only; the instance
// itself lives until Close.
func (e *Engine) Build(ctx context.Context, g *graph.Graph, opts engine.BuildOptions) (engine.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Safe to call repeatedly.
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	in := &instance{
		log:      e.log,
		pipeline: pipeline,
		events:   make(chan engine.Event, 64),
		stop:     make(chan struct{}),
		busDone:  make(chan struct{}),
	}

	els := make(map[string]*gst.Element, len(g.Nodes()))
	all := make([]*gst.Element, 0, len(g.Nodes()))
	for _, n := range g.Nodes() {
		el, err := makeElement(n)
		if err != nil {
			in.release()
			return nil, &graph.ConstructionError{Graph: g.Name(), Errs: []error{err}}
		}
		els[n.Name] = el
		all = append(all, el)
	}

	if err := pipeline.AddMany(all...); err != nil {
		in.release()
		return nil, fmt.Errorf("assemble pipeline %q: %w", g.Name(), err)
	}

	if err := linkEdges(g, els, e.log); err != nil {
		in.release()
		return nil, &graph.ConstructionError{Graph: g.Name(), Errs: []error{err}}
	}

	if err := in.observeAll(els, opts.Observe); err != nil {
		in.release()
		return nil, &graph.ConstructionError{Graph: g.Name(), Errs: []error{err}}
	}

	go in.watchBus()

	e.log.Debug("gst: pipeline assembled",
		"graph", g.Name(),
		"nodes", len(g.Nodes()),
		"links", len(g.Edges()),
	)
	return in, nil
}

// observeAll installs a buffer probe on each requested pad. Every buffer
// bumps the pad's counter and posts a frame event carrying the running
// total. Posting never blocks the streaming thread: when the consumer
// lags, intermediate events are skipped and the next one delivers the
// cumulative count.
func (in *instance) observeAll(els map[string]*gst.Element, refs []graph.PadRef) error {
	for _, ref := range refs {
		el, ok := els[ref.Node]
		if !ok {
			return fmt.Errorf("observed node %q does not exist", ref.Node)
		}
		name := padNameOr(ref.Pad, "src")
		pad := el.GetStaticPad(name)
		if pad == nil {
			return fmt.Errorf("observed pad %q does not exist on %q", name, ref.Node)
		}

		ref := ref
		count := &atomic.Uint64{}
		pad.AddProbe(gst.PadProbeTypeBuffer, func(_ *gst.Pad, info *gst.PadProbeInfo) gst.PadProbeReturn {
			if info.GetBuffer() == nil {
				return gst.PadProbeOK
			}
			n := count.Add(1)
			select {
			case in.events <- engine.Event{Kind: engine.KindFrame, Pad: ref, Frames: n}:
			default:
			}
			return gst.PadProbeOK
		})
	}
	return nil
}

// watchBus polls the pipeline bus and translates messages into events.
// It is the only goroutine that emits terminal events, and it emits at
// most one before returning.
func (in *instance) watchBus() {
	defer close(in.busDone)
	bus := in.pipeline.GetPipelineBus()

	for {
		select {
		case <-in.stop:
			return
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			in.log.Debug("gst: end of stream reached the sinks")
			in.terminal(engine.Event{Kind: engine.KindEOS, Source: msg.Source()})
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			cat := Classify(gerr.Error(), gerr.DebugString())
			in.log.Error("gst: pipeline error",
				"source", msg.Source(),
				"category", cat.String(),
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
			in.terminal(engine.Event{
				Kind:   engine.KindError,
				Err:    fmt.Errorf("[%s] %s", cat, gerr.Error()),
				Source: msg.Source(),
				Debug:  gerr.DebugString(),
			})
			return

		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			in.post(engine.Event{
				Kind:    engine.KindWarning,
				Source:  msg.Source(),
				Message: gerr.Error(),
				Debug:   gerr.DebugString(),
			})

		case gst.MessageStateChanged:
			// Element-level transitions are noise; only the top-level
			// pipeline state is reported.
			if msg.Source() != in.pipeline.GetName() {
				continue
			}
			old, next := msg.ParseStateChanged()
			in.post(engine.Event{
				Kind:   engine.KindStateChanged,
				Source: msg.Source(),
				Old:    old.String(),
				New:    next.String(),
			})

		case gst.MessageStreamStatus:
			in.post(engine.Event{
				Kind:    engine.KindStreamStatus,
				Source:  msg.Source(),
				Message: msg.String(),
			})
		}
	}
}

// terminal posts without blocking; if the consumer is gone and the buffer
// is full the event is moot anyway. Nothing is posted when the run is
// ending because Close was called first.
func (in *instance) terminal(ev engine.Event) {
	if in.closing.Load() {
		return
	}
	select {
	case in.events <- ev:
	default:
	}
}

// post delivers a non-terminal event, giving up when the instance winds
// down.
func (in *instance) post(ev engine.Event) {
	select {
	case in.events <- ev:
	case <-in.stop:
	}
}

func (in *instance) Start() error {
	in.startOnce.Do(func() {
		if err := in.pipeline.SetState(gst.StatePlaying); err != nil {
			in.startErr = fmt.Errorf("set pipeline playing: %w", err)
		}
	})
	return in.startErr
}

func (in *instance) SendEOS() bool {
	in.eosOnce.Do(func() {
		in.eosOK = in.pipeline.SendEvent(gst.NewEOSEvent())
	})
	return in.eosOK
}

func (in *instance) Events() <-chan engine.Event { return in.events }

// Close stops the pipeline and releases its resources. Moving to NULL
// joins the streaming threads, so no probe can still be posting when the
// event channel closes afterwards.
func (in *instance) Close() error {
	in.closeOnce.Do(func() {
		in.closing.Store(true)
		in.release()
		close(in.stop)
		select {
		case <-in.busDone:
		case <-time.After(closeTimeout):
			in.closeErr = errors.New("gst: bus watch did not stop in time")
		}
		close(in.events)
	})
	return in.closeErr
}

// release drops the pipeline to NULL, stopping and freeing everything it
// holds. Safe on a pipeline that never left NULL.
func (in *instance) release() {
	if err := in.pipeline.SetState(gst.StateNull); err != nil {
		in.log.Warn("gst: failed to set pipeline to null", "error", err)
		if in.closeErr == nil {
			in.closeErr = fmt.Errorf("set pipeline null: %w", err)
		}
	}
}
