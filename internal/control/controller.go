// Package control orchestrates a pipeline run from build to teardown. One
// controller drives one run: it asks an engine to realize the graph,
// starts it, routes the engine's event stream from a single goroutine and
// guarantees exactly one teardown no matter how the run ends. All state
// lives with the controller and is updated from that one goroutine;
// concurrent observers only ever see read-only snapshots.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/engine"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/topology"
)

// DefaultDrainTimeout bounds how long an interrupted run waits for the
// injected end-of-stream to flush through the sinks before the pipeline
// is torn down regardless.
const DefaultDrainTimeout = 10 * time.Second

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithDrainTimeout overrides DefaultDrainTimeout.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Controller) { c.drainTimeout = d }
}

// WithProgressEvery logs a frame-count line every n frames. 0 disables
// progress logging.
func WithProgressEvery(n int) Option {
	return func(c *Controller) { c.progressEvery = n }
}

// Summary is the final account of a run.
type Summary struct {
	Phase  Phase
	Frames uint64
	Err    error
}

// Controller runs one pipeline to completion. Controllers are single-use:
// a second Run is rejected.
type Controller struct {
	eng           engine.Engine
	log           *slog.Logger
	drainTimeout  time.Duration
	progressEvery int

	mu     sync.Mutex
	phase  Phase
	err    error
	frames atomic.Uint64
	router *Router
}

func New(eng engine.Engine, opts ...Option) *Controller {
	c := &Controller{
		eng:          eng,
		log:          slog.Default(),
		drainTimeout: DefaultDrainTimeout,
		phase:        PhaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current run state. Safe to call from any goroutine.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Phase: c.phase, Frames: c.frames.Load(), Err: c.err}
}

// Run executes the plan to completion. Canceling the context while the
// pipeline runs triggers a drain: end-of-stream is injected at the
// sources, in-flight frames flush through the sinks (finalizing any
// output file), and only then is the pipeline torn down. The returned
// error is the run's first failure, nil for a clean or cleanly
// interrupted run.
func (c *Controller) Run(ctx context.Context, plan *topology.Plan) (Summary, error) {
	if err := c.begin(); err != nil {
		return Summary{Phase: c.Snapshot().Phase, Err: err}, err
	}
	c.router = NewRouter(c.log, c.progressEvery)

	c.to(PhaseBuilding)
	c.log.Info("control: building pipeline",
		"engine", c.eng.Name(), "graph", plan.Graph.Name())
	inst, err := c.eng.Build(ctx, plan.Graph, engine.BuildOptions{
		Observe: []graph.PadRef{plan.Monitor},
	})
	if err != nil {
		return c.finish(err)
	}

	var closeOnce sync.Once
	closeInst := func() {
		closeOnce.Do(func() {
			if cerr := inst.Close(); cerr != nil {
				c.log.Warn("control: pipeline teardown reported an error", "error", cerr)
			}
		})
	}
	defer closeInst()

	c.to(PhaseStarting)
	if err := inst.Start(); err != nil {
		return c.finish(&StartupError{Engine: c.eng.Name(), Err: err})
	}

	runErr := c.loop(ctx, inst)
	closeInst()
	return c.finish(runErr)
}

// reachedActive reports whether an event proves the pipeline is actually
// processing: the top-level state change into the active state, or any
// evidence of data flow.
func reachedActive(ev engine.Event) bool {
	switch ev.Kind {
	case engine.KindFrame, engine.KindEOS:
		return true
	case engine.KindStateChanged:
		return ev.Active()
	}
	return false
}

// loop routes events until the run reaches a terminal condition. It owns
// every state change past Starting; nothing else touches the phase while
// it runs. The run stays in Starting until the pipeline proves it is
// active, so an error during preroll counts as a startup failure, and
// every end of stream passes through Draining while the sinks finalize.
func (c *Controller) loop(ctx context.Context, inst engine.Instance) error {
	events := inst.Events()
	ctxDone := ctx.Done()
	var drainDeadline <-chan time.Time

	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			c.log.Info("control: interrupt received, draining pipeline")
			c.to(PhaseDraining)
			if !inst.SendEOS() {
				c.log.Warn("control: end-of-stream injection failed, stopping without drain")
				return nil
			}
			drainDeadline = time.After(c.drainTimeout)

		case <-drainDeadline:
			c.log.Warn("control: drain deadline exceeded, forcing teardown",
				"timeout", c.drainTimeout)
			return nil

		case ev, ok := <-events:
			if !ok {
				if c.Snapshot().Phase == PhaseDraining {
					c.log.Warn("control: event stream ended during drain")
					return nil
				}
				return errors.New("control: event stream ended without a terminal event")
			}
			if c.Snapshot().Phase == PhaseStarting && reachedActive(ev) {
				c.to(PhaseRunning)
				c.log.Info("control: pipeline running")
			}
			outcome := c.router.Route(ev)
			c.frames.Store(c.router.Frames())
			switch outcome {
			case StopClean:
				if c.Snapshot().Phase == PhaseRunning {
					c.to(PhaseDraining)
				}
				return nil
			case StopFailed:
				err := c.router.Err()
				if c.Snapshot().Phase == PhaseStarting {
					return &StartupError{Engine: c.eng.Name(), Err: err}
				}
				return err
			}
		}
	}
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIdle {
		return fmt.Errorf("control: controller already used (phase %s)", c.phase)
	}
	return nil
}

// to applies a phase transition. An illegal transition is a programming
// error in the controller itself and fails loudly rather than limping on
// with a corrupted lifecycle.
func (c *Controller) to(next Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !Allowed(c.phase, next) {
		panic(fmt.Sprintf("control: illegal phase transition %s -> %s", c.phase, next))
	}
	c.log.Debug("control: phase transition", "from", c.phase.String(), "to", next.String())
	c.phase = next
}

// finish records the run's first error, moves to the terminal phase and
// builds the summary.
func (c *Controller) finish(runErr error) (Summary, error) {
	c.mu.Lock()
	if runErr != nil && c.err == nil {
		c.err = runErr
	}
	final := PhaseStopped
	if c.err != nil {
		final = PhaseFailed
	}
	if !Allowed(c.phase, final) {
		c.mu.Unlock()
		panic(fmt.Sprintf("control: illegal phase transition %s -> %s", c.phase, final))
	}
	c.phase = final
	err := c.err
	frames := c.frames.Load()
	c.mu.Unlock()

	if err != nil {
		c.log.Error("control: run failed", "phase", final.String(), "frames", frames, "error", err)
	} else {
		c.log.Info("control: run complete", "frames", frames)
	}
	return Summary{Phase: final, Frames: frames, Err: err}, err
}
