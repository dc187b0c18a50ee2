package simpipe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/engine"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/tiling"
)

// item is what flows through the simulated links: a token, not pixels.
type item struct {
	frame         tiling.FrameID
	width, height int

	// tile is set on tile-stream tokens between cropper and aggregator.
	tile *tiling.Tile

	// dets carries inference output once the token passed the net.
	dets []tiling.Detection

	// merged is set downstream of the merge/aggregate stage.
	merged *tiling.MergedFrame
}

// stageError ties a stage failure to the node it happened at.
type stageError struct {
	node string
	err  error
}

func (e *stageError) Error() string { return e.node + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

const closeTimeout = 5 * time.Second

type instance struct {
	eng *Engine
	g   *graph.Graph

	tileSpec tiling.Spec
	hasTiles bool

	events      chan engine.Event
	gate        chan struct{}
	stop        chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	group       *errgroup.Group
	watcherDone chan struct{}

	startOnce sync.Once
	eosOnce   sync.Once
	closeOnce sync.Once
	closing   atomic.Bool
	closeErr  error

	observe map[string]graph.PadRef
	counts  map[string]*atomic.Uint64
}

// Build realizes the graph as goroutines and channels. The context bounds
// construction; the instance itself lives until Close.
func (e *Engine) Build(ctx context.Context, g *graph.Graph, opts engine.BuildOptions) (engine.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := &instance{
		eng:         e,
		g:           g,
		events:      make(chan engine.Event, 64),
		gate:        make(chan struct{}),
		stop:        make(chan struct{}),
		watcherDone: make(chan struct{}),
		observe:     make(map[string]graph.PadRef, len(opts.Observe)),
		counts:      make(map[string]*atomic.Uint64, len(opts.Observe)),
	}
	for _, ref := range opts.Observe {
		if _, ok := g.Node(ref.Node); !ok {
			return nil, &graph.ConstructionError{Graph: g.Name(), Errs: []error{
				fmt.Errorf("observed node %q does not exist", ref.Node),
			}}
		}
		in.observe[ref.Node] = ref
		in.counts[ref.Node] = &atomic.Uint64{}
	}

	// The aggregation stage needs the cropper's grid to know what a
	// complete frame looks like.
	for _, n := range g.Nodes() {
		if n.Kind == graph.KindTileCrop {
			in.tileSpec = tileSpecFromProps(n)
			in.hasTiles = true
		}
	}

	// One channel per link, closed by the producing stage. Links into a
	// queue node carry the queue's buffer budget; everything else hands
	// items over nearly synchronously.
	chans := make([]chan item, len(g.Edges()))
	for idx, edge := range g.Edges() {
		depth := 1
		if to, ok := g.Node(edge.To); ok && to.Kind == graph.KindQueue {
			depth = propInt(to, "max-size-buffers", 1)
			if depth < 1 {
				depth = 1
			}
		}
		chans[idx] = make(chan item, depth)
	}

	// Stages run on the group context: the first stage error or a Close
	// cancels every other stage.
	parent, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	in.group, in.ctx = errgroup.WithContext(parent)

	for _, n := range g.Nodes() {
		node := n
		ins := edgeChans(g.Inputs(node.Name), g.Edges(), chans, func(e graph.Edge) string { return e.ToPad })
		outs := edgeChans(g.Outputs(node.Name), g.Edges(), chans, func(e graph.Edge) string { return e.FromPad })
		in.group.Go(func() error {
			return in.runStage(node, ins, outs)
		})
	}

	go in.watch()
	return in, nil
}

// edgeChans resolves a node's edge set to channels, ordered by pad name so
// sink_0/src_0 always precede sink_1/src_1.
func edgeChans(edges []graph.Edge, all []graph.Edge, chans []chan item, pad func(graph.Edge) string) []chan item {
	sorted := make([]graph.Edge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return pad(sorted[i]) < pad(sorted[j]) })

	out := make([]chan item, 0, len(sorted))
	for _, e := range sorted {
		for idx, cand := range all {
			if cand == e {
				out = append(out, chans[idx])
				break
			}
		}
	}
	return out
}

func tileSpecFromProps(n *graph.Node) tiling.Spec {
	mode := tiling.SingleScale
	if propInt(n, "tiling-mode", 0) == 1 {
		mode = tiling.MultiScale
	}
	return tiling.Spec{
		TilesX:   propInt(n, "tiles-along-x-axis", 1),
		TilesY:   propInt(n, "tiles-along-y-axis", 1),
		OverlapX: propFloat(n, "overlap-x-axis", 0),
		OverlapY: propFloat(n, "overlap-y-axis", 0),
		Mode:     mode,
	}
}

// watch turns the group's fate into the single terminal event, unless the
// run is ending because Close was called first.
func (in *instance) watch() {
	err := in.group.Wait()
	if !in.closing.Load() {
		if err != nil {
			ev := engine.Event{Kind: engine.KindError, Err: err}
			var se *stageError
			if errors.As(err, &se) {
				ev.Source = se.node
			}
			in.terminal(ev)
		} else {
			in.terminal(engine.Event{Kind: engine.KindEOS})
		}
	}
	close(in.watcherDone)
}

// terminal posts without blocking; if the consumer is gone and the buffer
// is full the event is moot anyway.
func (in *instance) terminal(ev engine.Event) {
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
	case <-in.ctx.Done():
	}
}

func (in *instance) Start() error {
	in.startOnce.Do(func() {
		close(in.gate)
		in.post(engine.Event{
			Kind:   engine.KindStateChanged,
			Source: in.g.Name(),
			Old:    "paused",
			New:    "playing",
		})
	})
	return nil
}

func (in *instance) SendEOS() bool {
	in.eosOnce.Do(func() { close(in.stop) })
	return true
}

func (in *instance) Events() <-chan engine.Event { return in.events }

func (in *instance) Close() error {
	in.closeOnce.Do(func() {
		in.closing.Store(true)
		in.cancel()
		select {
		case <-in.watcherDone:
		case <-time.After(closeTimeout):
			in.closeErr = errors.New("simpipe: stages did not stop in time")
		}
		close(in.events)
	})
	return in.closeErr
}

// observedSend notes one item leaving an observed node and reports the
// running count.
func (in *instance) observedSend(node string) {
	ref, ok := in.observe[node]
	if !ok {
		return
	}
	n := in.counts[node].Add(1)
	in.post(engine.Event{Kind: engine.KindFrame, Pad: ref, Frames: n})
}
