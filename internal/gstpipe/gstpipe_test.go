package gstpipe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/engine"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/graph"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// requireGStreamer skips tests that need a working GStreamer install.
func requireGStreamer(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("gst-inspect-1.0"); err != nil {
		t.Skipf("gstreamer not available: %v", err)
	}
}

func TestFactoryForEveryKind(t *testing.T) {
	for _, kind := range graph.Kinds() {
		if factories[kind] == "" {
			t.Errorf("kind %q has no element factory", kind)
		}
	}
	if len(factories) != len(graph.Kinds()) {
		t.Errorf("factory table has %d entries, catalog has %d kinds",
			len(factories), len(graph.Kinds()))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		debug string
		want  ErrorCategory
	}{
		{
			name: "missing hef",
			msg:  "Failed to load HEF file",
			want: ErrCategoryModel,
		},
		{
			name:  "postprocess library",
			msg:   "Failed to open shared library /opt/post/libyolo.so",
			debug: "hailofilter gsthailofilter.cpp:120",
			want:  ErrCategoryModel,
		},
		{
			name:  "device busy wins over io wording",
			msg:   "Could not open device",
			debug: "HailoRT error 62: device is busy",
			want:  ErrCategoryDevice,
		},
		{
			name:  "missing input file",
			msg:   "Resource not found",
			debug: `no such file "/tmp/missing.mp4"`,
			want:  ErrCategoryIO,
		},
		{
			name: "unrecognized container",
			msg:  "Could not determine type of stream",
			want: ErrCategoryCodec,
		},
		{
			name:  "caps negotiation",
			msg:   "Internal data stream error",
			debug: "streaming stopped, reason not-negotiated (-4)",
			want:  ErrCategoryCodec,
		},
		{
			name: "unclassified",
			msg:  "Internal data flow problem",
			want: ErrCategoryUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.msg, tt.debug); got != tt.want {
				t.Errorf("Classify(%q, %q) = %s, want %s", tt.msg, tt.debug, got, tt.want)
			}
		})
	}
}

// coreGraph is a minimal hailo-free chain the stock plugins can realize,
// with a queue in the middle to exercise typed property application.
func coreGraph(t *testing.T, input string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder("probe")
	src := b.AddNode("src", graph.KindFileSource, graph.P("location", input))
	dec := b.AddNode("decode", graph.KindDecode)
	q := b.AddNode("q", graph.KindQueue,
		graph.P("leaky", "no"),
		graph.P("max-size-buffers", 5),
		graph.P("max-size-bytes", 0),
		graph.P("max-size-time", 0),
	)
	conv := b.AddNode("convert", graph.KindConvert)
	sink := b.AddNode("sink", graph.KindFakeSink, graph.P("sync", false))
	b.Link(src, dec, q, conv, sink)
	g, err := b.Build()
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func garbageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "garbage.mp4")
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i * 31)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestBuildRejectsUnknownObservedNode(t *testing.T) {
	requireGStreamer(t)

	eng := New(WithLogger(quietLogger()))
	g := coreGraph(t, garbageFile(t))

	_, err := eng.Build(context.Background(), g, engine.BuildOptions{
		Observe: []graph.PadRef{{Node: "ghost"}},
	})
	var cerr *graph.ConstructionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Build error = %v, want ConstructionError", err)
	}
}

func TestUndecodableInputSurfacesOnEventChannel(t *testing.T) {
	requireGStreamer(t)

	eng := New(WithLogger(quietLogger()))
	g := coreGraph(t, garbageFile(t))

	inst, err := eng.Build(context.Background(), g, engine.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer inst.Close()

	if err := inst.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-inst.Events():
			if !ok {
				t.Fatal("event channel closed before a terminal event")
			}
			if ev.Kind != engine.KindError {
				continue
			}
			if ev.Err == nil {
				t.Fatal("error event carries no error")
			}
			if ev.Source == "" {
				t.Error("error event does not name its source element")
			}
			return
		case <-deadline:
			t.Fatal("no terminal event within 10s")
		}
	}
}

func TestCloseWithoutStart(t *testing.T) {
	requireGStreamer(t)

	eng := New(WithLogger(quietLogger()))
	g := coreGraph(t, garbageFile(t))

	inst, err := eng.Build(context.Background(), g, engine.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := inst.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := inst.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	for range inst.Events() {
		// drain; channel must be closed
	}
}
