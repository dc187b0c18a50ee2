package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/control"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/engine"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/gstpipe"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/simpipe"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/topology"
)

// setupLogging configures the process logger: text to stderr, debug level
// under --debug, and a run id on every line so interleaved runs stay
// separable in shared logs.
func setupLogging() *slog.Logger {
	level := slog.LevelInfo
	if rootFlags.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})).With("run_id", uuid.New().String())
	slog.SetDefault(logger)
	return logger
}

// selectEngine picks the engine behind the controller. gst drives real
// hardware through GStreamer; sim executes the same graph as an
// in-process token run for dry runs on machines without the plugin
// stack.
func selectEngine(log *slog.Logger) (engine.Engine, error) {
	switch rootFlags.engine {
	case "gst":
		return gstpipe.New(gstpipe.WithLogger(log)), nil
	case "sim":
		return simpipe.New(simpipe.WithLogger(log)), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (available: gst, sim)", rootFlags.engine)
	}
}

// runPlan drives one plan to completion. An interrupt signal turns into a
// drain: sources stop, in-flight frames flush through the sinks and the
// output file is finalized before the process exits.
func runPlan(cmd *cobra.Command, plan *topology.Plan, progressEvery int, output string) error {
	log := setupLogging()
	out := cmd.OutOrStdout()

	if rootFlags.debug {
		fmt.Fprintln(out, plan.Graph.Describe())
		fmt.Fprintln(out)
	}

	eng, err := selectEngine(log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Info("main: interrupt received, draining pipeline")
			cancel()
		case <-ctx.Done():
		}
	}()

	ctrl := control.New(eng,
		control.WithLogger(log),
		control.WithProgressEvery(progressEvery),
	)
	sum, err := ctrl.Run(ctx, plan)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nDone: %d frames", sum.Frames)
	if plan.TilesPerFrame > 0 {
		fmt.Fprintf(out, " (%d tiles each)", plan.TilesPerFrame)
	}
	fmt.Fprintln(out)
	if output != "" {
		fmt.Fprintf(out, "Output written to: %s\n", output)
	}
	return nil
}
