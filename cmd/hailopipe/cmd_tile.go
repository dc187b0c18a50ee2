package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/anhle-uet/hailo-detection-pipelines/internal/config"
	"github.com/anhle-uet/hailo-detection-pipelines/internal/topology"
)

var tileFlags struct {
	input                string
	output               string
	hef                  string
	postprocessSO        string
	bitrate              int
	tilesX               int
	tilesY               int
	overlapX             float64
	overlapY             float64
	tilingMode           int
	tileWidth            int
	tileHeight           int
	iouThreshold         float64
	borderThreshold      float64
	removeLargeLandscape bool
}

var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "Detect small objects by tiling frames across inference",
	Long: `Tile runs the tile-aggregate shape: every decoded frame is cropped into
an overlapping grid, each tile runs inference at full network resolution,
and an aggregation stage maps tile-local detections back onto the frame,
drops boxes that sit on internal tile borders and collapses cross-tile
duplicates by IOU. Small objects that vanish when a whole frame is scaled
to the network size stay detectable this way.

Usage:
  hailopipe tile --input in.mp4 --output out.mp4
  hailopipe tile --input in.mp4 --output out.mp4 --tiles-x 3 --tiles-y 3 --overlap-x 0.15

A frame is only complete when every tile of its grid arrived; losing a
tile is a fatal pipeline error, since partial spatial coverage would
corrupt the output.`,
	Args: cobra.NoArgs,
	RunE: runTile,
}

func init() {
	f := tileCmd.Flags()
	f.StringVar(&tileFlags.input, "input", "", "Input video file (required)")
	f.StringVar(&tileFlags.output, "output", "", "Output video file (required)")
	f.StringVar(&tileFlags.hef, "hef", "", "Compiled network (HEF); default honors $HAILOPIPE_HEF")
	f.StringVar(&tileFlags.postprocessSO, "postprocess-so", "", "Postprocess shared object; default honors $HAILOPIPE_POSTPROCESS_SO")
	f.IntVar(&tileFlags.bitrate, "bitrate", config.DefaultBitrateKbps, "Output bitrate in kbps")
	f.IntVar(&tileFlags.tilesX, "tiles-x", 2, "Tile columns")
	f.IntVar(&tileFlags.tilesY, "tiles-y", 2, "Tile rows")
	f.Float64Var(&tileFlags.overlapX, "overlap-x", 0.2, "Horizontal overlap fraction between adjacent tiles")
	f.Float64Var(&tileFlags.overlapY, "overlap-y", 0.2, "Vertical overlap fraction between adjacent tiles")
	f.IntVar(&tileFlags.tilingMode, "tiling-mode", config.TilingModeSingleScale, "Tiling mode: 0 single-scale, 1 multi-scale")
	f.IntVar(&tileFlags.tileWidth, "tile-width", config.DefaultInferenceSize, "Network input width per tile")
	f.IntVar(&tileFlags.tileHeight, "tile-height", config.DefaultInferenceSize, "Network input height per tile")
	f.Float64Var(&tileFlags.iouThreshold, "iou-threshold", 0.3, "IOU above which cross-tile detections of one class collapse")
	f.Float64Var(&tileFlags.borderThreshold, "border-threshold", 0.1, "Border margin fraction for dropping tile-edge detections")
	f.BoolVar(&tileFlags.removeLargeLandscape, "remove-large-landscape", false, "Drop implausibly wide near-tile-sized detections (multi-scale only)")
	_ = tileCmd.MarkFlagRequired("input")
	_ = tileCmd.MarkFlagRequired("output")
}

func runTile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadTileAggregate(rootFlags.config)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	cfg.Input = tileFlags.input
	cfg.Output = tileFlags.output
	if f.Changed("hef") {
		cfg.HEFPath = tileFlags.hef
	}
	if f.Changed("postprocess-so") {
		cfg.PostprocessSO = tileFlags.postprocessSO
	}
	if f.Changed("bitrate") {
		cfg.BitrateKbps = tileFlags.bitrate
	}
	if f.Changed("tiles-x") {
		cfg.TilesX = tileFlags.tilesX
	}
	if f.Changed("tiles-y") {
		cfg.TilesY = tileFlags.tilesY
	}
	if f.Changed("overlap-x") {
		cfg.OverlapX = tileFlags.overlapX
	}
	if f.Changed("overlap-y") {
		cfg.OverlapY = tileFlags.overlapY
	}
	if f.Changed("tiling-mode") {
		cfg.TilingMode = tileFlags.tilingMode
	}
	if f.Changed("tile-width") {
		cfg.InferenceWidth = tileFlags.tileWidth
	}
	if f.Changed("tile-height") {
		cfg.InferenceHeight = tileFlags.tileHeight
	}
	if f.Changed("iou-threshold") {
		cfg.IOUThreshold = tileFlags.iouThreshold
	}
	if f.Changed("border-threshold") {
		cfg.BorderThreshold = tileFlags.borderThreshold
	}
	if f.Changed("remove-large-landscape") {
		cfg.RemoveLargeLandscape = tileFlags.removeLargeLandscape
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	plan, err := topology.TileAggregate(cfg)
	if err != nil {
		return err
	}

	printTileBanner(cmd.OutOrStdout(), cfg)
	return runPlan(cmd, plan, cfg.ProgressEvery, cfg.Output)
}

func printTileBanner(out io.Writer, cfg config.TileAggregate) {
	fmt.Fprintf(out, "hailopipe %s: tiled detection\n", version)
	fmt.Fprintf(out, "Configuration:\n")
	fmt.Fprintf(out, "  Input:            %s\n", cfg.Input)
	fmt.Fprintf(out, "  Output:           %s\n", cfg.Output)
	fmt.Fprintf(out, "  HEF:              %s\n", cfg.HEFPath)
	fmt.Fprintf(out, "  Postprocess:      %s\n", cfg.PostprocessSO)
	fmt.Fprintf(out, "  Grid:             %dx%d tiles, overlap %.2f x %.2f\n",
		cfg.TilesX, cfg.TilesY, cfg.OverlapX, cfg.OverlapY)
	fmt.Fprintf(out, "  Tiling mode:      %s\n", cfg.Tiling.Mode)
	fmt.Fprintf(out, "  Tile size:        %dx%d\n", cfg.InferenceWidth, cfg.InferenceHeight)
	fmt.Fprintf(out, "  IOU threshold:    %.2f\n", cfg.IOUThreshold)
	fmt.Fprintf(out, "  Border threshold: %.2f\n", cfg.BorderThreshold)
	fmt.Fprintf(out, "  Bitrate:          %d kbps\n", cfg.BitrateKbps)
	fmt.Fprintf(out, "  Engine:           %s\n", rootFlags.engine)
	fmt.Fprintln(out)
}
